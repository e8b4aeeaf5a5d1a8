package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrRequestTimeout is the context cause once a request outlives its budget.
// Read it with context.Cause.
var ErrRequestTimeout = errors.New("request timeout exceeded")

// Timeout bounds the request context by d. Nothing is aborted here: handlers
// and outbound calls see ctx.Done() and fail on their own, and ProblemDetails
// translates what they return.
//
// Requests whose path starts with one of skipPrefixes keep the parent
// context. A d of zero or less turns the middleware into a pass-through.
func Timeout(d time.Duration, skipPrefixes ...string) gin.HandlerFunc {
	if d <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if c.Request == nil || skipped(c.Request.URL.Path, skipPrefixes) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeoutCause(c.Request.Context(), d, ErrRequestTimeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func skipped(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
