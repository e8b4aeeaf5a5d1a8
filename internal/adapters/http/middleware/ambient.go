// Package middleware provides HTTP middleware components for the Gin server.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
)

// AmbientScope returns middleware that gives every request its own ambient
// scope. The scope is a child of whatever scope the request context already
// carries (the server's root scope), so application and environment are
// inherited while request writes stay private to the request.
//
// application and environment seed the request scope when the parent does
// not provide them. It must run before any middleware that writes ambient
// values.
func AmbientScope(application, environment string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ambient.NewScope(requestContext(c))

		if application != "" && ambient.Application(ctx) == "" {
			ambient.SetApplication(ctx, application)
		}

		if environment != "" && ambient.Environment(ctx) == "" {
			ambient.SetEnvironment(ctx, environment)
		}

		if c.Request != nil {
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}

// requestContext returns the request context, or context.Background when
// the gin context has no request.
func requestContext(c *gin.Context) context.Context {
	if c.Request == nil {
		return context.Background()
	}

	return c.Request.Context()
}
