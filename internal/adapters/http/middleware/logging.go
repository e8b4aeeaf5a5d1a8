package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/logging"
)

// Logging returns middleware that logs each request's completion through
// logger. Correlation and application values come from the ambient scope, so
// the middleware only adds request fields. Placed outside ProblemDetails it
// records the final status, and still sees the correlation ID because it
// reads c.Request after c.Next, when it carries the inner scopes.
//
// Paths starting with /-/ (probes and metrics) and any path in skipPaths are
// not logged.
func Logging(logger *logging.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if _, ok := skip[path]; ok || strings.HasPrefix(path, "/-/") {
			c.Next()
			return
		}

		start := time.Now()

		// Records written outside the Logger contract carry the request line.
		c.Request = c.Request.WithContext(logging.WithAttrs(c.Request.Context(),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
		))

		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		opts := []logging.Option{
			logging.At("Logging"),
			logging.WithData(map[string]any{
				"method":     c.Request.Method,
				"path":       path,
				"status":     status,
				"latency_ms": latency.Milliseconds(),
				"bytes":      c.Writer.Size(),
			}),
		}

		// Errors themselves are logged by ProblemDetails.
		switch {
		case status >= http.StatusInternalServerError:
			logger.LogError(c.Request.Context(), "request completed", nil, opts...)
		case status >= http.StatusBadRequest:
			logger.LogWarning(c.Request.Context(), "request completed", nil, opts...)
		default:
			logger.LogInformation(c.Request.Context(), "request completed", opts...)
		}
	}
}
