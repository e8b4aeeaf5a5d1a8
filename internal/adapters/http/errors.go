package http

import (
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/domain"
)

// RespondWithError hands err to the problem details middleware and aborts
// the request chain. Use it from handlers and middleware instead of writing
// error bodies directly, so every error response has the same shape and is
// logged once.
func RespondWithError(c *gin.Context, err error) {
	dto.HandleError(c, err)
}

// NoRoute reports unmatched routes as not found problems. Unsupported
// methods on a known path are unmatched too, since the engine does not
// handle 405.
func NoRoute(c *gin.Context) {
	RespondWithError(c, domain.NewNotFoundError("route", c.Request.URL.Path))
}
