package middleware

import (
	"context"
	"slices"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/domain"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/config"
)

// Ambient keys written by RequireAuth. The subject is a plain string so it
// shows up in ambient snapshots and diagnostics.
const (
	AmbientKeySubject  = "Subject"
	AmbientKeyIdentity = "Identity"
)

// Identity is the caller as asserted by the gateway, which has already
// validated the token and forwards its claims as headers.
type Identity struct {
	Subject string
	Roles   []string
	Scopes  []string
}

func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

func (id *Identity) HasScope(scope string) bool {
	return slices.Contains(id.Scopes, scope)
}

// IdentityFrom returns the identity RequireAuth stored in ctx's ambient scope.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	return ambient.Lookup[*Identity](ctx, AmbientKeyIdentity)
}

// identityHeaders are the gateway headers carrying the identity.
type identityHeaders struct {
	subject string
	roles   string
	scopes  string
}

func newIdentityHeaders(cfg *config.AuthConfig) identityHeaders {
	h := identityHeaders{subject: "X-User-ID", roles: "X-User-Roles", scopes: "X-User-Scopes"}

	if cfg == nil {
		return h
	}

	if cfg.SubjectHeader != "" {
		h.subject = cfg.SubjectHeader
	}

	if cfg.RolesHeader != "" {
		h.roles = cfg.RolesHeader
	}

	if cfg.ScopesHeader != "" {
		h.scopes = cfg.ScopesHeader
	}

	return h
}

// read builds the identity from r's headers. Roles are comma separated,
// scopes space separated as in OAuth2.
func (h identityHeaders) read(c *gin.Context) *Identity {
	return &Identity{
		Subject: strings.TrimSpace(c.GetHeader(h.subject)),
		Roles:   splitList(c.GetHeader(h.roles), func(r rune) bool { return r == ',' || unicode.IsSpace(r) }),
		Scopes:  splitList(c.GetHeader(h.scopes), unicode.IsSpace),
	}
}

// RequireAuth rejects requests without a subject header by attaching a
// domain.AuthenticationError, which ProblemDetails reports as 401. The
// identity of accepted requests is published to the ambient scope.
func RequireAuth(cfg *config.AuthConfig) gin.HandlerFunc {
	headers := newIdentityHeaders(cfg)

	return func(c *gin.Context) {
		id := headers.read(c)

		if id.Subject == "" {
			_ = c.Error(domain.NewAuthenticationError("missing " + headers.subject + " header"))
			c.Abort()

			return
		}

		ctx := ambient.Set(c.Request.Context(), AmbientKeyIdentity, id)
		c.Request = c.Request.WithContext(ambient.Set(ctx, AmbientKeySubject, id.Subject))

		c.Next()
	}
}

func splitList(s string, sep func(rune) bool) []string {
	return strings.FieldsFunc(s, sep)
}
