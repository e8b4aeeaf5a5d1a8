package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
)

const (
	// HeaderCorrelationID is the default header name for the correlation ID.
	// Unlike a request ID, the correlation ID follows a business transaction
	// across every service it touches.
	HeaderCorrelationID = "X-Correlation-ID"

	// ContextKeyCorrelationID is the gin context key for the correlation ID.
	ContextKeyCorrelationID = "correlation_id"

	// teakettleMarker short-circuits a request with 418 when it appears in
	// the correlation ID. Synthetic probes use it to tell themselves apart
	// from real traffic.
	teakettleMarker = "teakettle"
)

// Correlation returns middleware that establishes the request's correlation ID.
// The ID is:
//   - Taken verbatim from the first value of header if present and non-empty
//   - Generated as a new UUID v4 otherwise
//   - Written into a new child ambient scope before the next handler runs;
//     outer middleware reads it from c.Request once c.Next returns
//   - Stored in gin.Context for GetCorrelationID
//   - Stamped on the response unless the handler already set that header
//
// IDs containing "teakettle" (any case) get a 418 response and the rest of
// the chain is skipped. An empty header uses HeaderCorrelationID.
func Correlation(header string) gin.HandlerFunc {
	if header == "" {
		header = HeaderCorrelationID
	}

	return func(c *gin.Context) {
		id := firstHeaderValue(c.Request, header)
		if id == "" {
			id = uuid.New().String()
		}

		// The ID goes into a child scope of its own. The parent may be the
		// server root shared by every connection.
		ctx := ambient.SetCorrelationID(ambient.NewScope(requestContext(c)), id)
		if c.Request != nil {
			c.Request = c.Request.WithContext(ctx)
		}

		c.Set(ContextKeyCorrelationID, id)

		if strings.Contains(strings.ToLower(id), teakettleMarker) {
			c.Header(header, id)
			c.AbortWithStatus(http.StatusTeapot)

			return
		}

		c.Writer = &correlationWriter{ResponseWriter: c.Writer, header: header, id: id}

		c.Next()

		if !c.Writer.Written() {
			stampHeader(c.Writer.Header(), header, id)
		}
	}
}

// GetCorrelationID extracts the correlation ID from the gin.Context.
// Returns empty string if not set.
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(ContextKeyCorrelationID)
}

// MustGetCorrelationID extracts the correlation ID from the gin.Context.
// Returns "unknown" if not set (should not happen if middleware is applied).
func MustGetCorrelationID(c *gin.Context) string {
	if id := GetCorrelationID(c); id != "" {
		return id
	}

	return "unknown"
}

func firstHeaderValue(r *http.Request, header string) string {
	if r == nil {
		return ""
	}

	if values := r.Header.Values(header); len(values) > 0 {
		return values[0]
	}

	return ""
}

func stampHeader(h http.Header, header, id string) {
	if len(h.Values(header)) == 0 {
		h.Set(header, id)
	}
}

// correlationWriter stamps the correlation header right before the response
// headers are flushed, so responses written by outer middleware carry it too.
type correlationWriter struct {
	gin.ResponseWriter

	header string
	id     string
}

func (w *correlationWriter) WriteHeader(code int) {
	stampHeader(w.Header(), w.header, w.id)
	w.ResponseWriter.WriteHeader(code)
}

func (w *correlationWriter) WriteHeaderNow() {
	stampHeader(w.Header(), w.header, w.id)
	w.ResponseWriter.WriteHeaderNow()
}

func (w *correlationWriter) Write(data []byte) (int, error) {
	stampHeader(w.Header(), w.header, w.id)
	return w.ResponseWriter.Write(data)
}

func (w *correlationWriter) WriteString(s string) (int, error) {
	stampHeader(w.Header(), w.header, w.id)
	return w.ResponseWriter.WriteString(s)
}

func (w *correlationWriter) Flush() {
	stampHeader(w.Header(), w.header, w.id)
	w.ResponseWriter.Flush()
}
