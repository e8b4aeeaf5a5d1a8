package dto

import "github.com/gin-gonic/gin"

// EchoRequest is the body of POST /api/v1/echo.
type EchoRequest struct {
	Message string `json:"message" validate:"required,notempty,max=280"`
}

// EchoResponse is returned by POST /api/v1/echo.
type EchoResponse struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId"`
}

// ContextResponse is returned by GET /api/v1/context.
type ContextResponse struct {
	Application   string         `json:"application"`
	Environment   string         `json:"environment"`
	CorrelationID string         `json:"correlationId"`
	Values        map[string]any `json:"values"`
}

// RelayResponse is returned by GET /api/v1/downstream/*path.
type RelayResponse struct {
	Service string `json:"service"`
	Path    string `json:"path"`
	Body    any    `json:"body"`
}

// RelayBatchRequest is the body of POST /api/v1/downstream.
type RelayBatchRequest struct {
	Paths []string `json:"paths" validate:"required,min=1,max=10,dive,notempty"`
}

// RelayBatchItem is the outcome of one path in a batch relay. Failed paths
// carry the status and title their error would be reported with.
type RelayBatchItem struct {
	Path   string `json:"path"`
	Status int    `json:"status"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
	Body   any    `json:"body,omitempty"`
}

// NewRelayBatchFailure classifies err for one batch item.
func NewRelayBatchFailure(path string, err error) RelayBatchItem {
	pt := ResolveProblemType(err)

	return RelayBatchItem{
		Path:   path,
		Status: pt.Status,
		Title:  pt.Title,
		Detail: err.Error(),
	}
}

// HandleError hands err to the problem details middleware and stops the
// handler chain. The middleware writes the response.
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
