package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/app"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/ports"
)

// DiagnosticsHandler exposes the diagnostics use cases. Every failure is
// handed to the problem details middleware via dto.HandleError.
type DiagnosticsHandler struct {
	service *app.DiagnosticsService
}

// NewDiagnosticsHandler creates a new diagnostics handler.
func NewDiagnosticsHandler(service *app.DiagnosticsService) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		service: service,
	}
}

// Context handles GET /api/v1/context.
// Returns the ambient values visible to the request.
//
// @Summary Show ambient context
// @Tags diagnostics
// @Produce json
// @Success 200 {object} dto.ContextResponse
// @Router /api/v1/context [get]
func (h *DiagnosticsHandler) Context(c *gin.Context) {
	report := h.service.Context(c.Request.Context())

	c.JSON(http.StatusOK, dto.ContextResponse{
		Application:   report.Application,
		Environment:   report.Environment,
		CorrelationID: report.CorrelationID,
		Values:        report.Values,
	})
}

// Echo handles POST /api/v1/echo.
//
// @Summary Echo a message
// @Tags diagnostics
// @Accept json
// @Produce json
// @Param request body dto.EchoRequest true "Message"
// @Success 200 {object} dto.EchoResponse
// @Failure 400 {object} dto.ProblemDetails
// @Router /api/v1/echo [post]
func (h *DiagnosticsHandler) Echo(c *gin.Context) {
	var req dto.EchoRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, err)
		return
	}

	result, err := h.service.Echo(c.Request.Context(), req.Message)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.EchoResponse{
		Message:       result.Message,
		CorrelationID: result.CorrelationID,
	})
}

// Relay handles GET /api/v1/downstream/*path.
// Relays the request to the downstream service.
//
// @Summary Relay to the downstream service
// @Tags diagnostics
// @Produce json
// @Param path path string true "Downstream path"
// @Success 200 {object} dto.RelayResponse
// @Failure 400 {object} dto.ProblemDetails
// @Failure 401 {object} dto.ProblemDetails
// @Failure 404 {object} dto.ProblemDetails
// @Failure 500 {object} dto.ProblemDetails
// @Router /api/v1/downstream/{path} [get]
func (h *DiagnosticsHandler) Relay(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if c.Request.URL.RawQuery != "" {
		path += "?" + c.Request.URL.RawQuery
	}

	doc, err := h.service.Relay(c.Request.Context(), path)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRelayResponse(doc))
}

// RelayBatch handles POST /api/v1/downstream.
// Relays every path concurrently and reports each outcome. The response is
// 200 even when some paths fail.
//
// @Summary Relay several paths to the downstream service
// @Tags diagnostics
// @Accept json
// @Produce json
// @Param request body dto.RelayBatchRequest true "Paths"
// @Success 200 {array} dto.RelayBatchItem
// @Failure 400 {object} dto.ProblemDetails
// @Router /api/v1/downstream [post]
func (h *DiagnosticsHandler) RelayBatch(c *gin.Context) {
	var req dto.RelayBatchRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, err)
		return
	}

	results := h.service.RelayAll(c.Request.Context(), req.Paths)

	items := make([]dto.RelayBatchItem, len(results))
	for i, r := range results {
		if r.Err != nil {
			items[i] = dto.NewRelayBatchFailure(r.Path, r.Err)
			continue
		}

		items[i] = dto.RelayBatchItem{Path: r.Path, Status: http.StatusOK, Body: r.Document.Body}
	}

	c.JSON(http.StatusOK, items)
}

func toRelayResponse(doc *ports.DownstreamDocument) dto.RelayResponse {
	return dto.RelayResponse{
		Service: doc.Service,
		Path:    doc.Path,
		Body:    doc.Body,
	}
}

// RegisterRoutes registers the diagnostics routes on rg.
//   - GET /context
//   - POST /echo
//   - GET /downstream/*path
//   - POST /downstream
func (h *DiagnosticsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/context", h.Context)
	rg.POST("/echo", h.Echo)
	rg.GET("/downstream/*path", h.Relay)
	rg.POST("/downstream", h.RelayBatch)
}
