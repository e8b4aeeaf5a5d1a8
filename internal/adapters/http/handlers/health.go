// Package handlers provides HTTP request handlers for the service.
package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/ports"
)

// BuildInfo is served on /-/build. Version, Commit and BuildTime are set
// through ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// NewBuildInfo fills GoVersion from the running binary.
func NewBuildInfo(version, commit, buildTime string) BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

// HealthHandler serves the probe endpoints and the /health report.
type HealthHandler struct {
	registry  ports.HealthRegistry
	buildInfo BuildInfo
	started   time.Time
}

func NewHealthHandler(registry ports.HealthRegistry, buildInfo BuildInfo) *HealthHandler {
	return &HealthHandler{
		registry:  registry,
		buildInfo: buildInfo,
		started:   time.Now(),
	}
}

type livenessResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// Liveness answers 200 while the process runs. It never consults the
// registry; a failing dependency must not get the pod restarted.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, livenessResponse{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// Readiness runs every registered check and answers 503 when one fails.
func (h *HealthHandler) Readiness(c *gin.Context) {
	h.report(c, http.StatusServiceUnavailable)
}

// Health serves the full report on GET and POST /health. A failing check
// turns the status into 400.
func (h *HealthHandler) Health(c *gin.Context) {
	h.report(c, http.StatusBadRequest)
}

func (h *HealthHandler) report(c *gin.Context, failStatus int) {
	result := h.registry.CheckAll(c.Request.Context())

	if result.Healthy() {
		c.JSON(http.StatusOK, result)
		return
	}

	c.JSON(failStatus, result)
}

// BuildInfoHandler serves the build metadata.
func (h *HealthHandler) BuildInfoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.buildInfo)
}

// MetricsHandler exposes the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RegisterHealthRoutesOnEngine mounts the probes under /-/ and the health
// report on /health. None of them pass through the /api/v1 auth group.
func (h *HealthHandler) RegisterHealthRoutesOnEngine(engine *gin.Engine) {
	probes := engine.Group("/-")
	probes.GET("/live", h.Liveness)
	probes.GET("/ready", h.Readiness)
	probes.GET("/build", h.BuildInfoHandler)
	probes.GET("/metrics", gin.WrapH(MetricsHandler()))

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		engine.Handle(method, "/health", h.Health)
	}
}
