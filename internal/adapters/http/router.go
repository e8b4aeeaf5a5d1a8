package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/http/handlers"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/http/middleware"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/config"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/logging"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Loggers creates the request and problem loggers.
	Loggers logging.Factory

	// AppConfig contains the component settings.
	AppConfig *config.AppConfig

	// AuthConfig contains authentication header configuration.
	AuthConfig *config.AuthConfig

	// CorrelationHeader is the inbound and outbound correlation header.
	CorrelationHeader string

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// DiagnosticsHandler handles the /api/v1 diagnostics endpoints.
	DiagnosticsHandler *handlers.DiagnosticsHandler

	// Timeout is the default request timeout.
	Timeout time.Duration

	// Tracing enables the OpenTelemetry middleware.
	Tracing bool
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Ambient scope - per-request scope seeded with the component settings
//  2. Logging - request logging (skips health endpoints)
//  3. Problem details - the catch boundary for errors and panics
//  4. Correlation - establish the correlation ID and stamp the response
//  5. OpenTelemetry - tracing and metrics
//  6. Timeout and auth - per-group on /api/v1
//
// Route groups:
//   - /-/ (internal): Health endpoints, no auth required
//   - /health: Full health report
//   - /api/v1/ (public API): Diagnostics endpoints, auth when enabled
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.AmbientScope(cfg.AppConfig.Name, cfg.AppConfig.Environment),
		middleware.Logging(cfg.Loggers.CreateForCategory("RequestLogging")),
		middleware.ProblemDetails(middleware.ProblemOptions{
			ApplicationURNPart: cfg.AppConfig.URNPart(),
			Logger:             cfg.Loggers.CreateForCategory("ProblemDetails"),
		}),
		middleware.Correlation(cfg.CorrelationHeader),
	)

	if cfg.Tracing {
		engine.Use(telemetry.Middleware(cfg.AppConfig.Name)...)
	}

	engine.NoRoute(NoRoute)

	// Register health endpoints (no auth, no timeout for probes)
	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout))
	}

	if cfg.AuthConfig != nil && cfg.AuthConfig.Enabled {
		apiV1.Use(middleware.RequireAuth(cfg.AuthConfig))
	}

	setupAPIRoutes(apiV1, cfg)
}

// setupAPIRoutes registers business API routes.
func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.DiagnosticsHandler != nil {
		cfg.DiagnosticsHandler.RegisterRoutes(rg)
	}
}

// NewDefaultRouterConfig creates a RouterConfig with sensible defaults.
func NewDefaultRouterConfig(
	loggers logging.Factory,
	appCfg *config.AppConfig,
	authCfg *config.AuthConfig,
	healthHandler *handlers.HealthHandler,
	diagnosticsHandler *handlers.DiagnosticsHandler,
) RouterConfig {
	return RouterConfig{
		Loggers:            loggers,
		AppConfig:          appCfg,
		AuthConfig:         authCfg,
		CorrelationHeader:  config.DefaultCorrelationHeader,
		HealthHandler:      healthHandler,
		DiagnosticsHandler: diagnosticsHandler,
		Timeout:            DefaultRequestTimeout,
	}
}
