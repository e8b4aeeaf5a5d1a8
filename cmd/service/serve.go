package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/clients"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/clients/acl"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/http"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/http/handlers"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/app"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/config"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/logging"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/telemetry"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/ports"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	// 1. Load and validate configuration (fail fast)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 2. Initialize logging
	loggers := newLoggerFactory(cfg)
	logger := loggers.CreateForCategory("Service")

	root := http.RootContext(ctx, &cfg.App)

	logger.LogInformation(root, "starting service",
		logging.At("serve"),
		logging.WithData(map[string]any{
			"version": Version,
			"commit":  Commit,
			"profile": profile,
		}),
	)

	// 3. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		Insecure:     cfg.Telemetry.Insecure,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		// The signal context is already cancelled here.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		if shutdownErr := telProvider.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.LogError(root, "telemetry shutdown error", shutdownErr, logging.At("serve"))
		}
	}()

	// 4. Create health registry
	healthRegistry := ports.NewHealthRegistry(loggers.CreateForCategory("HealthChecks"))

	if err := healthRegistry.Register(ports.NewComponentChecker(cfg.App.Name, cfg.App.Environment, cfg.App.Version)); err != nil {
		return fmt.Errorf("registering component health check: %w", err)
	}

	// 5. Create REST client for the downstream service
	restClient, err := clients.New(&clients.Config{
		BaseURL:           cfg.Downstream.BaseURL,
		ServiceName:       cfg.Downstream.Name,
		Timeout:           cfg.Client.Timeout,
		Transport:         cfg.Client.Transport,
		CorrelationHeader: cfg.CorrelationHeader(),
		Logger:            loggers.CreateForCategory("RestClient"),
	})
	if err != nil {
		return fmt.Errorf("creating REST client: %w", err)
	}

	// 6. Wrap it in the downstream adapter (ACL pattern)
	downstream := acl.NewDownstreamAdapter(acl.DownstreamConfig{
		Client: restClient,
		Logger: loggers.CreateForCategory("DownstreamAdapter"),
	})

	if err := healthRegistry.Register(downstream); err != nil {
		return fmt.Errorf("registering downstream health check: %w", err)
	}

	// 7. Create the diagnostics service (application layer)
	diagnostics := app.NewDiagnosticsService(downstream, &app.ServiceConfig{
		Logger: loggers.CreateForCategory("DiagnosticsService"),
	})

	// 8. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo)
	diagnosticsHandler := handlers.NewDiagnosticsHandler(diagnostics)

	// 9. Create HTTP server
	server := http.New(&cfg.Server, &cfg.App, loggers.CreateForCategory("Server"))

	// 10. Setup router with all middleware and routes
	routerCfg := http.NewDefaultRouterConfig(loggers, &cfg.App, &cfg.Auth, healthHandler, diagnosticsHandler)
	routerCfg.CorrelationHeader = cfg.CorrelationHeader()
	routerCfg.Tracing = telProvider.Enabled()

	if cfg.Server.RequestTimeout > 0 {
		routerCfg.Timeout = cfg.Server.RequestTimeout
	}

	http.SetupRouter(server.Engine(), routerCfg)

	// 11. Start server (non-blocking)
	serverErr := server.Start()

	// 12. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)
}

// waitForShutdown blocks until ctx is cancelled by a shutdown signal or the
// server fails. It then performs graceful shutdown of the HTTP server.
func waitForShutdown(
	ctx context.Context,
	logger *logging.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	select {
	case err := <-serverErr:
		// Server error during startup or runtime
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.LogInformation(server.Context(), "received shutdown signal", logging.At("waitForShutdown"))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	logger.LogInformation(server.Context(), "initiating graceful shutdown",
		logging.At("waitForShutdown"),
		logging.With("timeout", shutdownTimeout.String()),
	)

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.LogInformation(server.Context(), "shutdown complete", logging.At("waitForShutdown"))

	return nil
}

// newLoggerFactory builds the logger factory for cfg.Log.Backend. The test
// backend only exists inside test binaries, so here it logs text to stderr.
func newLoggerFactory(cfg *config.Config) logging.Factory {
	logCfg := &logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	}

	var w io.Writer = os.Stdout
	if cfg.Log.Backend == config.LogBackendTest {
		logCfg.Format = "text"
		w = os.Stderr
	}

	console := logging.NewWithWriter(logCfg, w)

	// Records that bypass the Logger contract, such as a failing sink
	// report, go to the same output.
	logging.SetDefault(console)

	if cfg.Log.Backend == config.LogBackendCloud {
		return logging.NewCloudFactory(logging.CloudConfig{
			ProjectID: cfg.Log.Cloud.ProjectID,
			Level:     logging.ParseLevel(cfg.Log.Level),
		}, logging.NewConsoleFactory(console))
	}

	return logging.NewConsoleFactory(console)
}
