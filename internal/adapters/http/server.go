// Package http provides the HTTP adapter layer using Gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/config"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/logging"
)

// Server runs the Gin engine behind an http.Server whose base context is the
// root ambient scope.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	config     *config.ServerConfig
	logger     *logging.Logger
	root       context.Context

	mu       sync.Mutex
	listener net.Listener
}

// New builds the server. Application and environment from app are written
// once to the root scope; each request gets a child scope of it, so request
// writes never reach the root.
func New(cfg *config.ServerConfig, app *config.AppConfig, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(maxBodySize(cfg.MaxRequestSize))

	root := RootContext(context.Background(), app)

	return &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			Handler:           engine,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			BaseContext:       func(net.Listener) context.Context { return root },
		},
		config: cfg,
		logger: logger,
		root:   root,
	}
}

// RootContext attaches a fresh ambient scope to parent holding the component
// settings. A nil app leaves the scope empty.
func RootContext(parent context.Context, app *config.AppConfig) context.Context {
	ctx := ambient.NewScope(parent)
	if app != nil {
		ctx = ambient.SetApplication(ctx, app.Name)
		ctx = ambient.SetEnvironment(ctx, app.Environment)
	}

	return ctx
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) Config() *config.ServerConfig { return s.config }

// Context is the root ambient context. Log lines outside a request use it.
func (s *Server) Context() context.Context { return s.root }

// Start binds the listener and serves on a background goroutine. A bind
// failure or a serve error other than http.ErrServerClosed is delivered on
// the returned channel, which is closed once serving stops.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		errCh <- fmt.Errorf("http server listen: %w", err)
		close(errCh)

		return errCh
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.LogInformation(s.root, "starting HTTP server",
		logging.At("Server.Start"),
		logging.WithData(map[string]any{
			"addr":          ln.Addr().String(),
			"read_timeout":  s.config.ReadTimeout.String(),
			"write_timeout": s.config.WriteTimeout.String(),
		}),
	)

	go func() {
		defer close(errCh)

		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	return errCh
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.LogInformation(s.root, "shutting down HTTP server", logging.At("Server.Shutdown"))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.LogInformation(s.root, "HTTP server stopped", logging.At("Server.Shutdown"))

	return nil
}

// Addr is the bound address once Start succeeded, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.httpServer.Addr
}

func maxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
