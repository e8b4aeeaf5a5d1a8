// Package app contains application services that orchestrate use cases.
// This is the application layer in Clean Architecture - it coordinates
// domain logic and infrastructure through ports.
//
// Application Layer Responsibilities:
//   - Orchestrate use cases (business workflows)
//   - Coordinate between domain and infrastructure
//   - Enforce business rules that span multiple entities
//
// What does NOT belong here:
//   - HTTP/gRPC specifics (that's adapters)
//   - Correlation and error translation (that's middleware)
//   - Core domain logic (that's the domain layer)
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/domain"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/logging"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/ports"
)

const (
	// reservedPrefix marks messages the echo use case refuses.
	reservedPrefix = "!"

	// defaultRelayLimit bounds concurrent downstream calls in RelayAll.
	defaultRelayLimit = 4
)

// DiagnosticsService exposes the request's ambient state and exercises the
// pipeline's error paths. It depends on port interfaces, not concrete
// implementations.
//
// Example usage:
//
//	adapter := acl.NewDownstreamAdapter(acl.DownstreamConfig{Client: client})
//	svc := app.NewDiagnosticsService(adapter, &app.ServiceConfig{Logger: logger})
//
//	// In HTTP handler
//	doc, err := svc.Relay(ctx, path)
type DiagnosticsService struct {
	downstream ports.DownstreamClient
	logger     *logging.Logger
	relayLimit int
}

// ServiceConfig holds optional configuration for the service.
type ServiceConfig struct {
	// Logger receives the service's records. Nil discards them.
	Logger *logging.Logger

	// RelayLimit bounds concurrent downstream calls in RelayAll.
	RelayLimit int
}

// NewDiagnosticsService creates a new diagnostics service. downstream may be
// nil when no downstream service is configured; relays then fail as
// unavailable.
func NewDiagnosticsService(downstream ports.DownstreamClient, cfg *ServiceConfig) *DiagnosticsService {
	svc := &DiagnosticsService{
		downstream: downstream,
		relayLimit: defaultRelayLimit,
	}

	if cfg != nil {
		svc.logger = cfg.Logger
		if cfg.RelayLimit > 0 {
			svc.relayLimit = cfg.RelayLimit
		}
	}

	return svc
}

// ContextReport is the ambient state visible to a request.
type ContextReport struct {
	Application   string
	Environment   string
	CorrelationID string

	// Values holds every ambient value, well-known keys included.
	Values map[string]any
}

// Context reports the ambient values visible from ctx.
func (s *DiagnosticsService) Context(ctx context.Context) *ContextReport {
	return &ContextReport{
		Application:   ambient.Application(ctx),
		Environment:   ambient.Environment(ctx),
		CorrelationID: ambient.CorrelationID(ctx),
		Values:        ambient.Snapshot(ctx),
	}
}

// EchoResult is an accepted echo message.
type EchoResult struct {
	Message       string
	CorrelationID string
}

// Echo returns message together with the request's correlation ID.
// Blank messages are a validation error and messages starting with the
// reserved prefix break a business rule.
func (s *DiagnosticsService) Echo(ctx context.Context, message string) (*EchoResult, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil, fmt.Errorf("validating echo: %w", domain.NewValidationError("message", "must not be blank"))
	}

	if strings.HasPrefix(trimmed, reservedPrefix) {
		return nil, domain.NewBusinessRuleError("reserved-prefix",
			fmt.Sprintf("messages starting with %q are reserved", reservedPrefix))
	}

	s.logger.LogInformation(ctx, "echo accepted",
		logging.At("DiagnosticsService.Echo"),
		logging.With("length", len(trimmed)),
	)

	return &EchoResult{
		Message:       trimmed,
		CorrelationID: ambient.CorrelationID(ctx),
	}, nil
}

// Relay fetches path from the downstream service. Downstream failures are
// returned as domain errors.
func (s *DiagnosticsService) Relay(ctx context.Context, path string) (*ports.DownstreamDocument, error) {
	if s.downstream == nil {
		return nil, domain.NewUnavailableError("downstream", "no downstream service configured")
	}

	doc, err := s.downstream.Fetch(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("relaying %q: %w", path, err)
	}

	return doc, nil
}

// RelayResult is the outcome of relaying one path.
type RelayResult struct {
	Path     string
	Document *ports.DownstreamDocument
	Err      error
}

// RelayAll relays every path concurrently. Each relay runs on its own
// goroutine with the caller's ambient scope, so outbound requests carry the
// caller's correlation ID. A failing path does not cancel the others.
func (s *DiagnosticsService) RelayAll(ctx context.Context, paths []string) []RelayResult {
	fns := make([]func(context.Context) (*ports.DownstreamDocument, error), len(paths))
	for i, path := range paths {
		fns[i] = func(ctx context.Context) (*ports.DownstreamDocument, error) {
			return s.Relay(ctx, path)
		}
	}

	partial := FanOut(ctx, s.relayLimit, fns...)

	results := make([]RelayResult, len(paths))
	failed := 0

	for i, r := range partial {
		results[i] = RelayResult{Path: paths[i], Document: r.Value, Err: r.Err}
		if r.Err != nil {
			failed++
		}
	}

	if failed > 0 {
		s.logger.LogWarning(ctx, "some relays failed", nil,
			logging.At("DiagnosticsService.RelayAll"),
			logging.WithData(map[string]any{"paths": len(paths), "failed": failed}),
		)
	}

	return results
}
