package acl

import (
	"context"
	"strings"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/clients"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/logging"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/ports"
)

// defaultHealthPath is requested by Check when no health path is configured.
const defaultHealthPath = "health"

// DownstreamConfig contains configuration for the downstream adapter.
type DownstreamConfig struct {
	// Client is the REST client for the downstream service.
	// The client's BaseURL should be set to the service root.
	Client *clients.Client

	// HealthPath is requested by Check. Defaults to "health".
	HealthPath string

	// Logger receives trace records around each request. Optional.
	Logger *logging.Logger
}

// DownstreamAdapter implements ports.DownstreamClient and ports.HealthChecker
// for the configured downstream service.
type DownstreamAdapter struct {
	BaseAdapter

	healthPath string
	logger     *logging.Logger
}

// NewDownstreamAdapter creates a new downstream adapter.
// Panics if Client is nil.
func NewDownstreamAdapter(cfg DownstreamConfig) *DownstreamAdapter {
	if cfg.Client == nil {
		panic("DownstreamAdapter: Client is required")
	}

	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = defaultHealthPath
	}

	return &DownstreamAdapter{
		BaseAdapter: NewBaseAdapter(cfg.Client),
		healthPath:  healthPath,
		logger:      cfg.Logger,
	}
}

// Fetch retrieves the JSON document at path.
// Implements ports.DownstreamClient.
func (a *DownstreamAdapter) Fetch(ctx context.Context, path string) (*ports.DownstreamDocument, error) {
	// Paths are always relative to the service's base URL.
	path = strings.TrimLeft(path, "/")

	if err := ValidateRequired(path, "path"); err != nil {
		return nil, err
	}

	a.logger.LogTrace(ctx, "starting request", logging.At("DownstreamAdapter.Fetch"), logging.With("path", path))

	var body any

	if err := a.Get(ctx, path, "fetch document", path, &body); err != nil {
		return nil, err
	}

	a.logger.LogTrace(ctx, "request complete", logging.At("DownstreamAdapter.Fetch"), logging.With("path", path))

	return a.translateToDomain(path, body), nil
}

// translateToDomain wraps the decoded document in the domain type.
func (a *DownstreamAdapter) translateToDomain(path string, body any) *ports.DownstreamDocument {
	return &ports.DownstreamDocument{
		Service: a.ServiceName(),
		Path:    path,
		Body:    body,
	}
}

// Name returns the health check name for this adapter.
// Implements ports.HealthChecker.
func (a *DownstreamAdapter) Name() string {
	return a.ServiceName()
}

// Check requests the downstream health path.
// Implements ports.HealthChecker.
func (a *DownstreamAdapter) Check(ctx context.Context) error {
	return a.Get(ctx, a.healthPath, "health check", "", nil)
}

// Tags implements ports.TaggedChecker.
func (a *DownstreamAdapter) Tags() []string {
	return []string{"downstream"}
}
