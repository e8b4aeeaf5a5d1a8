package ports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/logging"
)

// ErrDuplicateChecker is returned when attempting to register a health checker
// with a name that is already registered.
var ErrDuplicateChecker = errors.New("duplicate health checker")

// HealthChecker is implemented by components that can report their health.
// Adapters register themselves with the HealthRegistry at startup.
//
// Example implementation:
//
//	type DatabaseAdapter struct { ... }
//
//	func (d *DatabaseAdapter) Name() string { return "postgres" }
//
//	func (d *DatabaseAdapter) Check(ctx context.Context) error {
//	    return d.db.PingContext(ctx)
//	}
type HealthChecker interface {
	// Name returns a unique identifier for this health check.
	// Used in health check responses to identify which component failed.
	Name() string

	// Check performs the health check and returns an error if unhealthy.
	// Implementations should respect context cancellation and deadlines.
	// A nil return indicates the component is healthy.
	Check(ctx context.Context) error
}

// TaggedChecker is implemented by checkers that label their entry.
type TaggedChecker interface {
	Tags() []string
}

// DescribedChecker is implemented by checkers that report extra detail on
// their entry.
type DescribedChecker interface {
	Description() string
	Data() map[string]any
}

// HealthRegistry aggregates health checks from multiple components.
// Components register themselves at startup, and the registry
// runs all checks when queried.
type HealthRegistry interface {
	// Register adds a health checker to the registry.
	// Returns an error if a checker with the same name is already registered.
	// Should be called during application startup.
	Register(checker HealthChecker) error

	// CheckAll runs all registered health checks and returns aggregated results.
	// Checks run concurrently with the provided context timeout.
	CheckAll(ctx context.Context) *HealthResult
}

// HealthStatus represents the overall health state.
type HealthStatus string

const (
	// HealthStatusHealthy indicates all checks passed.
	HealthStatusHealthy HealthStatus = "Healthy"

	// HealthStatusUnhealthy indicates critical checks failed.
	HealthStatusUnhealthy HealthStatus = "Unhealthy"
)

// HealthResult contains the aggregated health check results.
type HealthResult struct {
	// Status is the overall health status.
	Status HealthStatus `json:"status"`

	// TotalDuration is how long the whole run took.
	TotalDuration string `json:"totalDuration"`

	// Entries contains individual check results keyed by checker name.
	Entries map[string]*CheckResult `json:"entries"`
}

// Healthy reports whether every check passed.
func (r *HealthResult) Healthy() bool {
	return r.Status == HealthStatusHealthy
}

// CheckResult contains the result of a single health check.
type CheckResult struct {
	// Status is the health status of this component.
	Status HealthStatus `json:"status"`

	// Description is supplied by checkers implementing DescribedChecker.
	Description string `json:"description,omitempty"`

	// Duration is how long the check took.
	Duration string `json:"duration"`

	// Data is supplied by checkers implementing DescribedChecker.
	Data map[string]any `json:"data,omitempty"`

	// Tags is supplied by checkers implementing TaggedChecker.
	Tags []string `json:"tags,omitempty"`

	// ExceptionMessage is the check's error, if any.
	ExceptionMessage string `json:"exceptionMessage,omitempty"`
}

// DefaultHealthRegistry is a thread-safe implementation of HealthRegistry.
type DefaultHealthRegistry struct {
	mu       sync.RWMutex
	checkers []HealthChecker
	logger   *logging.Logger
}

// NewHealthRegistry creates a new health registry. Failed checks are
// reported on logger, which may be nil.
func NewHealthRegistry(logger *logging.Logger) *DefaultHealthRegistry {
	return &DefaultHealthRegistry{
		checkers: make([]HealthChecker, 0),
		logger:   logger,
	}
}

// Register adds a health checker to the registry.
// Returns an error if a checker with the same name is already registered.
func (r *DefaultHealthRegistry) Register(checker HealthChecker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := checker.Name()
	for _, c := range r.checkers {
		if c.Name() == name {
			return fmt.Errorf("%w: %s", ErrDuplicateChecker, name)
		}
	}

	r.checkers = append(r.checkers, checker)

	return nil
}

// CheckAll runs all registered health checks concurrently.
func (r *DefaultHealthRegistry) CheckAll(ctx context.Context) *HealthResult {
	r.mu.RLock()
	checkers := make([]HealthChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	start := time.Now()

	result := &HealthResult{
		Status:  HealthStatusHealthy,
		Entries: make(map[string]*CheckResult, len(checkers)),
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)

	for _, checker := range checkers {
		g.Go(func() error {
			entry := r.run(ctx, checker)

			mu.Lock()
			defer mu.Unlock()

			result.Entries[checker.Name()] = entry
			if entry.Status == HealthStatusUnhealthy {
				result.Status = HealthStatusUnhealthy
			}

			// A failing check never cancels the others.
			return nil
		})
	}

	_ = g.Wait()

	result.TotalDuration = time.Since(start).String()

	return result
}

func (r *DefaultHealthRegistry) run(ctx context.Context, checker HealthChecker) *CheckResult {
	start := time.Now()
	err := checker.Check(ctx)
	duration := time.Since(start)

	entry := &CheckResult{
		Status:   HealthStatusHealthy,
		Duration: duration.String(),
	}

	if tagged, ok := checker.(TaggedChecker); ok {
		entry.Tags = tagged.Tags()
	}

	if described, ok := checker.(DescribedChecker); ok {
		entry.Description = described.Description()
		entry.Data = described.Data()
	}

	if err != nil {
		entry.Status = HealthStatusUnhealthy
		entry.ExceptionMessage = err.Error()

		r.logger.LogError(ctx, "health check failed", err,
			logging.At("HealthRegistry"),
			logging.WithData(map[string]any{
				"check":       checker.Name(),
				"duration_ms": duration.Milliseconds(),
			}),
		)
	}

	return entry
}

// ComponentChecker reports the component settings the service runs with.
// It is always healthy and labels its entry with the application name and
// environment.
type ComponentChecker struct {
	application string
	environment string
	version     string
}

// NewComponentChecker returns a checker for the given component settings.
func NewComponentChecker(application, environment, version string) *ComponentChecker {
	return &ComponentChecker{application: application, environment: environment, version: version}
}

// Name implements HealthChecker.
func (c *ComponentChecker) Name() string {
	return "component"
}

// Check implements HealthChecker.
func (c *ComponentChecker) Check(context.Context) error {
	return nil
}

// Tags implements TaggedChecker.
func (c *ComponentChecker) Tags() []string {
	return []string{
		"ApplicationName: " + c.application,
		"Environment: " + c.environment,
	}
}

// Description implements DescribedChecker.
func (c *ComponentChecker) Description() string {
	return "component settings"
}

// Data implements DescribedChecker.
func (c *ComponentChecker) Data() map[string]any {
	return map[string]any{"version": c.version}
}
