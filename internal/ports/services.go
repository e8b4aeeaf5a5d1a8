// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrValidation, etc.)
//   - Keep interfaces small and focused (Interface Segregation Principle)
package ports

import (
	"context"
)

// DownstreamClient relays requests to the configured downstream service.
// Adapters translate downstream failures into domain errors:
//   - 404 returns domain.ErrNotFound
//   - 401 returns domain.ErrAuthentication
//   - 400 returns domain.ErrValidation
//   - 5xx and transport failures return domain.ErrUnavailable
type DownstreamClient interface {
	// Fetch retrieves the document at path, relative to the service's base URL.
	// The request carries the caller's correlation ID.
	Fetch(ctx context.Context, path string) (*DownstreamDocument, error)
}

// DownstreamDocument is a document returned by the downstream service.
type DownstreamDocument struct {
	// Service is the downstream service name.
	Service string

	// Path is the requested path.
	Path string

	// Body is the decoded JSON document.
	Body any
}
