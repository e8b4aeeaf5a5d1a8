package acl

import (
	"context"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/clients"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/domain"
)

// BaseAdapter pairs a REST client with the service name used in translated
// errors. Adapters embed it.
type BaseAdapter struct {
	client      *clients.Client
	serviceName string
}

func NewBaseAdapter(client *clients.Client) BaseAdapter {
	return BaseAdapter{client: client, serviceName: client.ServiceName()}
}

func (a *BaseAdapter) Client() *clients.Client { return a.client }

func (a *BaseAdapter) ServiceName() string { return a.serviceName }

// Get decodes the response at path into out. Any failure comes back already
// translated by MapClientError.
func (a *BaseAdapter) Get(ctx context.Context, path, operation, entityID string, out any) error {
	err := a.client.Get(ctx, path, out)

	return MapClientError(err, a.serviceName, operation, entityID)
}

// ValidateRequired rejects an empty value with a domain.ValidationError for
// fieldName.
func ValidateRequired(value, fieldName string) error {
	if value != "" {
		return nil
	}

	return domain.NewValidationError(fieldName, "is required")
}
