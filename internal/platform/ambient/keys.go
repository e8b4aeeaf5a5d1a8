package ambient

import "context"

// Well-known ambient keys.
const (
	KeyApplication   = "Application"
	KeyEnvironment   = "Environment"
	KeyCorrelationID = "CorrelationId"
)

// Application returns the application name visible from ctx.
func Application(ctx context.Context) string {
	return Get[string](ctx, KeyApplication)
}

// SetApplication stores the application name.
func SetApplication(ctx context.Context, name string) context.Context {
	return Set(ctx, KeyApplication, name)
}

// Environment returns the deployment environment visible from ctx.
func Environment(ctx context.Context) string {
	return Get[string](ctx, KeyEnvironment)
}

// SetEnvironment stores the deployment environment.
func SetEnvironment(ctx context.Context, env string) context.Context {
	return Set(ctx, KeyEnvironment, env)
}

// CorrelationID returns the correlation ID visible from ctx, or "" if none
// has been assigned.
func CorrelationID(ctx context.Context) string {
	return Get[string](ctx, KeyCorrelationID)
}

// SetCorrelationID stores the correlation ID. It is written once per scope,
// normally by the correlation middleware; later writes to the same scope are
// ignored. A different ID needs a child scope.
func SetCorrelationID(ctx context.Context, id string) context.Context {
	return setOnce(ctx, KeyCorrelationID, id)
}
