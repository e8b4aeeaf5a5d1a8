package logging

import (
	"context"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
)

// ContextHandler is an slog.Handler that redacts secrets and adds the
// ambient application, environment and correlation ID, plus the active trace
// ID, to every record. Ambient values are read from the context passed to
// Handle, so loggers created before a request started still log that
// request's values.
//
// It is the only redaction stage: backend handlers get no masq ReplaceAttr.
type ContextHandler struct {
	next   slog.Handler
	redact func([]string, slog.Attr) slog.Attr
	groups []string
}

// NewContextHandler wraps next with redaction and ambient enrichment.
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next, redact: NewReplaceAttr()}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle rebuilds r with redacted attributes, appends the ambient ones and
// passes it on.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(h.groups, a))
		return true
	})

	if ctx != nil {
		out.AddAttrs(ambientAttrs(ctx)...)
	}

	return h.next.Handle(ctx, out)
}

// WithAttrs redacts attrs before handing them to the wrapped handler, which
// never sees them again in Handle.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(h.groups, a)
	}

	return &ContextHandler{next: h.next.WithAttrs(redacted), redact: h.redact, groups: h.groups}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	return &ContextHandler{
		next:   h.next.WithGroup(name),
		redact: h.redact,
		groups: append(slices.Clip(h.groups), name),
	}
}

// redactAttr applies the redactor to a leaf attribute and descends into
// groups, the way slog's own handlers call ReplaceAttr.
func (h *ContextHandler) redactAttr(groups []string, a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() != slog.KindGroup {
		return h.redact(groups, a)
	}

	inner := groups
	if a.Key != "" {
		inner = append(slices.Clip(groups), a.Key)
	}

	members := a.Value.Group()
	out := make([]slog.Attr, len(members))

	for i, m := range members {
		out[i] = h.redactAttr(inner, m)
	}

	return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
}

func ambientAttrs(ctx context.Context) []slog.Attr {
	attrs := make([]slog.Attr, 0, 4)

	if v := ambient.Application(ctx); v != "" {
		attrs = append(attrs, slog.String("application", v))
	}

	if v := ambient.Environment(ctx); v != "" {
		attrs = append(attrs, slog.String("environment", v))
	}

	if v := ambient.CorrelationID(ctx); v != "" {
		attrs = append(attrs, slog.String("correlation_id", v))
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
	}

	return attrs
}
