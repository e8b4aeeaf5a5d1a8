package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chainguard-dev/clog/gcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CloudConfig configures the Cloud Logging backend.
type CloudConfig struct {
	// ProjectID is the Google Cloud project receiving logs. Without it the
	// factory falls back to its fallback factory.
	ProjectID string

	// Level is the minimum level emitted.
	Level slog.Level

	// Handler overrides the Cloud Logging handler. Defaults to the clog
	// GCP handler writing structured JSON to stderr.
	Handler slog.Handler
}

// CloudFactory creates loggers that emit Cloud Logging structured entries
// and mirror each record onto the active trace span.
type CloudFactory struct {
	cfg      CloudConfig
	handler  slog.Handler
	fallback Factory
}

// NewCloudFactory returns a cloud logger factory. fallback is used when no
// project is configured; a nil fallback logs to slog.Default().
func NewCloudFactory(cfg CloudConfig, fallback Factory) *CloudFactory {
	if fallback == nil {
		fallback = NewConsoleFactory(nil)
	}

	handler := cfg.Handler
	if handler == nil {
		handler = gcp.NewHandler(cfg.Level)
	}

	return &CloudFactory{
		cfg:      cfg,
		handler:  NewContextHandler(handler),
		fallback: fallback,
	}
}

// CreateForCategory implements Factory.
func (f *CloudFactory) CreateForCategory(category string) *Logger {
	if f.cfg.ProjectID == "" {
		f.fallback.CreateForCategory("FallbackLogger").LogError(context.Background(),
			"no project id configured for cloud logging, falling back on console logger", nil)

		return f.fallback.CreateForCategory(category)
	}

	return NewLogger(&cloudSink{
		projectID: f.cfg.ProjectID,
		logger:    slog.New(f.handler).With(slog.String("category", category)),
	})
}

type cloudSink struct {
	projectID string
	logger    *slog.Logger
}

// LogSync implements Sink.
func (s *cloudSink) LogSync(ctx context.Context, rec Record) { //nolint:gocritic // Sink interface passes Record by value
	if ctx == nil {
		ctx = context.Background()
	}

	span := trace.SpanFromContext(ctx)
	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = gcp.WithTrace(ctx, fmt.Sprintf("projects/%s/traces/%s", s.projectID, sc.TraceID()))
	}

	if s.logger.Enabled(ctx, rec.Level) {
		_ = s.logger.Handler().Handle(ctx, toSlogRecord(&rec))
	}

	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("log.severity", LevelName(rec.Level)),
	}
	if rec.Location != "" {
		attrs = append(attrs, attribute.String("log.location", rec.Location))
	}

	span.AddEvent(rec.Message, trace.WithAttributes(attrs...))

	if rec.Err != nil {
		span.RecordError(rec.Err, trace.WithAttributes(attrs...))
	}
}
