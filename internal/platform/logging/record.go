package logging

import (
	"context"
	"log/slog"
	"maps"
	"time"
)

// Record is a single log entry handed to a Sink. A Record is built once per
// logging call and must not be modified by sinks.
type Record struct {
	Time     time.Time
	Level    slog.Level
	Message  string
	Location string         // free-form caller identifier, e.g. a method name
	Data     map[string]any // structured context
	Err      error
}

// Option sets optional fields on a Record.
type Option func(*Record)

// At sets the record location.
func At(location string) Option {
	return func(r *Record) {
		r.Location = location
	}
}

// WithData merges data into the record's structured context.
func WithData(data map[string]any) Option {
	return func(r *Record) {
		if len(data) == 0 {
			return
		}

		if r.Data == nil {
			r.Data = make(map[string]any, len(data))
		}

		maps.Copy(r.Data, data)
	}
}

// With adds a single key to the record's structured context.
func With(key string, value any) Option {
	return func(r *Record) {
		if r.Data == nil {
			r.Data = make(map[string]any, 1)
		}

		r.Data[key] = value
	}
}

// Sink emits records. It is the single primitive a logging backend
// implements; threshold filtering is the sink's responsibility.
type Sink interface {
	LogSync(ctx context.Context, rec Record)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, rec Record)

// LogSync calls f.
func (f SinkFunc) LogSync(ctx context.Context, rec Record) {
	f(ctx, rec)
}

// Logger is the synchronous logging API used across the service. Every
// method builds a Record and forwards it to the sink; the call returns once
// the sink has handled it.
//
// Ambient values (application, environment, correlation ID) are read by the
// sink from ctx at emission time.
type Logger struct {
	sink Sink
}

// NewLogger returns a Logger forwarding to sink.
func NewLogger(sink Sink) *Logger {
	return &Logger{sink: sink}
}

// LogSync forwards rec to the sink. A nil Logger discards the record.
func (l *Logger) LogSync(ctx context.Context, rec Record) { //nolint:gocritic // Record is passed by value to keep it immutable
	if l == nil || l.sink == nil {
		return
	}

	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	l.sink.LogSync(ctx, rec)
}

// LogCritical logs at critical level.
func (l *Logger) LogCritical(ctx context.Context, msg string, err error, opts ...Option) {
	l.log(ctx, LevelCritical, msg, err, opts)
}

// LogError logs at error level.
func (l *Logger) LogError(ctx context.Context, msg string, err error, opts ...Option) {
	l.log(ctx, slog.LevelError, msg, err, opts)
}

// LogWarning logs at warning level.
func (l *Logger) LogWarning(ctx context.Context, msg string, err error, opts ...Option) {
	l.log(ctx, slog.LevelWarn, msg, err, opts)
}

// LogInformation logs at information level.
func (l *Logger) LogInformation(ctx context.Context, msg string, opts ...Option) {
	l.log(ctx, slog.LevelInfo, msg, nil, opts)
}

// LogDebug logs at debug level.
func (l *Logger) LogDebug(ctx context.Context, msg string, opts ...Option) {
	l.log(ctx, slog.LevelDebug, msg, nil, opts)
}

// LogTrace logs at trace level.
func (l *Logger) LogTrace(ctx context.Context, msg string, opts ...Option) {
	l.log(ctx, LevelTrace, msg, nil, opts)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, err error, opts []Option) {
	rec := Record{
		Level:   level,
		Message: msg,
		Err:     err,
	}

	for _, opt := range opts {
		opt(&rec)
	}

	l.LogSync(ctx, rec)
}

// Factory creates loggers bound to a category, typically a component name.
type Factory interface {
	CreateForCategory(category string) *Logger
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(category string) *Logger

// CreateForCategory calls f.
func (f FactoryFunc) CreateForCategory(category string) *Logger {
	return f(category)
}
