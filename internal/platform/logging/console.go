package logging

import (
	"context"
	"log/slog"
	"slices"
)

// SlogSink emits records through an slog.Logger. Ambient enrichment is
// applied by the logger's handler (see NewContextHandler).
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink writing to logger under category.
func NewSlogSink(logger *slog.Logger, category string) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}

	if category != "" {
		logger = logger.With(slog.String("category", category))
	}

	return &SlogSink{logger: logger}
}

// LogSync implements Sink.
func (s *SlogSink) LogSync(ctx context.Context, rec Record) { //nolint:gocritic // Sink interface passes Record by value
	if ctx == nil {
		ctx = context.Background()
	}

	if !s.logger.Enabled(ctx, rec.Level) {
		return
	}

	_ = s.logger.Handler().Handle(ctx, toSlogRecord(&rec))
}

// toSlogRecord converts rec into an slog.Record with location, error and
// a "data" group sorted by key.
func toSlogRecord(rec *Record) slog.Record {
	r := slog.NewRecord(rec.Time, rec.Level, rec.Message, 0)

	if rec.Location != "" {
		r.AddAttrs(slog.String("location", rec.Location))
	}

	if rec.Err != nil {
		r.AddAttrs(slog.Any("error", rec.Err))
	}

	if len(rec.Data) > 0 {
		keys := make([]string, 0, len(rec.Data))
		for k := range rec.Data {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		data := make([]any, 0, len(keys))
		for _, k := range keys {
			data = append(data, slog.Any(k, rec.Data[k]))
		}

		r.AddAttrs(slog.Group("data", data...))
	}

	return r
}

// ConsoleFactory creates slog-backed loggers.
type ConsoleFactory struct {
	logger *slog.Logger
}

// NewConsoleFactory returns a factory whose loggers write through logger.
// A nil logger uses slog.Default().
func NewConsoleFactory(logger *slog.Logger) *ConsoleFactory {
	return &ConsoleFactory{logger: logger}
}

// CreateForCategory implements Factory.
func (f *ConsoleFactory) CreateForCategory(category string) *Logger {
	return NewLogger(NewSlogSink(f.logger, category))
}
