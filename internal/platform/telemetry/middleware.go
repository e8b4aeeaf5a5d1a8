package telemetry

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
)

const (
	instrumentationName = "github.com/jsamuelsen/go-ambient-pipeline/internal/platform/telemetry"

	// HeaderTraceID is the response header echoing the server span's trace ID.
	HeaderTraceID = "X-Trace-ID"

	// AttrCorrelationID tags the server span with the correlation ID.
	AttrCorrelationID = "correlation.id"
)

type serverMetrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	active   metric.Int64UpDownCounter
}

func newServerMetrics(meter metric.Meter) (*serverMetrics, error) {
	var (
		m   serverMetrics
		err error
	)

	if m.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.total, err = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.active, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// Middleware returns otelgin followed by a handler that tags the server span
// with the ambient values, echoes the trace ID in X-Trace-ID and records
// request metrics on the global meter provider.
//
// Install it after Correlation so the correlation ID is already set.
func Middleware(serviceName string, opts ...otelgin.Option) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		otelgin.Middleware(serviceName, opts...),
		ambientSpan(otel.GetMeterProvider().Meter(instrumentationName)),
	}
}

func ambientSpan(meter metric.Meter) gin.HandlerFunc {
	m, err := newServerMetrics(meter)
	if err != nil {
		// Spans still get tagged without metrics.
		otel.Handle(err)
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		span := trace.SpanFromContext(ctx)
		span.SetAttributes(
			attribute.String(AttrCorrelationID, ambient.CorrelationID(ctx)),
			attribute.String("service.application", ambient.Application(ctx)),
			attribute.String("deployment.environment", ambient.Environment(ctx)),
		)

		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Header(HeaderTraceID, sc.TraceID().String())
		}

		if m == nil {
			c.Next()
			return
		}

		route := attribute.String("http.route", c.FullPath())
		method := attribute.String("http.method", c.Request.Method)
		inFlight := metric.WithAttributes(method, route)

		start := time.Now()

		m.active.Add(ctx, 1, inFlight)
		defer m.active.Add(ctx, -1, inFlight)

		c.Next()

		done := metric.WithAttributes(method, route, attribute.Int("http.status_code", c.Writer.Status()))
		m.duration.Record(ctx, time.Since(start).Seconds(), done)
		m.total.Add(ctx, 1, done)
	}
}
