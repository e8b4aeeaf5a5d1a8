package clients

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
)

// DefaultCorrelationHeader is the header outbound requests carry the
// correlation ID in when no other header is configured.
const DefaultCorrelationHeader = "X-Correlation-ID"

type correlationTransport struct {
	next   http.RoundTripper
	header string
}

// RoundTrip stamps the ambient correlation ID onto the request. A header the
// caller set explicitly is never overwritten, and no ID is made up when the
// request context carries none.
func (t *correlationTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := ambient.CorrelationID(req.Context())

	if id != "" && len(req.Header.Values(t.header)) == 0 {
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set(t.header, id)
	}

	return t.next.RoundTrip(req)
}

// NewTransport returns a RoundTripper that propagates the correlation ID in
// header before delegating to next. A nil next uses a clone of
// http.DefaultTransport and an empty header uses DefaultCorrelationHeader.
func NewTransport(next http.RoundTripper, header string) http.RoundTripper {
	if next == nil {
		next = DefaultTransport()
	}

	if header == "" {
		header = DefaultCorrelationHeader
	}

	return &correlationTransport{next: next, header: header}
}

// NewInstrumentedTransport wraps NewTransport with OpenTelemetry client spans
// and trace context propagation.
func NewInstrumentedTransport(next http.RoundTripper, header string) http.RoundTripper {
	return otelhttp.NewTransport(NewTransport(next, header),
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		otelhttp.WithMeterProvider(otel.GetMeterProvider()),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
	)
}

// DefaultTransport returns a clone of the default HTTP transport.
func DefaultTransport() http.RoundTripper {
	return http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // http.DefaultTransport is always *http.Transport
}
