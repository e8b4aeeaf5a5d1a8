package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/config"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/logging"
)

const (
	// instrumentationName is used for OpenTelemetry tracer and meter.
	instrumentationName = "github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/clients"

	// httpStatusCategoryDivisor divides status code to get category (2xx, 4xx, 5xx).
	httpStatusCategoryDivisor = 100

	// defaultTimeout is the default request timeout if not configured.
	defaultTimeout = 30 * time.Second

	// defaultMaxResponseBytes bounds how much of a response body is read.
	defaultMaxResponseBytes = 10 << 20

	contentTypeJSON = "application/json"
)

// Config configures an HTTP client instance.
type Config struct {
	// BaseURL is the absolute URL relative request paths are resolved
	// against (e.g., "https://api.example.com/v1/").
	BaseURL string

	// ServiceName identifies the downstream service for logging and tracing.
	ServiceName string

	// Timeout is the request timeout.
	Timeout time.Duration

	// Transport configures the connection pool. Zero values use the
	// defaults of http.DefaultTransport.
	Transport config.TransportConfig

	// CorrelationHeader is the header the correlation ID is propagated in.
	CorrelationHeader string

	// MaxResponseBytes caps the response body size. Larger bodies fail
	// with ErrResponseTooLarge. Zero uses 10 MiB.
	MaxResponseBytes int64

	// AuthFunc is an optional function to inject authentication into requests.
	AuthFunc func(*http.Request)

	// Logger is an optional logger. If nil, records are discarded.
	Logger *logging.Logger
}

// Client is a JSON REST client for downstream services.
// It provides:
//   - Correlation ID propagation from the ambient scope
//   - OpenTelemetry tracing and metrics
//   - Reference resolution of request paths against the base URL
//   - Translation of non-2xx responses into UnsuccessfulResponseError
type Client struct {
	http        *http.Client
	baseURL     *url.URL
	serviceName string
	cfg         *Config
	logger      *logging.Logger

	tracer trace.Tracer

	// Metrics
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// New creates a new REST client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}

	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("%w: service name is required", ErrInvalidConfig)
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || !baseURL.IsAbs() {
		return nil, fmt.Errorf("%w: base URL %q must be absolute", ErrInvalidConfig, cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	meter := otel.Meter(instrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of HTTP client requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration metric: %w", err)
	}

	requestTotal, err := meter.Int64Counter(
		"http.client.request.total",
		metric.WithDescription("Total number of HTTP client requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: NewInstrumentedTransport(newPooledTransport(cfg.Transport), cfg.CorrelationHeader),
	}

	return &Client{
		http:            httpClient,
		baseURL:         baseURL,
		serviceName:     cfg.ServiceName,
		cfg:             cfg,
		logger:          cfg.Logger,
		tracer:          otel.Tracer(instrumentationName),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

func newPooledTransport(tc config.TransportConfig) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // http.DefaultTransport is always *http.Transport

	if tc.MaxIdleConns > 0 {
		t.MaxIdleConns = tc.MaxIdleConns
	}

	if tc.MaxIdleConnsPerHost > 0 {
		t.MaxIdleConnsPerHost = tc.MaxIdleConnsPerHost
	}

	if tc.IdleConnTimeout > 0 {
		t.IdleConnTimeout = tc.IdleConnTimeout
	}

	return t
}

// ServiceName returns the downstream service name.
func (c *Client) ServiceName() string {
	return c.serviceName
}

// ResolveReference resolves path against the base URL following RFC 3986,
// so "orders/1" keeps the base path and "/orders/1" replaces it.
func (c *Client) ResolveReference(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parsing path %q: %w", path, err)
	}

	return c.baseURL.ResolveReference(ref).String(), nil
}

// Get performs an HTTP GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.send(ctx, http.MethodGet, path, nil, out)
}

// Post performs an HTTP POST request with in encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.send(ctx, http.MethodPost, path, in, out)
}

// Put performs an HTTP PUT request with in encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.send(ctx, http.MethodPut, path, in, out)
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.send(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) send(ctx context.Context, method, path string, in, out any) error {
	target, err := c.ResolveReference(path)
	if err != nil {
		return err
	}

	var payload io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}

		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", contentTypeJSON)

	if in != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	return c.Do(ctx, req, out)
}

// Do executes req and decodes a JSON response body into out.
//   - A non-2xx status returns *UnsuccessfulResponseError with the raw body
//   - A 204 or empty body leaves out untouched, as does a nil out
//   - A body that does not decode into out is returned as an error
func (c *Client) Do(ctx context.Context, req *http.Request, out any) error {
	startTime := time.Now()
	target := req.URL.String()

	if c.cfg.AuthFunc != nil {
		c.cfg.AuthFunc(req)
	}

	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("HTTP %s %s", req.Method, c.serviceName),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", target),
			attribute.String("peer.service", c.serviceName),
		),
	)
	defer span.End()

	logOpts := []logging.Option{
		logging.At(c.serviceName),
		logging.WithData(map[string]any{
			"method": req.Method,
			"url":    target,
		}),
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.recordMetrics(ctx, req.Method, 0, time.Since(startTime), "error")
		c.logger.LogError(ctx, "downstream request failed", err, logOpts...)

		return fmt.Errorf("%s %s: %w", req.Method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := readBody(resp.Body, c.maxResponseBytes())
	duration := time.Since(startTime)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	logOpts = append(logOpts,
		logging.With("status", resp.StatusCode),
		logging.With("duration_ms", duration.Milliseconds()),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.recordMetrics(ctx, req.Method, resp.StatusCode, duration, "error")
		c.logger.LogError(ctx, "reading downstream response failed", err, logOpts...)

		return fmt.Errorf("reading response from %s: %w", target, err)
	}

	c.recordMetrics(ctx, req.Method, resp.StatusCode, duration,
		strconv.Itoa(resp.StatusCode/httpStatusCategoryDivisor)+"xx")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respErr := &UnsuccessfulResponseError{
			URL:             target,
			StatusCode:      resp.StatusCode,
			ResponseMessage: string(raw),
		}

		span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(resp.StatusCode))
		c.logger.LogWarning(ctx, "downstream returned unsuccessful status", respErr, logOpts...)

		return respErr
	}

	c.logger.LogDebug(ctx, "downstream request completed", logOpts...)

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", target, err)
	}

	return nil
}

func (c *Client) maxResponseBytes() int64 {
	if c.cfg.MaxResponseBytes > 0 {
		return c.cfg.MaxResponseBytes
	}

	return defaultMaxResponseBytes
}

// readBody reads at most limit bytes. One byte past the limit means the
// body was cut short, which is reported rather than decoded.
func readBody(body io.Reader, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}

	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, limit)
	}

	return raw, nil
}

// recordMetrics records request metrics.
func (c *Client) recordMetrics(ctx context.Context, method string, statusCode int, duration time.Duration, result string) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("peer.service", c.serviceName),
		attribute.String("result", result),
	}

	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	c.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	c.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
