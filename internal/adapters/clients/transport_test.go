package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
)

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// capture returns a RoundTripper recording the last request it saw.
func capture(got **http.Request) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		*got = r
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
	})
}

func TestTransport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		header        string
		ambientID     string
		explicitValue string
		expected      []string
	}{
		{
			name:      "stamps ambient correlation ID",
			ambientID: "abc-123",
			expected:  []string{"abc-123"},
		},
		{
			name:          "explicit header wins",
			ambientID:     "abc-123",
			explicitValue: "caller-set",
			expected:      []string{"caller-set"},
		},
		{
			name:     "no ambient ID is a no-op",
			expected: nil,
		},
		{
			name:      "custom header",
			header:    "X-Request-Chain",
			ambientID: "chain-1",
			expected:  []string{"chain-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			header := tt.header
			if header == "" {
				header = DefaultCorrelationHeader
			}

			ctx := ambient.NewScope(context.Background())
			if tt.ambientID != "" {
				ambient.SetCorrelationID(ctx, tt.ambientID)
			}

			req := httptest.NewRequest(http.MethodGet, "http://downstream/x", nil).WithContext(ctx)
			if tt.explicitValue != "" {
				req.Header.Set(header, tt.explicitValue)
			}

			var sent *http.Request

			resp, err := NewTransport(capture(&sent), tt.header).RoundTrip(req)
			require.NoError(t, err)
			_ = resp.Body.Close()

			require.NotNil(t, sent)
			assert.Equal(t, tt.expected, sent.Header.Values(header))
		})
	}
}

func TestTransport_DoesNotMutateCallerRequest(t *testing.T) {
	t.Parallel()

	ctx := ambient.SetCorrelationID(ambient.NewScope(context.Background()), "abc-123")
	req := httptest.NewRequest(http.MethodGet, "http://downstream/x", nil).WithContext(ctx)

	var sent *http.Request

	resp, err := NewTransport(capture(&sent), "").RoundTrip(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Empty(t, req.Header.Get(DefaultCorrelationHeader))
	assert.Equal(t, "abc-123", sent.Header.Get(DefaultCorrelationHeader))
}

func TestTransport_WithoutScope(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "http://downstream/x", nil)

	var sent *http.Request

	resp, err := NewTransport(capture(&sent), "").RoundTrip(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Same(t, req, sent)
	assert.Empty(t, sent.Header.Values(DefaultCorrelationHeader))
}

func TestTransport_ValueVisibleFromOtherGoroutine(t *testing.T) {
	t.Parallel()

	var received string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get(DefaultCorrelationHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client := &http.Client{Transport: NewInstrumentedTransport(nil, "")}
	ctx := ambient.NewScope(context.Background())

	// Set before handing the context to another goroutine.
	ambient.SetCorrelationID(ctx, "async-1")

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, http.NoBody)
		if !assert.NoError(t, err) {
			return
		}

		resp, err := client.Do(req)
		if assert.NoError(t, err) {
			_ = resp.Body.Close()
		}
	}()

	wg.Wait()

	assert.Equal(t, "async-1", received)
}

func TestDefaultTransport(t *testing.T) {
	t.Parallel()

	a, ok := DefaultTransport().(*http.Transport)
	require.True(t, ok)
	assert.NotSame(t, http.DefaultTransport, a)
}
