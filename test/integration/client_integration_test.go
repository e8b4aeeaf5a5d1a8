//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/clients"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/logging"
)

// testClientConfig returns a minimal config for integration testing.
func testClientConfig(baseURL string) *clients.Config {
	return &clients.Config{
		ServiceName: "integration-test-service",
		BaseURL:     baseURL,
		Timeout:     5 * time.Second,
	}
}

// TestClient_RoundTrip_Integration verifies JSON encoding of the request
// body and decoding of the response.
func TestClient_RoundTrip_Integration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["message"]})
	}))
	defer server.Close()

	client, err := clients.New(testClientConfig(server.URL))
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, client.Post(context.Background(), "/echo", map[string]string{"message": "hi"}, &out))

	assert.Equal(t, "hi", out["echo"])
}

// TestClient_Timeout_SlowResponse verifies that requests to a slow server
// fail once the configured timeout elapses.
func TestClient_Timeout_SlowResponse(t *testing.T) {
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	cfg := testClientConfig(server.URL)
	cfg.Timeout = 100 * time.Millisecond

	client, err := clients.New(cfg)
	require.NoError(t, err)

	start := time.Now()
	err = client.Get(context.Background(), "/slow", nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 2*time.Second)
}

// TestClient_CorrelationPropagation_Integration verifies that the ambient
// correlation ID travels in the configured header, and that no header is
// invented when the context carries none.
func TestClient_CorrelationPropagation_Integration(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		ctx      func() context.Context
		explicit string
		want     string
	}{
		{
			name:   "default header",
			header: "",
			ctx: func() context.Context {
				return ambient.SetCorrelationID(ambient.NewScope(context.Background()), "corr-456")
			},
			want: "corr-456",
		},
		{
			name:   "custom header",
			header: "X-Trace-Token",
			ctx: func() context.Context {
				return ambient.SetCorrelationID(ambient.NewScope(context.Background()), "corr-789")
			},
			want: "corr-789",
		},
		{
			name:   "no ambient scope",
			header: "",
			ctx:    context.Background,
			want:   "",
		},
		{
			name:   "explicit header wins",
			header: "",
			ctx: func() context.Context {
				return ambient.SetCorrelationID(ambient.NewScope(context.Background()), "ambient-1")
			},
			explicit: "explicit-1",
			want:     "explicit-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == "" {
				header = clients.DefaultCorrelationHeader
			}

			received := make(chan string, 1)

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				received <- r.Header.Get(header)
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			cfg := testClientConfig(server.URL)
			cfg.CorrelationHeader = tt.header

			client, err := clients.New(cfg)
			require.NoError(t, err)

			ctx := tt.ctx()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/headers", http.NoBody)
			require.NoError(t, err)

			if tt.explicit != "" {
				req.Header.Set(header, tt.explicit)
			}

			require.NoError(t, client.Do(ctx, req, nil))
			assert.Equal(t, tt.want, <-received)
		})
	}
}

// TestClient_UnsuccessfulResponse_Integration verifies that non-2xx
// responses surface the status and raw body, and are logged.
func TestClient_UnsuccessfulResponse_Integration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer server.Close()

	sink := &logging.RecordingSink{}

	cfg := testClientConfig(server.URL)
	cfg.Logger = logging.NewLogger(sink)

	client, err := clients.New(cfg)
	require.NoError(t, err)

	err = client.Get(context.Background(), "/pot", nil)

	respErr, ok := clients.AsUnsuccessfulResponse(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTeapot, respErr.StatusCode)
	assert.Equal(t, "short and stout", respErr.ResponseMessage)
	require.ErrorIs(t, err, clients.ErrUnsuccessfulResponse)

	entries := sink.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, "downstream returned unsuccessful status", entries[len(entries)-1].Message)
}

// TestClient_AuthFunc_Integration verifies that AuthFunc runs on every request.
func TestClient_AuthFunc_Integration(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer integration-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.AuthFunc = func(req *http.Request) {
		calls.Add(1)
		req.Header.Set("Authorization", "Bearer integration-token")
	}

	client, err := clients.New(cfg)
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, client.Get(context.Background(), "/secure", nil))
	}

	assert.Equal(t, int32(3), calls.Load())
}

// TestClient_ContextCancellation_Integration verifies that requests
// are properly cancelled when the context is cancelled.
func TestClient_ContextCancellation_Integration(t *testing.T) {
	requestStarted := make(chan struct{})
	requestCompleted := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(requestStarted)
		<-r.Context().Done() // Wait for cancellation
		close(requestCompleted)
	}))
	defer server.Close()

	client, err := clients.New(testClientConfig(server.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-requestStarted
		cancel()
	}()

	start := time.Now()
	err = client.Get(ctx, "/cancel", nil)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, elapsed, time.Second, "cancellation should be prompt")

	select {
	case <-requestCompleted:
	case <-time.After(time.Second):
		t.Fatal("server did not receive cancellation")
	}
}
