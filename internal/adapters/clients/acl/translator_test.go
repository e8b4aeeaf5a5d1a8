package acl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/clients"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/domain"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/logging"
)

// newTestClient returns a client for a test server running handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *clients.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := clients.New(&clients.Config{
		ServiceName: "test-service",
		BaseURL:     server.URL + "/api/",
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)

	return client
}

func unsuccessful(status int, body string) error {
	return fmt.Errorf("wrapped: %w", &clients.UnsuccessfulResponseError{
		URL:             "http://downstream/api/x",
		StatusCode:      status,
		ResponseMessage: body,
	})
}

// --- Error Mapping Tests ---

func TestMapClientError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"404", unsuccessful(http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"user not found"}}`), domain.ErrNotFound},
		{"401", unsuccessful(http.StatusUnauthorized, ""), domain.ErrAuthentication},
		{"409", unsuccessful(http.StatusConflict, `{"code":"CONFLICT","message":"email exists"}`), domain.ErrConflict},
		{"400", unsuccessful(http.StatusBadRequest, `{"message":"bad input"}`), domain.ErrValidation},
		{"422", unsuccessful(http.StatusUnprocessableEntity, ""), domain.ErrValidation},
		{"429", unsuccessful(http.StatusTooManyRequests, ""), domain.ErrRateLimit},
		{"500", unsuccessful(http.StatusInternalServerError, ""), domain.ErrUnavailable},
		{"503", unsuccessful(http.StatusServiceUnavailable, `{"title":"maintenance"}`), domain.ErrUnavailable},
		{"transport failure", errors.New("connection refused"), domain.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := MapClientError(tt.err, "user-service", "get user", "user-123")
			require.ErrorIs(t, err, tt.target)
		})
	}
}

func TestMapClientError_Nil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, MapClientError(nil, "svc", "op", "id"))
}

func TestMapClientError_NotFoundCarriesEntity(t *testing.T) {
	t.Parallel()

	err := MapClientError(unsuccessful(http.StatusNotFound, ""), "user-service", "get user", "user-123")

	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "user-service", notFound.Resource)
	assert.Equal(t, "user-123", notFound.ResourceID)
}

func TestMapClientError_UsesBodyMessage(t *testing.T) {
	t.Parallel()

	err := MapClientError(unsuccessful(http.StatusServiceUnavailable, `{"detail":"down for maintenance"}`), "svc", "op", "")

	var unavailable *domain.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "down for maintenance", unavailable.Reason)
}

func TestMapClientError_DefaultMessage(t *testing.T) {
	t.Parallel()

	err := MapClientError(unsuccessful(http.StatusServiceUnavailable, "<html>"), "svc", "op", "")

	var unavailable *domain.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "service temporarily unavailable", unavailable.Reason)
}

func TestMapClientError_ValidationDetails(t *testing.T) {
	t.Parallel()

	body := `{
		"error": {
			"code": "VALIDATION_ERROR",
			"message": "validation failed",
			"details": {"name": "too short", "email": "invalid format"}
		}
	}`

	err := MapClientError(unsuccessful(http.StatusBadRequest, body), "svc", "create user", "")

	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "email", validation.Field)
	assert.Equal(t, "invalid format", validation.Message)
}

func TestMapClientError_UntranslatedErrors(t *testing.T) {
	t.Parallel()

	var syntaxErr *json.SyntaxError
	decodeErr := json.Unmarshal([]byte("{"), &struct{}{})
	require.ErrorAs(t, decodeErr, &syntaxErr)

	tests := []struct {
		name string
		err  error
	}{
		{"forbidden", unsuccessful(http.StatusForbidden, "")},
		{"redirect", unsuccessful(http.StatusFound, "")},
		{"decode failure", fmt.Errorf("decoding response: %w", decodeErr)},
		{"invalid config", fmt.Errorf("%w: bad", clients.ErrInvalidConfig)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := MapClientError(tt.err, "svc", "op", "")
			require.Error(t, err)
			assert.False(t, domain.IsUnavailable(err))
			assert.False(t, domain.IsNotFound(err))
			assert.False(t, domain.IsValidation(err))
			assert.Contains(t, err.Error(), "svc op")
		})
	}
}

func TestParseErrorResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantNil bool
		code    string
		message string
	}{
		{"empty", "", true, "", ""},
		{"whitespace", "  \n", true, "", ""},
		{"not json", "<html>", true, "", ""},
		{"no data", `{"other":1}`, true, "", ""},
		{"nested", `{"error":{"code":"NOT_FOUND","message":"gone"}}`, false, "NOT_FOUND", "gone"},
		{"flat", `{"code":"CONFLICT","message":"taken"}`, false, "CONFLICT", "taken"},
		{"problem detail", `{"title":"Bad","detail":"missing name"}`, false, "", "missing name"},
		{"problem title", `{"title":"Bad"}`, false, "", "Bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := ParseErrorResponse(tt.body)
			if tt.wantNil {
				assert.Nil(t, resp)
				return
			}

			require.NotNil(t, resp)
			assert.Equal(t, tt.code, resp.GetCode())
			assert.Equal(t, tt.message, resp.GetMessage())
		})
	}
}

func TestErrorResponse_FieldError(t *testing.T) {
	t.Parallel()

	var nilResp *ErrorResponse
	_, _, ok := nilResp.FieldError()
	assert.False(t, ok)

	resp := ParseErrorResponse(`{"error":{"message":"bad","details":{"sku":"unknown","qty":"negative"}}}`)
	require.NotNil(t, resp)

	field, msg, ok := resp.FieldError()
	require.True(t, ok)
	assert.Equal(t, "qty", field)
	assert.Equal(t, "negative", msg)
}

func TestValidateRequired(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateRequired("value", "field"))

	err := ValidateRequired("", "field")

	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "field", validation.Field)
}

// --- Adapter Tests ---

func TestBaseAdapter(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	adapter := NewBaseAdapter(client)
	assert.Same(t, client, adapter.Client())
	assert.Equal(t, "test-service", adapter.ServiceName())

	var out map[string]bool
	require.NoError(t, adapter.Get(context.Background(), "present", "get", "", &out))
	assert.True(t, out["ok"])

	err := adapter.Get(context.Background(), "missing", "get", "missing", &out)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewDownstreamAdapter_PanicsWithoutClient(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewDownstreamAdapter(DownstreamConfig{}) })
}

func TestDownstreamAdapter_Fetch(t *testing.T) {
	t.Parallel()

	var gotPath, gotCID string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCID = r.Header.Get(clients.DefaultCorrelationHeader)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42","items":[1,2]}`))
	})

	sink := &logging.RecordingSink{}
	adapter := NewDownstreamAdapter(DownstreamConfig{Client: client, Logger: logging.NewLogger(sink)})

	ctx := ambient.SetCorrelationID(context.Background(), "fetch-1")

	doc, err := adapter.Fetch(ctx, "/orders/42")
	require.NoError(t, err)

	assert.Equal(t, "/api/orders/42", gotPath)
	assert.Equal(t, "fetch-1", gotCID)
	assert.Equal(t, "test-service", doc.Service)
	assert.Equal(t, "orders/42", doc.Path)

	body, ok := doc.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "42", body["id"])

	entries := sink.Entries()
	require.Len(t, entries, 2)

	for _, e := range entries {
		assert.Equal(t, "DownstreamAdapter.Fetch", e.Location)
		assert.Equal(t, "fetch-1", e.Ambient[ambient.KeyCorrelationID])
	}
}

func TestDownstreamAdapter_FetchErrors(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/api/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte("{not json"))
		}
	})

	adapter := NewDownstreamAdapter(DownstreamConfig{Client: client})
	ctx := context.Background()

	_, err := adapter.Fetch(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = adapter.Fetch(ctx, "broken")
	require.ErrorIs(t, err, domain.ErrUnavailable)

	_, err = adapter.Fetch(ctx, "garbled")
	require.Error(t, err)
	assert.False(t, domain.IsUnavailable(err))

	_, err = adapter.Fetch(ctx, "/")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestDownstreamAdapter_HealthCheck(t *testing.T) {
	t.Parallel()

	healthy := true

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	adapter := NewDownstreamAdapter(DownstreamConfig{Client: client, HealthPath: "status"})

	assert.Equal(t, "test-service", adapter.Name())
	assert.Equal(t, []string{"downstream"}, adapter.Tags())
	require.NoError(t, adapter.Check(context.Background()))

	healthy = false

	require.ErrorIs(t, adapter.Check(context.Background()), domain.ErrUnavailable)
}

func TestDownstreamAdapter_DefaultHealthPath(t *testing.T) {
	t.Parallel()

	var gotPath string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	})

	adapter := NewDownstreamAdapter(DownstreamConfig{Client: client})
	require.NoError(t, adapter.Check(context.Background()))
	assert.Equal(t, "/api/health", gotPath)
}
