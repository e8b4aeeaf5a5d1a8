package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/domain"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/logging"
)

const testURNPart = "orders:production"

// newPipeline builds the request pipeline in production order around handler.
func newPipeline(sink logging.Sink, handler gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(
		AmbientScope("orders", "production"),
		ProblemDetails(ProblemOptions{ApplicationURNPart: testURNPart, Logger: logging.NewLogger(sink)}),
		Correlation(""),
	)
	router.GET("/test", handler)

	return router
}

func serve(t *testing.T, router http.Handler, correlationID string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)

	if correlationID != "" {
		req.Header.Set(HeaderCorrelationID, correlationID)
	}

	router.ServeHTTP(w, req)

	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) dto.ProblemDetails {
	t.Helper()

	var problem dto.ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem), w.Body.String())

	return problem
}

func TestProblemDetails_NotFoundScenario(t *testing.T) {
	t.Parallel()

	sink := &logging.RecordingSink{}
	router := newPipeline(sink, func(c *gin.Context) {
		_ = c.Error(domain.NewNotFoundError("order", "42"))
	})

	w := serve(t, router, "abc-123")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderCorrelationID))
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	problem := decodeProblem(t, w)
	assert.True(t, strings.HasSuffix(problem.Type, "/404"))
	assert.Equal(t, dto.TitleNotFound, problem.Title)
	assert.Equal(t, http.StatusNotFound, problem.Status)
	assert.Equal(t, `order with id "42" not found`, problem.Detail)
	assert.Contains(t, problem.Instance, "correlation-id:abc-123")
	assert.True(t, strings.HasPrefix(problem.Instance, "urn:"+testURNPart+":instance:"))

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Exception thrown", entries[0].Message)
	assert.Equal(t, slog.LevelError, entries[0].Level)
	assert.Equal(t, "ProblemDetails", entries[0].Location)
	assert.True(t, domain.IsNotFound(entries[0].Err))
	assert.Equal(t, "abc-123", entries[0].Ambient["CorrelationId"])

	logged, ok := entries[0].Data["problemDetails"].(*dto.ProblemDetails)
	require.True(t, ok)
	assert.Equal(t, problem.Instance, logged.Instance)
}

func TestProblemDetails_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantTitle  string
	}{
		{"business rule", domain.NewBusinessRuleError("limit", "too many"), http.StatusBadRequest, dto.TitleBusinessRule},
		{"validation", domain.NewValidationError("name", "required"), http.StatusBadRequest, dto.TitleValidation},
		{"not found", domain.NewNotFoundError("order", "1"), http.StatusNotFound, dto.TitleNotFound},
		{"authentication", domain.NewAuthenticationError("no subject"), http.StatusUnauthorized, dto.TitleUnauthorized},
		{"wrapped validation", fmt.Errorf("decoding: %w", domain.NewValidationError("", "bad")), http.StatusBadRequest, dto.TitleValidation},
		{"conflict is reserved", domain.NewConflictError("order", "exists"), http.StatusInternalServerError, dto.TitleInternal},
		{"rate limit is reserved", domain.NewRateLimitError("10/s"), http.StatusInternalServerError, dto.TitleInternal},
		{"unavailable", domain.NewUnavailableError("inventory", "502"), http.StatusInternalServerError, dto.TitleInternal},
		{"generic", errors.New("boom"), http.StatusInternalServerError, dto.TitleInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := newPipeline(&logging.RecordingSink{}, func(c *gin.Context) {
				_ = c.Error(tt.err)
			})

			w := serve(t, router, "")

			assert.Equal(t, tt.wantStatus, w.Code)

			problem := decodeProblem(t, w)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantTitle, problem.Title)
			assert.Equal(t, dto.ProblemTypeURI(tt.wantStatus), problem.Type)
			assert.Equal(t, tt.err.Error(), problem.Detail)

			// The generated correlation ID is reported in the instance.
			assert.True(t, strings.HasSuffix(problem.Instance, ":correlation-id:"+w.Header().Get(HeaderCorrelationID)))
		})
	}
}

func TestProblemDetails_LastErrorWins(t *testing.T) {
	t.Parallel()

	router := newPipeline(&logging.RecordingSink{}, func(c *gin.Context) {
		_ = c.Error(domain.NewValidationError("a", "b"))
		_ = c.Error(domain.NewNotFoundError("order", "7"))
	})

	w := serve(t, router, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProblemDetails_Panics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		value      any
		wantStatus int
		wantDetail string
	}{
		{"string value", "boom", http.StatusInternalServerError, "panic: boom"},
		{"error value", domain.NewBusinessRuleError("", "rejected"), http.StatusBadRequest, "rejected"},
		{"generic error", errors.New("nil map"), http.StatusInternalServerError, "nil map"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &logging.RecordingSink{}
			router := newPipeline(sink, func(*gin.Context) {
				panic(tt.value)
			})

			w := serve(t, router, "panic-1")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "panic-1", w.Header().Get(HeaderCorrelationID))
			assert.Equal(t, tt.wantDetail, decodeProblem(t, w).Detail)

			entries := sink.Entries()
			require.Len(t, entries, 1)
			assert.Contains(t, entries[0].Data, "stack")
		})
	}
}

func TestProblemDetails_AbortHandlerPanicPropagates(t *testing.T) {
	t.Parallel()

	router := newPipeline(&logging.RecordingSink{}, func(*gin.Context) {
		panic(http.ErrAbortHandler)
	})

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(t, router, "")
	})
}

func TestProblemDetails_AggregateUnwrapping(t *testing.T) {
	t.Parallel()

	t.Run("single inner error is unwrapped", func(t *testing.T) {
		t.Parallel()

		inner := domain.NewNotFoundError("order", "9")
		sink := &logging.RecordingSink{}
		router := newPipeline(sink, func(c *gin.Context) {
			_ = c.Error(errors.Join(inner))
		})

		w := serve(t, router, "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, inner.Error(), decodeProblem(t, w).Detail)

		entries := sink.Entries()
		require.Len(t, entries, 1)
		assert.Same(t, inner, entries[0].Err)
	})

	t.Run("only one level is unwrapped", func(t *testing.T) {
		t.Parallel()

		inner := errors.Join(domain.NewNotFoundError("order", "9"))
		outer := errors.Join(inner)

		sink := &logging.RecordingSink{}
		router := newPipeline(sink, func(c *gin.Context) {
			_ = c.Error(outer)
		})

		serve(t, router, "")

		entries := sink.Entries()
		require.Len(t, entries, 1)
		assert.Same(t, inner, entries[0].Err)
	})

	t.Run("several errors are kept together", func(t *testing.T) {
		t.Parallel()

		agg := errors.Join(errors.New("first"), errors.New("second"))
		sink := &logging.RecordingSink{}
		router := newPipeline(sink, func(c *gin.Context) {
			_ = c.Error(agg)
		})

		w := serve(t, router, "")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "first\nsecond", decodeProblem(t, w).Detail)
	})
}

func TestProblemDetails_InstancesAreDistinct(t *testing.T) {
	t.Parallel()

	router := newPipeline(&logging.RecordingSink{}, func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	first := decodeProblem(t, serve(t, router, "same-id"))
	second := decodeProblem(t, serve(t, router, "same-id"))

	assert.NotEqual(t, first.Instance, second.Instance)
	assert.True(t, strings.HasSuffix(first.Instance, ":correlation-id:same-id"))
	assert.True(t, strings.HasSuffix(second.Instance, ":correlation-id:same-id"))
}

func TestProblemDetails_UnknownCorrelationID(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(ProblemDetails(ProblemOptions{ApplicationURNPart: testURNPart, Logger: logging.NewLogger(&logging.RecordingSink{})}))
	router.GET("/test", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	w := serve(t, router, "")

	problem := decodeProblem(t, w)
	assert.True(t, strings.HasSuffix(problem.Instance, ":correlation-id:unknown"))
}

func TestProblemDetails_FlushedBodyIsKept(t *testing.T) {
	t.Parallel()

	sink := &logging.RecordingSink{}
	router := newPipeline(sink, func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		_ = c.Error(errors.New("late failure"))
	})

	w := serve(t, router, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial", w.Body.String())
	assert.Len(t, sink.Entries(), 1)
}

func TestProblemDetails_UnwrittenStatusIsOverridden(t *testing.T) {
	t.Parallel()

	router := newPipeline(&logging.RecordingSink{}, func(c *gin.Context) {
		c.Status(http.StatusAccepted)
		c.Header("X-Handler", "kept")
		_ = c.Error(domain.NewValidationError("q", "bad"))
	})

	w := serve(t, router, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "kept", w.Header().Get("X-Handler"))
}

func TestProblemDetails_LoggerFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	failing := logging.SinkFunc(func(context.Context, logging.Record) {
		panic("sink down")
	})

	router := newPipeline(failing, func(c *gin.Context) {
		_ = c.Error(domain.NewNotFoundError("order", "1"))
	})

	var w *httptest.ResponseRecorder

	assert.NotPanics(t, func() {
		w = serve(t, router, "sink-1")
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.TitleNotFound, decodeProblem(t, w).Title)
}

func TestProblemDetails_SuccessIsUntouched(t *testing.T) {
	t.Parallel()

	sink := &logging.RecordingSink{}
	router := newPipeline(sink, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	w := serve(t, router, "ok-1")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Empty(t, sink.Entries())
}

func TestProblemDetails_TeakettleBypassesTranslation(t *testing.T) {
	t.Parallel()

	sink := &logging.RecordingSink{}
	router := newPipeline(sink, func(c *gin.Context) {
		_ = c.Error(errors.New("unreachable"))
	})

	w := serve(t, router, "TeaKettle-123")

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, sink.Entries())
}

func TestProblemDetails_CountsResponses(t *testing.T) {
	// Not parallel: reads a process-wide counter.
	counter := problemResponses.WithLabelValues("401")
	before := testutil.ToFloat64(counter)

	router := newPipeline(&logging.RecordingSink{}, func(c *gin.Context) {
		_ = c.Error(domain.NewAuthenticationError(""))
	})

	serve(t, router, "")
	serve(t, router, "")

	assert.InDelta(t, before+2, testutil.ToFloat64(counter), 0.001)
}

func TestProblemDetails_DefaultLogger(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(ProblemDetails(ProblemOptions{}))
	router.GET("/test", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	w := serve(t, router, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, strings.HasPrefix(decodeProblem(t, w).Instance, "urn::instance:"))
}
