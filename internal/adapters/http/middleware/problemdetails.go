package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/logging"
)

// unknownCorrelationID is used when no correlation ID was established.
const unknownCorrelationID = "unknown"

var problemResponses = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pipeline_problem_responses_total",
	Help: "Number of errors translated into problem responses, by status.",
}, []string{"status"})

// ProblemOptions configures ProblemDetails.
type ProblemOptions struct {
	// ApplicationURNPart is "<application>:<environment>", used to build
	// problem instance URNs.
	ApplicationURNPart string

	// Logger receives one record per translated error. Defaults to a
	// console logger on slog.Default().
	Logger *logging.Logger
}

// ProblemDetails returns middleware that turns every error escaping the rest
// of the chain into a problem JSON response. Errors are:
//   - Panics (non-error values are wrapped)
//   - The last error attached with c.Error
//
// Each error is classified with dto.ResolveProblemType, logged once at error
// level with message "Exception thrown", and written as the response body
// unless the handler already flushed a body.
//
// This middleware should run outside Correlation so the correlation ID is
// resolved before any error is translated.
func ProblemDetails(opts ProblemOptions) gin.HandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewConsoleFactory(nil).CreateForCategory("ProblemDetails")
	}

	p := &problemTranslator{urnPart: opts.ApplicationURNPart, logger: logger}

	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			// The server aborts the response silently on this value.
			if r == http.ErrAbortHandler { //nolint:errorlint,err113 // sentinel compared by identity
				panic(r)
			}

			p.translate(c, panicError(r), debug.Stack())
		}()

		c.Next()

		if last := c.Errors.Last(); last != nil {
			p.translate(c, last.Err, nil)
		}
	}
}

type problemTranslator struct {
	urnPart string
	logger  *logging.Logger
}

func (p *problemTranslator) translate(c *gin.Context, err error, stack []byte) {
	err = unwrapSingle(err)
	ctx := requestContext(c)

	correlationID := ambient.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = unknownCorrelationID
	}

	problem := dto.NewProblemDetails(err, dto.InstanceURN(p.urnPart, correlationID))

	p.log(ctx, err, problem, stack)
	problemResponses.WithLabelValues(strconv.Itoa(problem.Status)).Inc()
	p.respond(c, problem)
}

// log emits the error record. A failing sink must not replace the problem
// response, so panics are reported on the context's slog logger instead.
func (p *problemTranslator) log(ctx context.Context, err error, problem *dto.ProblemDetails, stack []byte) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).ErrorContext(ctx, "logging problem details failed",
				slog.Any("panic", r),
				slog.String("instance", problem.Instance),
				slog.String("error", err.Error()),
			)
		}
	}()

	opts := []logging.Option{
		logging.At("ProblemDetails"),
		logging.With("problemDetails", problem),
	}
	if len(stack) > 0 {
		opts = append(opts, logging.With("stack", string(stack)))
	}

	p.logger.LogError(ctx, "Exception thrown", err, opts...)
}

func (p *problemTranslator) respond(c *gin.Context, problem *dto.ProblemDetails) {
	defer func() {
		if r := recover(); r != nil {
			ctx := requestContext(c)
			logging.FromContext(ctx).ErrorContext(ctx, "writing problem details failed",
				slog.Any("panic", r),
				slog.String("instance", problem.Instance),
			)
		}
	}()

	// A flushed body cannot be replaced.
	if c.Writer.Written() {
		c.Abort()
		return
	}

	c.AbortWithStatusJSON(problem.Status, problem)
}

// unwrapSingle unwraps an aggregate error holding exactly one error. Only
// one level is unwrapped.
func unwrapSingle(err error) error {
	multi, ok := err.(interface{ Unwrap() []error }) //nolint:errorlint // only the outermost error is inspected
	if ok {
		if errs := multi.Unwrap(); len(errs) == 1 && errs[0] != nil {
			return errs[0]
		}
	}

	return err
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}

	return fmt.Errorf("panic: %v", r)
}
