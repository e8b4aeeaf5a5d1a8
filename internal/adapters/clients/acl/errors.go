package acl

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/adapters/clients"
	"github.com/jsamuelsen/go-ambient-pipeline/internal/domain"
)

// ErrorResponse is the error body of a downstream service. Three shapes are
// understood: {"error":{"code","message","details"}}, {"code","message"} and
// problem details {"title","detail"}.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Title   string      `json:"title,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *ErrorResponse) GetCode() string {
	return firstNonEmpty(e.Error.Code, e.Code)
}

func (e *ErrorResponse) GetMessage() string {
	return firstNonEmpty(e.Error.Message, e.Message, e.Detail, e.Title)
}

// FieldError returns the alphabetically first field-level detail, if any.
func (e *ErrorResponse) FieldError() (field, message string, ok bool) {
	if e == nil || len(e.Error.Details) == 0 {
		return "", "", false
	}

	fields := make([]string, 0, len(e.Error.Details))
	for f := range e.Error.Details {
		fields = append(fields, f)
	}

	slices.Sort(fields)

	return fields[0], e.Error.Details[fields[0]], true
}

// ParseErrorResponse decodes body, returning nil when it is blank, not JSON,
// or carries neither a code nor a message.
func ParseErrorResponse(body string) *ErrorResponse {
	if strings.TrimSpace(body) == "" {
		return nil
	}

	var resp ErrorResponse
	if json.Unmarshal([]byte(body), &resp) != nil {
		return nil
	}

	if resp.GetCode() == "" && resp.GetMessage() == "" {
		return nil
	}

	return &resp
}

// failure is one unsuccessful downstream call being translated.
type failure struct {
	status    int
	body      *ErrorResponse
	service   string
	operation string
	entityID  string
}

func (f *failure) message() string {
	if f.body != nil {
		if msg := f.body.GetMessage(); msg != "" {
			return msg
		}
	}

	if msg, ok := statusMessages[f.status]; ok {
		return msg
	}

	return fmt.Sprintf("%s failed with status %d", f.operation, f.status)
}

var statusMessages = map[int]string{
	http.StatusBadRequest:         "invalid request",
	http.StatusUnauthorized:       "authentication required",
	http.StatusNotFound:           "resource not found",
	http.StatusConflict:           "resource conflict",
	http.StatusServiceUnavailable: "service temporarily unavailable",
}

// statusTranslations maps downstream statuses onto domain errors. A status
// missing here is translated only when it is a 5xx.
var statusTranslations = map[int]func(*failure) error{
	http.StatusNotFound: func(f *failure) error {
		return domain.NewNotFoundError(f.service, f.entityID)
	},
	http.StatusUnauthorized: func(f *failure) error {
		return domain.NewAuthenticationError(f.message())
	},
	http.StatusConflict: func(f *failure) error {
		return domain.NewConflictError(f.service, f.message())
	},
	http.StatusBadRequest:          validationFailure,
	http.StatusUnprocessableEntity: validationFailure,
	http.StatusTooManyRequests: func(f *failure) error {
		return domain.NewRateLimitError(f.service)
	},
}

func validationFailure(f *failure) error {
	if field, msg, ok := f.body.FieldError(); ok {
		return domain.NewValidationError(field, msg)
	}

	return domain.NewValidationError("", f.message())
}

// MapClientError turns a REST client error into a domain error so callers
// above the ACL never see downstream statuses.
//
// Unsuccessful responses are translated by status. Transport failures become
// domain.ErrUnavailable. Decode failures, configuration errors, 403 and
// statuses without a rule are wrapped untranslated and surface as internal
// errors.
func MapClientError(err error, serviceName, operation, entityID string) error {
	if err == nil {
		return nil
	}

	respErr, ok := clients.AsUnsuccessfulResponse(err)
	if !ok {
		if errors.Is(err, clients.ErrInvalidConfig) || isDecodeError(err) {
			return fmt.Errorf("%s %s: %w", serviceName, operation, err)
		}

		return domain.NewUnavailableError(serviceName, fmt.Sprintf("%s failed: %v", operation, err))
	}

	f := &failure{
		status:    respErr.StatusCode,
		body:      ParseErrorResponse(respErr.ResponseMessage),
		service:   serviceName,
		operation: operation,
		entityID:  entityID,
	}

	if translate, ok := statusTranslations[f.status]; ok {
		return translate(f)
	}

	if f.status >= http.StatusInternalServerError {
		return domain.NewUnavailableError(serviceName, f.message())
	}

	return fmt.Errorf("%s %s: unexpected status %d: %s", serviceName, operation, f.status, f.message())
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
