// Package clients provides HTTP client adapters for downstream services.
package clients

import (
	"errors"
	"fmt"
)

// Client errors represent failures in the HTTP client layer.
// These are distinct from domain errors - they represent infrastructure failures
// that should be translated to domain errors by the calling code.
var (
	// ErrInvalidConfig is returned by New when the client cannot be built.
	ErrInvalidConfig = errors.New("invalid client config")

	// ErrUnsuccessfulResponse is the sentinel behind UnsuccessfulResponseError.
	ErrUnsuccessfulResponse = errors.New("unsuccessful response")

	// ErrResponseTooLarge is returned when a response body exceeds the
	// client's MaxResponseBytes.
	ErrResponseTooLarge = errors.New("response body too large")
)

// UnsuccessfulResponseError is returned when a downstream service answers
// with a non-2xx status. ResponseMessage holds the raw response body.
type UnsuccessfulResponseError struct {
	URL             string
	StatusCode      int
	ResponseMessage string
}

// Error implements the error interface.
func (e *UnsuccessfulResponseError) Error() string {
	return fmt.Sprintf("Error %d for request to '%s'. Message: %s", e.StatusCode, e.URL, e.ResponseMessage)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *UnsuccessfulResponseError) Unwrap() error {
	return ErrUnsuccessfulResponse
}

// AsUnsuccessfulResponse extracts an UnsuccessfulResponseError from err's chain.
func AsUnsuccessfulResponse(err error) (*UnsuccessfulResponseError, bool) {
	var respErr *UnsuccessfulResponseError
	if errors.As(err, &respErr) {
		return respErr, true
	}

	return nil, false
}
