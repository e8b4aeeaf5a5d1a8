// Package dto provides Data Transfer Objects for HTTP request/response handling.
package dto

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/domain"
)

// problemTypeBase prefixes the status code to form a problem type URI.
const problemTypeBase = "https://developer.mozilla.org/en-US/docs/Web/HTTP/Status/"

// Problem titles, one per response bucket.
const (
	TitleBusinessRule = "Bad request, business rule failure"
	TitleValidation   = "Bad request, validation error"
	TitleNotFound     = "Resource not found"
	TitleUnauthorized = "Unauthorized"
	TitleInternal     = "Internal server error"
)

// ProblemDetails is the JSON body written for every error that escapes a
// handler. The field set is fixed.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}

// ProblemType describes how an error class is reported.
type ProblemType struct {
	Status int
	Title  string
}

// URI returns the stable type URI for the problem's status.
func (p ProblemType) URI() string {
	return ProblemTypeURI(p.Status)
}

// ProblemTypeURI returns the type URI for status.
func ProblemTypeURI(status int) string {
	return problemTypeBase + strconv.Itoa(status)
}

// ResolveProblemType classifies err. The first matching rule wins:
// business rule, validation (including binding failures), not found,
// authentication, then internal error for everything else. Conflict and
// rate limit errors are reserved and fall through to internal error.
// Matching uses errors.Is, so an aggregate matches any rule one of its
// members matches.
func ResolveProblemType(err error) ProblemType {
	switch {
	case domain.IsBusinessRule(err):
		return ProblemType{Status: http.StatusBadRequest, Title: TitleBusinessRule}
	case domain.IsValidation(err):
		return ProblemType{Status: http.StatusBadRequest, Title: TitleValidation}
	case domain.IsNotFound(err):
		return ProblemType{Status: http.StatusNotFound, Title: TitleNotFound}
	case domain.IsAuthentication(err):
		return ProblemType{Status: http.StatusUnauthorized, Title: TitleUnauthorized}
	default:
		return ProblemType{Status: http.StatusInternalServerError, Title: TitleInternal}
	}
}

// InstanceURN builds a per-occurrence instance identifier of the form
// urn:<urnPart>:instance:<uuid>:correlation-id:<correlationID>.
// urnPart is usually "<application>:<environment>".
func InstanceURN(urnPart, correlationID string) string {
	return "urn:" + urnPart + ":instance:" + uuid.NewString() + ":correlation-id:" + correlationID
}

// NewProblemDetails classifies err and builds its payload.
func NewProblemDetails(err error, instance string) *ProblemDetails {
	pt := ResolveProblemType(err)

	detail := ""
	if err != nil {
		detail = err.Error()
	}

	return &ProblemDetails{
		Type:     pt.URI(),
		Title:    pt.Title,
		Status:   pt.Status,
		Detail:   detail,
		Instance: instance,
	}
}
