// Package domain holds the error taxonomy of the service. The errors say
// what went wrong in business terms; the problem details middleware decides
// which HTTP status each one becomes.
//
// Every typed error unwraps to one sentinel, so classification is always
// errors.Is against the sentinels below, however deeply the error is
// wrapped or joined.
package domain

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrBusinessRule   = errors.New("business rule violated")
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrAuthentication = errors.New("authentication failed")
	ErrUnavailable    = errors.New("unavailable")

	// ErrConflict and ErrRateLimit are produced by the downstream adapter
	// but have no response mapping of their own; they answer 500.
	ErrConflict  = errors.New("conflict")
	ErrRateLimit = errors.New("rate limit exceeded")
)

// BusinessRuleError is a well-formed request that breaks a rule.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func NewBusinessRuleError(rule, message string) error {
	return &BusinessRuleError{Rule: rule, Message: message}
}

func (e *BusinessRuleError) Error() string {
	if e.Rule == "" {
		return e.Message
	}
	return "business rule " + strconv.Quote(e.Rule) + " violated: " + e.Message
}

func (e *BusinessRuleError) Unwrap() error { return ErrBusinessRule }

// ValidationError names the offending field when there is one.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return "validation failed for " + e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type NotFoundError struct {
	Resource   string
	ResourceID string
}

func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ResourceID: id}
}

func (e *NotFoundError) Error() string {
	if e.ResourceID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s with id %q not found", e.Resource, e.ResourceID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AuthenticationError means the caller's identity is missing or rejected.
type AuthenticationError struct {
	Reason string
}

func NewAuthenticationError(reason string) error {
	return &AuthenticationError{Reason: reason}
}

func (e *AuthenticationError) Error() string {
	if e.Reason == "" {
		return ErrAuthentication.Error()
	}
	return ErrAuthentication.Error() + ": " + e.Reason
}

func (e *AuthenticationError) Unwrap() error { return ErrAuthentication }

type ConflictError struct {
	Entity string
	Reason string
}

func NewConflictError(entity, reason string) error {
	return &ConflictError{Entity: entity, Reason: reason}
}

func (e *ConflictError) Error() string { return e.Entity + " conflict: " + e.Reason }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// RateLimitError carries the name of the exhausted limit, for the
// downstream adapter the service name.
type RateLimitError struct {
	Limit string
}

func NewRateLimitError(limit string) error {
	return &RateLimitError{Limit: limit}
}

func (e *RateLimitError) Error() string {
	if e.Limit == "" {
		return ErrRateLimit.Error()
	}
	return fmt.Sprintf("rate limit %q exceeded", e.Limit)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimit }

// UnavailableError is a dependency that could not be reached or answered
// with a server error.
type UnavailableError struct {
	Service string
	Reason  string
}

func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("service %q unavailable", e.Service)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

func IsBusinessRule(err error) bool   { return errors.Is(err, ErrBusinessRule) }
func IsValidation(err error) bool     { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool       { return errors.Is(err, ErrNotFound) }
func IsAuthentication(err error) bool { return errors.Is(err, ErrAuthentication) }
func IsConflict(err error) bool       { return errors.Is(err, ErrConflict) }
func IsRateLimit(err error) bool      { return errors.Is(err, ErrRateLimit) }
func IsUnavailable(err error) bool    { return errors.Is(err, ErrUnavailable) }
