// Package errs defines the error taxonomy shared by all gatehouse services.
//
// Services return typed errors; the HTTP boundary maps each type to a fixed
// status code. Anything not in the taxonomy is treated as an internal error.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError indicates missing or malformed required input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// NewValidation creates a ValidationError for a field.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError indicates a referenced entity is absent.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// NewNotFound creates a NotFoundError for a resource.
func NewNotFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// AuthenticationError indicates a credential mismatch or an invalid/expired
// authentication token.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return e.Message
}

// NewAuthentication creates an AuthenticationError.
func NewAuthentication(message string) *AuthenticationError {
	return &AuthenticationError{Message: message}
}

// ForbiddenError indicates a valid identity attempting a disallowed action,
// such as an inactive user logging in or a missing feature flag.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	if e.Message == "" {
		return "forbidden"
	}
	return e.Message
}

// NewForbidden creates a ForbiddenError.
func NewForbidden(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

// ConflictError indicates state already in a terminal condition, such as an
// invite that was already accepted or a lost optimistic-concurrency race.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message == "" {
		return "conflict"
	}
	return e.Message
}

// NewConflict creates a ConflictError.
func NewConflict(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// ExpiredError indicates a time-bound resource past its validity window.
type ExpiredError struct {
	Resource string
}

func (e *ExpiredError) Error() string {
	return e.Resource + " has expired"
}

// NewExpired creates an ExpiredError for a resource.
func NewExpired(resource string) *ExpiredError {
	return &ExpiredError{Resource: resource}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var e *AuthenticationError
	return errors.As(err, &e)
}

// IsForbidden reports whether err is a ForbiddenError.
func IsForbidden(err error) bool {
	var e *ForbiddenError
	return errors.As(err, &e)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

// IsExpired reports whether err is an ExpiredError.
func IsExpired(err error) bool {
	var e *ExpiredError
	return errors.As(err, &e)
}

// HTTPStatus maps a taxonomy error to its HTTP status code. Unknown errors
// map to 500.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsAuthentication(err):
		return http.StatusUnauthorized
	case IsForbidden(err):
		return http.StatusForbidden
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsExpired(err):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
