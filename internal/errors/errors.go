// Package errors defines the registry error taxonomy.
//
// Every failure surfaced by the core falls into one of the codes below.
// Errors are terminal for the call that raised them: the registry never
// recovers silently and never applies partial state.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class.
type Code string

const (
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeConnection        Code = "CONNECTION_ERROR"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeInvalidToken      Code = "INVALID_TOKEN"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// ServiceError is the structured error carried across internal boundaries.
// The HTTP layer renders Message to callers; Code stays machine-readable.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a detail key/value and returns the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Unauthorized reports a caller whose role does not permit the transition.
func Unauthorized(message string) *ServiceError {
	return &ServiceError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusForbidden}
}

// NotFound reports a lookup of an id with no record.
func NotFound(message string) *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// InvalidTransition reports a guard failure on the current status.
func InvalidTransition(message string) *ServiceError {
	return &ServiceError{Code: CodeInvalidTransition, Message: message, HTTPStatus: http.StatusConflict}
}

// Connection reports an unreachable backing store or a timeout before
// submission. Retrying is a caller decision.
func Connection(message string, cause error) *ServiceError {
	return &ServiceError{Code: CodeConnection, Message: message, HTTPStatus: http.StatusBadGateway, cause: cause}
}

// Validation reports malformed input.
func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// InvalidToken reports a missing or unverifiable bearer token.
func InvalidToken(cause error) *ServiceError {
	return &ServiceError{Code: CodeInvalidToken, Message: "invalid or missing token", HTTPStatus: http.StatusUnauthorized, cause: cause}
}

// RateLimited reports an exhausted request budget.
func RateLimited(limit int, window string) *ServiceError {
	return (&ServiceError{
		Code:       CodeRateLimited,
		Message:    "rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
	}).WithDetails("limit", limit).WithDetails("window", window)
}

// Internal reports an unexpected failure.
func Internal(message string, cause error) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, cause: cause}
}

// AsServiceError extracts a *ServiceError from err's chain, or nil.
func AsServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	se := AsServiceError(err)
	return se != nil && se.Code == code
}

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool { return HasCode(err, CodeUnauthorized) }

// IsNotFound reports whether err is a missing-record failure.
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

// IsInvalidTransition reports whether err is a status-guard failure.
func IsInvalidTransition(err error) bool { return HasCode(err, CodeInvalidTransition) }

// IsConnection reports whether err is a transport failure.
func IsConnection(err error) bool { return HasCode(err, CodeConnection) }

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool { return HasCode(err, CodeValidation) }
