// Package errors defines the coded, user-facing error taxonomy shared by the
// services and the HTTP layer. Every expected failure carries a stable code
// and an HTTP status; anything else is treated as an internal error.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an expected failure class.
type Code string

const (
	CodeInsufficientFunds  Code = "INSUFFICIENT_FUNDS"
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeForbidden          Code = "FORBIDDEN"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeAlreadyVoted       Code = "ALREADY_VOTED"
	CodeDuplicateChallenge Code = "DUPLICATE_CHALLENGE"
	CodeValidationRejected Code = "VALIDATION_REJECTED"
	CodeDeadlineExpired    Code = "DEADLINE_EXPIRED"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInternal           Code = "INTERNAL"
)

// ServiceError is the error type returned by all services for expected
// failures. The HTTP layer maps it verbatim; the Details map carries
// actionable context (amounts, IDs) without leaking internals.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *ServiceError) Unwrap() error {
	return e.cause
}

// Is matches two service errors by code, so callers can use errors.Is with
// the sentinel constructors below.
func (e *ServiceError) Is(target error) bool {
	var se *ServiceError
	if errors.As(target, &se) {
		return e.Code == se.Code
	}
	return false
}

// WithDetails attaches a key/value pair and returns the error for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code Code, status int, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// InsufficientFunds reports that a debit would take a balance negative.
func InsufficientFunds(available, required int64) *ServiceError {
	e := newError(CodeInsufficientFunds, http.StatusBadRequest,
		fmt.Sprintf("insufficient points: you have %d but need %d", available, required))
	return e.WithDetails("available", available).WithDetails("required", required)
}

// InvalidAmount reports a zero or negative stake.
func InvalidAmount(amount int64) *ServiceError {
	e := newError(CodeInvalidAmount, http.StatusBadRequest, "amount must be greater than 0")
	return e.WithDetails("amount", amount)
}

// NotFound reports a missing entity of the given kind.
func NotFound(kind, id string) *ServiceError {
	e := newError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s %s not found", kind, id))
	return e.WithDetails("id", id)
}

// Forbidden reports that the actor is not allowed to perform the operation.
func Forbidden(message string) *ServiceError {
	return newError(CodeForbidden, http.StatusForbidden, message)
}

// InvalidState reports an operation that is not legal for the entity's
// current status.
func InvalidState(message string) *ServiceError {
	return newError(CodeInvalidState, http.StatusBadRequest, message)
}

// AlreadyVoted reports a second vote by the same challenger.
func AlreadyVoted(betID string) *ServiceError {
	e := newError(CodeAlreadyVoted, http.StatusBadRequest, "you have already voted on this bet")
	return e.WithDetails("bet_id", betID)
}

// DuplicateChallenge reports a second open challenge by the same user.
func DuplicateChallenge(betID string) *ServiceError {
	e := newError(CodeDuplicateChallenge, http.StatusBadRequest, "you have already challenged this bet")
	return e.WithDetails("bet_id", betID)
}

// ValidationRejected reports that the commitment-text policy refused a title.
func ValidationRejected(reason string) *ServiceError {
	return newError(CodeValidationRejected, http.StatusBadRequest, reason)
}

// DeadlineExpired reports an action attempted after the relevant deadline.
func DeadlineExpired(message string) *ServiceError {
	return newError(CodeDeadlineExpired, http.StatusBadRequest, message)
}

// AlreadyExists reports a uniqueness conflict (username, email, star).
func AlreadyExists(field, value string) *ServiceError {
	e := newError(CodeAlreadyExists, http.StatusConflict, fmt.Sprintf("%s %q already exists", field, value))
	return e.WithDetails("field", field)
}

// Unauthorized reports missing or invalid credentials.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return newError(CodeUnauthorized, http.StatusUnauthorized, message)
}

// Internal wraps an unexpected failure. The cause is logged, never surfaced.
func Internal(message string, cause error) *ServiceError {
	e := newError(CodeInternal, http.StatusInternalServerError, message)
	e.cause = cause
	return e
}

// GetServiceError extracts a *ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}
