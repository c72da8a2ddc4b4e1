package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound              = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized          = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden             = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrConflict              = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation            = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal              = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrInvalidTransition     = New("INVALID_TRANSITION", http.StatusConflict, "transition not allowed in current state")
	ErrDeadlineExpired       = New("DEADLINE_EXPIRED", http.StatusConflict, "action window has closed")
	ErrNotExtendable         = New("NOT_EXTENDABLE", http.StatusConflict, "deadline cannot be extended")
	ErrAlreadyVoted          = New("ALREADY_VOTED", http.StatusConflict, "voter has already cast a ballot in this election")
	ErrElectionNotOpen       = New("ELECTION_NOT_OPEN", http.StatusConflict, "election is not open for voting")
	ErrIneligibleVoter       = New("INELIGIBLE_VOTER", http.StatusForbidden, "voter is not eligible in this election")
	ErrConcurrencyConflict   = New("CONCURRENCY_CONFLICT", http.StatusConflict, "concurrent update detected, retry the operation")
	ErrDependencyUnavailable = New("DEPENDENCY_UNAVAILABLE", http.StatusServiceUnavailable, "external dependency unavailable")
	ErrCacheMiss             = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// InvalidTransition builds an ErrInvalidTransition that identifies the
// current state, the requested event, and the guard that rejected it.
func InvalidTransition(state, event, guard string) *Error {
	return Clone(ErrInvalidTransition,
		fmt.Sprintf("cannot apply %q while %q: %s", event, state, guard))
}
