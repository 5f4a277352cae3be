package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error so handlers can map it to an HTTP status.
type Kind int

const (
	// Internal is the fallback for unanticipated errors
	Internal Kind = iota

	// NotFound means a referenced entity is absent or outside the caller's apartment scope
	NotFound

	// Conflict means a uniqueness or exclusivity rule was violated (e.g. duplicate owner)
	Conflict

	// BadRequest means malformed input or an invalid state transition
	BadRequest

	// Unauthorized means a missing, invalid or blocked token
	Unauthorized

	// Forbidden means a valid token attempted a disallowed operation
	Forbidden
)

// Error is a domain error carrying a classification and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error // optional wrapped cause, never shown to clients
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a domain error with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a domain error
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFoundf creates a NotFound error
func NotFoundf(format string, args ...interface{}) *Error {
	return Newf(NotFound, format, args...)
}

// Conflictf creates a Conflict error
func Conflictf(format string, args ...interface{}) *Error {
	return Newf(Conflict, format, args...)
}

// BadRequestf creates a BadRequest error
func BadRequestf(format string, args ...interface{}) *Error {
	return Newf(BadRequest, format, args...)
}

// Unauthorizedf creates an Unauthorized error
func Unauthorizedf(format string, args ...interface{}) *Error {
	return Newf(Unauthorized, format, args...)
}

// Forbiddenf creates a Forbidden error
func Forbiddenf(format string, args ...interface{}) *Error {
	return Newf(Forbidden, format, args...)
}

// KindOf returns the classification of err, or Internal for plain errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// IsKind reports whether err is a domain error of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to its HTTP status code
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
