package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindAuth       Kind = "AUTH"
	KindForbidden  Kind = "FORBIDDEN"
	KindNotFound   Kind = "NOT_FOUND"
	KindConflict   Kind = "CONFLICT"
	KindInternal   Kind = "INTERNAL"
)

// Error is the application error carried from services to handlers.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error { return New(KindValidation, message) }
func Auth(message string) *Error       { return New(KindAuth, message) }
func Forbidden(message string) *Error  { return New(KindForbidden, message) }
func NotFound(message string) *Error   { return New(KindNotFound, message) }
func Conflict(message string) *Error   { return New(KindConflict, message) }

// Internal wraps an unexpected failure. The message is shown to clients only outside production.
func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause)
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
