// Package apperr defines the error taxonomy shared by services and HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the transport boundary.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error carries a kind, a client-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches kind sentinels such as ErrNotFound.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Message != "" || t.Err != nil {
		return e == t
	}
	return e.Kind == t.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrInternal     = &Error{Kind: KindInternal}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
)

func Validation(message string) error { return &Error{Kind: KindValidation, Message: message} }

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(message string) error { return &Error{Kind: KindNotFound, Message: message} }

func Conflict(message string) error { return &Error{Kind: KindConflict, Message: message} }

func Unauthorized(message string) error { return &Error{Kind: KindUnauthorized, Message: message} }

func Forbidden(message string) error { return &Error{Kind: KindForbidden, Message: message} }

// Internal wraps an unexpected failure. The message stays server side.
func Internal(err error, message string) error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the kind of err; untyped errors are internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to clients.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr == nil || appErr.Kind == KindInternal {
		return "internal server error"
	}
	if appErr.Message != "" {
		return appErr.Message
	}
	return appErr.Kind.String()
}
