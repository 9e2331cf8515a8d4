// Package apperror defines the domain error kinds shared by services and handlers.
//
// Services return *AppError values; the HTTP layer maps the wrapped sentinel to a
// status code (see handler/response.go). Message is what the client sees, Detail
// is only ever logged.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLocked       = errors.New("locked")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // client-visible message
	Field   string // optional: field causing the error
	Detail  string // optional: server-side context, never sent to clients
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing entity. The client only sees "Not found".
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: "Not found",
		Field:   resource,
		Detail:  fmt.Sprintf("%s %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(field, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized covers missing, invalid or expired credentials (401).
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Locked is returned when writing to a locked resource such as a locked thread (423).
func Locked(message string) *AppError {
	return &AppError{
		Err:     ErrLocked,
		Message: message,
	}
}

// Message extracts the client-visible message of err, or "" if err is not an AppError.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}
