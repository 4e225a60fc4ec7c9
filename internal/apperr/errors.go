// Package apperr defines the error kinds shared across the world model.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrExternalUnavailable = errors.New("external service unavailable")
)

// Invalid returns an invalid-input error with a formatted detail message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFoundf returns a not-found error naming the missing resource.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Conflictf returns a conflict error with a formatted detail message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Unavailable wraps cause as an external-service-unavailable error.
func Unavailable(service string, cause error) error {
	return fmt.Errorf("%s: %w: %w", service, ErrExternalUnavailable, cause)
}

// Validation wraps a request validation failure as invalid input. It returns
// nil for a nil err.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
