// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors are used by use cases and kept
// deliberately coarse; domain packages wrap them with more specific sentinels.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors shared across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., duplicate key,
	// compare-and-swap failure).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the caller is not allowed to perform the operation.
	// The cause is deliberately opaque to callers.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an unexpected failure the caller cannot act on.
	// Cryptographic integrity failures surface as ErrInternal; the detail stays
	// in server-side logs.
	ErrInternal = errors.New("internal error")
)

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsRetryable reports whether the error is an expected contention failure that a
// caller may retry with fresh state. Only compare-and-swap style conflicts
// qualify; sealed-state and gone-forever errors never do.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
