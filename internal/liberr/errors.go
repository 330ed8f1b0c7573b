// Package liberr defines the error taxonomy shared by the catalog,
// membership, and circulation stores. Repositories recover low-level
// storage failures at the operation boundary and wrap them into one of
// these kinds; callers branch with errors.Is.
package liberr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds surfaced by store operations.
var (
	// ErrValidation is returned for malformed or missing input. The
	// operation is not applied.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned for uniqueness violations.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned when a referenced id or name is unknown.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when a book has no copies left to issue.
	ErrUnavailable = errors.New("no copies available")

	// ErrAlreadyIssued is returned when a member already holds an
	// un-returned loan for the same book.
	ErrAlreadyIssued = errors.New("book already issued to member")

	// ErrAlreadyReturned is returned when returning a loan twice.
	ErrAlreadyReturned = errors.New("loan already returned")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// Conflictf wraps ErrConflict with a formatted message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}
