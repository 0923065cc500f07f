// Package domain contains the core business entities for Harper Profiles.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidRating indicates a rating outside the [0,5] range.
	ErrInvalidRating = errors.New("rating must be between 0 and 5")

	// ErrEmailRequired indicates a registration without an email address.
	ErrEmailRequired = errors.New("email is required")

	// ErrEmptyPatch indicates a profile update with no fields to change.
	ErrEmptyPatch = errors.New("no user data provided")

	// ErrInvalidCursor indicates a pagination token that does not resolve
	// to an existing document.
	ErrInvalidCursor = errors.New("invalid pagination token")

	// ErrUnknownField indicates a request body carrying a field the
	// operation does not accept.
	ErrUnknownField = errors.New("unknown field in request body")

	// ErrUpdateConflict indicates a concurrent-update collision that
	// persisted through the bounded retry loop.
	ErrUpdateConflict = errors.New("concurrent update conflict")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g. the user id).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}
