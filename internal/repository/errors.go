package repository

import "errors"

// Repository errors
var (
	// ErrNotFound indicates the requested document was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a document with the same id exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrVersionMismatch indicates a conditional write lost to a
	// concurrent writer.
	ErrVersionMismatch = errors.New("version mismatch")
)

// Lock errors
var (
	// ErrLockNotAcquired indicates the lock could not be acquired.
	ErrLockNotAcquired = errors.New("lock not acquired")
)
