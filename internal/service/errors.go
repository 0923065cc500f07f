// Package service provides business logic services for Harper Profiles.
package service

import "errors"

// Common service errors. Domain rule violations live in internal/domain;
// these cover infrastructure and coordination failures.
var (
	// ErrInternalError wraps unexpected storage or infrastructure failures.
	ErrInternalError = errors.New("internal server error")

	// ErrExportInProgress indicates another instance holds the export lock.
	ErrExportInProgress = errors.New("export already in progress")
)
