// Package auth provides bearer-token authentication for Harper Profiles.
package auth

import "errors"

// Authentication errors.
var (
	// ErrMissingAuthorizationHeader indicates no Authorization header was sent.
	ErrMissingAuthorizationHeader = errors.New("authorization header required")

	// ErrInvalidAuthorizationHeader indicates the Authorization header is malformed.
	ErrInvalidAuthorizationHeader = errors.New("invalid authorization header")

	// ErrInvalidToken indicates the token failed verification.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrMissingSubject indicates the token carries no subject claim.
	ErrMissingSubject = errors.New("token has no subject")

	// ErrForbidden indicates the authenticated identity may not perform
	// the requested operation.
	ErrForbidden = errors.New("forbidden")

	// ErrAdminDisabled indicates no maintenance token is configured.
	ErrAdminDisabled = errors.New("admin token not configured")
)
