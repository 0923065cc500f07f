// Package auth provides bearer-token authentication for Harper Profiles.
package auth

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// IdentityContextKey is the context key for the authenticated identity.
const IdentityContextKey contextKey = "harper.auth.identity"

// Identity is the caller identity established by the middleware.
// It is derived from the verified bearer token.
type Identity struct {
	// Subject is the stable user identifier (the token "sub" claim).
	Subject string

	// Email is the verified email address, if the token carries one.
	Email string

	// Name is the display name, if the token carries one.
	Name string

	// Admin indicates the request presented the maintenance token
	// rather than a user token.
	Admin bool
}

// IdentityFrom extracts the authenticated identity from the context.
// Returns nil if the request was not authenticated.
func IdentityFrom(ctx context.Context) *Identity {
	id, ok := ctx.Value(IdentityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// WithIdentity returns a copy of ctx carrying the given identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, id)
}
