package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// AdminGuard verifies the maintenance token used by operational tooling.
// The plaintext token is never stored; only its bcrypt hash is configured.
type AdminGuard struct {
	hash []byte
}

// NewAdminGuard creates a guard around the configured bcrypt hash.
// An empty hash disables the maintenance token entirely.
func NewAdminGuard(hash string) *AdminGuard {
	return &AdminGuard{hash: []byte(hash)}
}

// Enabled reports whether a maintenance token is configured.
func (g *AdminGuard) Enabled() bool {
	return len(g.hash) > 0
}

// Check compares the presented token against the configured hash.
func (g *AdminGuard) Check(token string) error {
	if !g.Enabled() {
		return ErrAdminDisabled
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(token)); err != nil {
		return ErrForbidden
	}
	return nil
}

// HashToken produces a bcrypt hash suitable for the admin_token_hash setting.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
