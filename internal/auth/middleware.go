package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// AdminHeader carries the maintenance token for admin-only operations.
const AdminHeader = "X-Admin-Token"

// Config contains configuration for the auth middleware.
type Config struct {
	// SkipPaths are paths that skip authentication.
	SkipPaths []string

	// AdminGuard verifies the maintenance token (optional).
	AdminGuard *AdminGuard
}

// DefaultConfig returns the default auth configuration.
func DefaultConfig() Config {
	return Config{
		SkipPaths: []string{"/healthz", "/metrics"},
	}
}

// Middleware creates an authentication middleware that verifies bearer
// tokens and injects the resulting identity into the request context.
func Middleware(verifier TokenVerifier, config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Maintenance token takes precedence over a bearer token.
			if adminToken := r.Header.Get(AdminHeader); adminToken != "" && config.AdminGuard != nil {
				if err := config.AdminGuard.Check(adminToken); err != nil {
					log.Debug().Str("path", r.URL.Path).Msg("admin token rejected")
					writeAuthError(w, http.StatusForbidden, ErrForbidden)
					return
				}
				r = r.WithContext(WithIdentity(r.Context(), &Identity{Admin: true}))
				next.ServeHTTP(w, r)
				return
			}

			token, err := bearerToken(r)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("token verification failed")
				writeAuthError(w, http.StatusUnauthorized, ErrInvalidToken)
				return
			}

			r = r.WithContext(WithIdentity(r.Context(), identity))
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingAuthorizationHeader
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrInvalidAuthorizationHeader
	}
	return parts[1], nil
}

// writeAuthError writes a JSON auth error response.
func writeAuthError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
