package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func userClaims(sub string) profileClaims {
	return profileClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "alice@example.com",
		Name:  "Alice",
	}
}

func TestJWTVerifier_Verify(t *testing.T) {
	v := NewJWTVerifier(testSecret, "", "")

	id, err := v.Verify(signToken(t, testSecret, userClaims("user-1")))
	require.NoError(t, err)
	require.Equal(t, "user-1", id.Subject)
	require.Equal(t, "alice@example.com", id.Email)
	require.Equal(t, "Alice", id.Name)
	require.False(t, id.Admin)
}

func TestJWTVerifier_RejectsBadTokens(t *testing.T) {
	v := NewJWTVerifier(testSecret, "harper", "")

	expired := userClaims("user-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	expired.Issuer = "harper"

	noSubject := userClaims("")
	noSubject.Issuer = "harper"

	wrongIssuer := userClaims("user-1")
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong secret", signToken(t, "other-secret", userClaims("user-1")), ErrInvalidToken},
		{"expired", signToken(t, testSecret, expired), ErrInvalidToken},
		{"wrong issuer", signToken(t, testSecret, wrongIssuer), ErrInvalidToken},
		{"missing subject", signToken(t, testSecret, noSubject), ErrMissingSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := NewJWTVerifier(testSecret, "", "")

	var gotIdentity *Identity
	handler := Middleware(v, DefaultConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token passes and injects identity", func(t *testing.T) {
		gotIdentity = nil
		req := httptest.NewRequest(http.MethodGet, "/api/users/user-1", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, userClaims("user-1")))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotIdentity)
		require.Equal(t, "user-1", gotIdentity.Subject)
	})

	t.Run("missing header returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/users/user-1", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "authorization header required")
	})

	t.Run("malformed header returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/users/user-1", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad token returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/users/user-1", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("skip paths bypass auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMiddleware_AdminToken(t *testing.T) {
	hash, err := HashToken("maintenance-secret")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.AdminGuard = NewAdminGuard(hash)

	var gotIdentity *Identity
	handler := Middleware(NewJWTVerifier(testSecret, "", ""), cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid admin token", func(t *testing.T) {
		gotIdentity = nil
		req := httptest.NewRequest(http.MethodPost, "/api/users/recalculate-scores", nil)
		req.Header.Set(AdminHeader, "maintenance-secret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotIdentity)
		require.True(t, gotIdentity.Admin)
	})

	t.Run("wrong admin token returns 403", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/users/recalculate-scores", nil)
		req.Header.Set(AdminHeader, "wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestAdminGuard_Disabled(t *testing.T) {
	g := NewAdminGuard("")
	require.False(t, g.Enabled())
	require.ErrorIs(t, g.Check("anything"), ErrAdminDisabled)
}
