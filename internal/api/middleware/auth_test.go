package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarmaint/backend/internal/api/middleware"
	"github.com/solarmaint/backend/internal/domain/entities"
)

type stubVerifier struct {
	identity entities.Identity
	err      error

	lastToken string
}

func (v *stubVerifier) VerifyToken(token string) (entities.Identity, error) {
	v.lastToken = token
	if v.err != nil {
		return entities.Identity{}, v.err
	}
	return v.identity, nil
}

func identityEcho(t *testing.T, captured *entities.Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		require.True(t, ok)
		*captured = identity
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticator_ValidCookie(t *testing.T) {
	verifier := &stubVerifier{identity: entities.Identity{UserID: "user-1", Role: entities.RoleAdmin}}
	var seen entities.Identity
	handler := middleware.Authenticator(verifier)(identityEcho(t, &seen))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AuthCookieName, Value: "signed-token"})
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "signed-token", verifier.lastToken)
	assert.Equal(t, "user-1", seen.UserID)
	assert.True(t, seen.IsAdmin())
}

func TestAuthenticator_MissingCookie(t *testing.T) {
	handler := middleware.Authenticator(&stubVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a cookie")
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, recorder.Body.String())
}

func TestAuthenticator_InvalidToken(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("invalid token")}
	handler := middleware.Authenticator(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AuthCookieName, Value: "tampered"})
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestIdentityFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := middleware.IdentityFromContext(req.Context())
	assert.False(t, ok)
}
