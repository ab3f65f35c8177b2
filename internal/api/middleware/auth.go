package middleware

import (
	"context"
	"net/http"

	"github.com/solarmaint/backend/internal/domain/entities"
)

// AuthCookieName is the cookie carrying the signed session token.
const AuthCookieName = "auth-token"

type contextKey string

const identityKey contextKey = "identity"

// TokenVerifier validates a session token and returns the identity it
// carries.
type TokenVerifier interface {
	VerifyToken(token string) (entities.Identity, error)
}

// Authenticator resolves the auth-token cookie into a typed Identity in the
// request context. Handlers read the identity with IdentityFromContext and
// never touch cookies themselves. Requests without a valid token are
// rejected with 401.
func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AuthCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			identity, err := verifier.VerifyToken(cookie.Value)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (entities.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(entities.Identity)
	return identity, ok
}

// WithIdentity injects an identity into a context. Test helper.
func WithIdentity(ctx context.Context, identity entities.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"authentication required"}`))
}
