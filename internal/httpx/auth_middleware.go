package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidSession is returned by a TokenVerifier when the bearer token is
// missing, malformed, expired or unknown to the identity provider.
var ErrInvalidSession = errors.New("invalid session")

// Identity is the caller as reported by the identity provider.
type Identity struct {
	UserID string
	Email  string
}

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (Identity, error)
}

func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

// AuthMiddleware rejects requests without a valid session token. Preflight
// requests pass through untouched.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := BearerToken(r)
			if token == "" {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Missing session token", nil)
				return
			}

			id, err := verifier.VerifyToken(r.Context(), token)
			if errors.Is(err, ErrInvalidSession) {
				JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired session", nil)
				return
			}
			if err != nil {
				// Missing configuration or an identity provider outage, not a bad session.
				ServerError(w, r, err)
				return
			}

			ctx := ContextWithUser(r.Context(), id.UserID, id.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
