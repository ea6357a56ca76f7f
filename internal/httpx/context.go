package httpx

import (
	"context"
	"net/http"

	"booklend/internal/logging"
)

type contextKey string

const (
	userIDKey contextKey = "userID"
	emailKey  contextKey = "email"
)

// UserIDFrom retrieves the authenticated user id from the request context.
func UserIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// EmailFrom retrieves the authenticated user's email, if the identity
// provider supplied one.
func EmailFrom(r *http.Request) string {
	if v, ok := r.Context().Value(emailKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithUser returns a new context carrying the caller identity.
func ContextWithUser(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, emailKey, email)
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return logging.ContextWithRequestID(ctx, requestID)
}

func RequestIDFrom(r *http.Request) string {
	return logging.RequestIDFromContext(r.Context())
}
