package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"booklend/internal/logging"
)

// Limiter counts hits against a key inside a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}

// UserRateLimitMiddleware limits authenticated callers per scope. It must run
// after AuthMiddleware. Store errors fail open so an unhealthy counter store
// never blocks the API.
func UserRateLimitMiddleware(limiter Limiter, scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFrom(r)
			if userID == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, err := limiter.Allow(r.Context(), scope+":"+userID, limit, window)
			if err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Str("scope", scope).Msg("rate limit store unavailable")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				JSONError(w, r, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
