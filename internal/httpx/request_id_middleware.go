package httpx

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

// Checked in order. Proxies in front of the API set one or the other.
var incomingRequestIDHeaders = []string{requestIDHeader, "X-Correlation-ID"}

// RequestIDMiddleware tags the request with an id that ends up in every log
// line and error body. A caller supplied id is kept only when it is a short
// run of printable ASCII; anything else is replaced with a fresh UUID.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := incomingRequestID(r)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ContextWithRequestID(r.Context(), requestID)))
	})
}

func incomingRequestID(r *http.Request) string {
	for _, h := range incomingRequestIDHeaders {
		if id := strings.TrimSpace(r.Header.Get(h)); validRequestID(id) {
			return id
		}
	}
	return ""
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}
