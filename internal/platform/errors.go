// Package platform holds what the external API clients share: error types
// and a circuit-breaker protected HTTP caller.
package platform

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when a client is used without its API key or
// base URL. Handlers surface it as a 500 with an explicit message.
var ErrNotConfigured = errors.New("service is not configured")

// NotConfigured wraps ErrNotConfigured with the missing setting name.
func NotConfigured(setting string) error {
	return fmt.Errorf("%s is not set: %w", setting, ErrNotConfigured)
}

// UpstreamError reports a non-2xx answer from an external service.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Service, e.StatusCode, body)
}

// Temporary reports whether retrying the same request may succeed.
func (e *UpstreamError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsUpstream reports whether err came from an external service, including
// transport failures and an open circuit.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te) || errors.Is(err, ErrCircuitOpen)
}

// TransportError wraps a failure to reach the service at all.
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
