package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"booklend/internal/logging"
	"booklend/internal/metrics"
)

// ErrCircuitOpen is returned while a service's breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

const maxResponseBytes = 4 << 20

// Caller executes HTTP requests against one external service. Calls go
// through a circuit breaker; 4xx answers other than 429 do not count as
// failures because they describe the request, not the service health.
type Caller struct {
	service string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	onOpen  func(service string)
}

type CallerOption func(*Caller)

// WithHTTPClient replaces the default client, mostly for tests.
func WithHTTPClient(c *http.Client) CallerOption {
	return func(cl *Caller) { cl.http = c }
}

// WithOpenAlert registers fn to be called each time the breaker opens.
func WithOpenAlert(fn func(service string)) CallerOption {
	return func(cl *Caller) { cl.onOpen = fn }
}

func NewCaller(service string, timeout time.Duration, opts ...CallerOption) *Caller {
	c := &Caller{
		service: service,
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	metrics.CircuitBreakerState.WithLabelValues(service).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        service,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var ue *UpstreamError
			if errors.As(err, &ue) {
				return !ue.Temporary()
			}
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			if to == gobreaker.StateOpen && c.onOpen != nil {
				c.onOpen(name)
			}
		},
	})
	return c
}

// Do sends req and returns the response body of a 2xx answer.
func (c *Caller) Do(req *http.Request) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &TransportError{Service: c.service, Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, &TransportError{Service: c.service, Err: fmt.Errorf("read body: %w", err)}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &UpstreamError{Service: c.service, StatusCode: resp.StatusCode, Body: string(data)}
		}
		return data, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.UpstreamRequests.WithLabelValues(c.service, "rejected").Inc()
		return nil, fmt.Errorf("%s: %w", c.service, ErrCircuitOpen)
	case err != nil:
		metrics.UpstreamRequests.WithLabelValues(c.service, "failure").Inc()
		return nil, err
	}
	metrics.UpstreamRequests.WithLabelValues(c.service, "success").Inc()
	return body, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}
