// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booklend_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklend_upstream_requests_total",
			Help: "Calls to external services by outcome (success, failure, rejected)",
		},
		[]string{"service", "outcome"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "booklend_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	RecognitionCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booklend_recognition_candidates",
			Help:    "Number of candidates returned per recognition request",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8},
		},
		[]string{"path"},
	)

	LoanTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklend_loan_transitions_total",
			Help: "Loan operations by result (ok, conflict, forbidden, error)",
		},
		[]string{"operation", "result"},
	)

	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booklend_reminders_total",
			Help: "Due-date reminder outcomes by kind (sent, skipped, failed)",
		},
		[]string{"kind", "outcome"},
	)
)

func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
