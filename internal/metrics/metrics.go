// Package metrics provides Prometheus instrumentation for the settlement engine.
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
	// DepositsTotal counts deposits accepted.
	DepositsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "volbet_deposits_total",
		Help: "Total number of deposits accepted",
	})

	// WithdrawalsTotal counts withdrawals completed.
	WithdrawalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "volbet_withdrawals_total",
		Help: "Total number of withdrawals completed",
	})

	// PredictionsTotal counts predictions submitted.
	PredictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "volbet_predictions_total",
		Help: "Total number of predictions submitted",
	})

	// PhaseTransitionsTotal counts phase transitions by target phase.
	PhaseTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volbet_phase_transitions_total",
		Help: "Total phase transitions",
	}, []string{"to"})

	// OracleFulfillmentsTotal counts oracle fulfillments by outcome.
	OracleFulfillmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volbet_oracle_fulfillments_total",
		Help: "Oracle fulfillment callbacks by outcome",
	}, []string{"outcome"})

	// RejectedOperations counts mutations rejected by guards, by reason.
	RejectedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volbet_rejected_operations_total",
		Help: "Mutating operations rejected by phase or balance guards",
	}, []string{"op", "reason"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "volbet_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "volbet_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "volbet_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small and fixed.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
