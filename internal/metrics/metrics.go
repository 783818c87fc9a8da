// Package metrics exposes Prometheus collectors for circulation, auth and HTTP traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	loans        *prometheus.CounterVec
	reservations *prometheus.CounterVec
	auth         *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		loans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "circ_loan_events_total",
			Help: "Loan lifecycle events by kind",
		}, []string{"event"}),
		reservations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "circ_reservation_events_total",
			Help: "Reservation lifecycle events by kind",
		}, []string{"event"}),
		auth: f.NewCounterVec(prometheus.CounterOpts{
			Name: "circ_auth_events_total",
			Help: "Authentication operations by kind and outcome",
		}, []string{"op", "outcome"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "circ_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"method", "route", "status"}),
	}
}

// Loan counts a loan event such as "created" or "returned".
func (m *Metrics) Loan(event string) {
	if m == nil {
		return
	}
	m.loans.WithLabelValues(event).Inc()
}

// Reservation counts a reservation event.
func (m *Metrics) Reservation(event string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(event).Inc()
}

// Auth counts an auth operation outcome: "ok", "denied" or "error".
func (m *Metrics) Auth(op, outcome string) {
	if m == nil {
		return
	}
	m.auth.WithLabelValues(op, outcome).Inc()
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
