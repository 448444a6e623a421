// Package metrics defines the Prometheus instruments exported by Stockwarden.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stockwarden"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	// catalogMutations counts store mutations.
	// Labels: op (add, update, remove), result (ok, error)
	catalogMutations *prometheus.CounterVec

	// catalogProducts tracks the number of products in the catalog.
	catalogProducts prometheus.Gauge

	// alerts counts alert decisions.
	// Labels: outcome (fired, suppressed, failed)
	alerts *prometheus.CounterVec

	// logins counts login attempts.
	// Labels: result (otp_pending, invalid_credentials, forbidden, unverified, error)
	logins *prometheus.CounterVec

	// otpVerifications counts OTP submissions.
	// Labels: result (ok, invalid, locked)
	otpVerifications *prometheus.CounterVec

	// checkpoints counts catalog flushes.
	// Labels: result (ok, skipped, error)
	checkpoints *prometheus.CounterVec

	// checkpointDuration measures flush latency.
	checkpointDuration prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		catalogMutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "mutations_total",
			Help:      "Catalog mutations by operation and result",
		}, []string{"op", "result"}),
		catalogProducts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "products",
			Help:      "Number of products in the catalog",
		}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "total",
			Help:      "Low-stock alert decisions by outcome",
		}, []string{"outcome"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),
		otpVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "otp_verifications_total",
			Help:      "OTP submissions by result",
		}, []string{"result"}),
		checkpoints: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "runs_total",
			Help:      "Catalog checkpoint runs by result",
		}, []string{"result"}),
		checkpointDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkpoint",
			Name:      "duration_seconds",
			Help:      "Catalog checkpoint duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// CatalogMutation records a store mutation.
func (m *Metrics) CatalogMutation(op string, err error) {
	if m == nil {
		return
	}
	m.catalogMutations.WithLabelValues(op, result(err)).Inc()
}

// CatalogSize sets the product gauge.
func (m *Metrics) CatalogSize(n int) {
	if m == nil {
		return
	}
	m.catalogProducts.Set(float64(n))
}

// Alert records an alert outcome.
func (m *Metrics) Alert(outcome string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(outcome).Inc()
}

// Login records a login result.
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// OTPVerification records an OTP submission result.
func (m *Metrics) OTPVerification(result string) {
	if m == nil {
		return
	}
	m.otpVerifications.WithLabelValues(result).Inc()
}

// Checkpoint records a checkpoint run and its duration.
func (m *Metrics) Checkpoint(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.checkpoints.WithLabelValues(result).Inc()
	m.checkpointDuration.Observe(took.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
