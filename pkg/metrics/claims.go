package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Claim outcomes used as label values.
const (
	OutcomeSuccess     = "success"
	OutcomeConflict    = "conflict"
	OutcomeForbidden   = "forbidden"
	OutcomeNotFound    = "not_found"
	OutcomeInvalidCode = "invalid_code"
	OutcomeLockTimeout = "lock_timeout"
	OutcomeError       = "error"
)

// ClaimMetrics counts reservation attempts and lifecycle transitions.
type ClaimMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewClaimMetrics registers the claim metrics on the provided registerer.
func NewClaimMetrics(reg prometheus.Registerer) *ClaimMetrics {
	if reg == nil {
		return &ClaimMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claim_operations_total",
		Help: "Claim operations by operation and outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "claim_operation_duration_seconds",
		Help:    "Duration of claim operations including row lock waits.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"operation"})
	reg.MustRegister(operations, duration)
	return &ClaimMetrics{
		operations: operations,
		duration:   duration,
	}
}

// Observe records one completed operation.
func (c *ClaimMetrics) Observe(operation, outcome string, duration time.Duration) {
	if c == nil || c.operations == nil {
		return
	}
	c.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
	c.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}
