package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestClaimMetricsCountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewClaimMetrics(reg)
	metrics.Observe("claim", OutcomeSuccess, 10*time.Millisecond)
	metrics.Observe("claim", OutcomeConflict, 20*time.Millisecond)
	metrics.Observe("claim", OutcomeConflict, 30*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "claim_operations_total", "outcome", OutcomeConflict); err != nil {
		t.Fatalf("fetch conflicts: %v", err)
	} else if got != 2 {
		t.Fatalf("expected conflicts=2, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "claim_operation_duration_seconds", "operation", "claim"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestClaimMetricsNilSafe(t *testing.T) {
	var metrics *ClaimMetrics
	metrics.Observe("claim", OutcomeSuccess, time.Second)
	NewClaimMetrics(nil).Observe("claim", OutcomeSuccess, time.Second)
}
