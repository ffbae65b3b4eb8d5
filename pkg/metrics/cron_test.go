package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsSplitsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("donation-expiry", 200*time.Millisecond, nil)
	m.ObserveRun("donation-expiry", 300*time.Millisecond, errors.New("lock timeout"))
	m.ObserveRun("", time.Millisecond, nil)
	m.CycleSkipped()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	failures, err := fetchCounterValue(mfs, "cron_job_runs_total", "outcome", OutcomeError)
	require.NoError(t, err)
	require.Equal(t, float64(1), failures)

	sum, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "donation-expiry")
	require.NoError(t, err)
	require.InDelta(t, 0.5, sum, 1e-9)

	_, err = fetchCounterValue(mfs, "cron_job_runs_total", "job", "unknown")
	require.NoError(t, err)

	skipped := findMetricFamily(mfs, "cron_cycles_skipped_total")
	require.NotNil(t, skipped)
	require.Equal(t, float64(1), skipped.GetMetric()[0].GetCounter().GetValue())
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("job", time.Second, nil)
	m.CycleSkipped()
	NewCronJobMetrics(nil).ObserveRun("job", time.Second, errors.New("x"))
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	for _, metric := range findMetricFamily(mfs, name).GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("counter %s{%s=%q} not found", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	for _, metric := range findMetricFamily(mfs, name).GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %s{%s=%q} not found", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, l := range labels {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
