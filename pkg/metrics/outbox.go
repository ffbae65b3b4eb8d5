package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outbox publish results used as label values.
const (
	PublishPublished    = "published"
	PublishRetry        = "retry"
	PublishDeadLettered = "dead_lettered"
)

// OutboxMetrics counts outbox rows by publish result and event type.
type OutboxMetrics struct {
	results *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Outbox rows handled by the publisher, by result and event type.",
	}, []string{"result", "event_type"})
	reg.MustRegister(results)
	return &OutboxMetrics{results: results}
}

// Record counts one handled row.
func (m *OutboxMetrics) Record(result, eventType string) {
	if m == nil || m.results == nil {
		return
	}
	m.results.WithLabelValues(normalizeLabel(result), normalizeLabel(eventType)).Inc()
}
