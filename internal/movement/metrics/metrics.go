package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pmetrics "ecoledger/internal/platform/metrics"
)

// Metrics for movement registration. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registered     prometheus.Counter
	Replays        *prometheus.CounterVec
	Unresolved     prometheus.Counter
	ApprovalDenied prometheus.Counter
	PublishFailed  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Registered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: pmetrics.Namespace,
			Subsystem: "movement",
			Name:      "registered_total",
			Help:      "Movements persisted.",
		}),
		Replays: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: pmetrics.Namespace,
			Subsystem: "movement",
			Name:      "idempotent_replays_total",
			Help:      "Create requests answered from a completed idempotency record.",
		}, []string{"by"}),
		Unresolved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: pmetrics.Namespace,
			Subsystem: "movement",
			Name:      "idempotency_unresolved_total",
			Help:      "Create requests whose key had a record still in progress or failed.",
		}),
		ApprovalDenied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: pmetrics.Namespace,
			Subsystem: "movement",
			Name:      "approval_denied_total",
			Help:      "Create requests from producers that are not approved.",
		}),
		PublishFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: pmetrics.Namespace,
			Subsystem: "movement",
			Name:      "publish_failures_total",
			Help:      "movement-created events that could not be published.",
		}),
	}
}

func (m *Metrics) IncRegistered() {
	if m != nil {
		m.Registered.Inc()
	}
}

func (m *Metrics) IncReplay(by string) {
	if m != nil {
		m.Replays.WithLabelValues(by).Inc()
	}
}

func (m *Metrics) IncUnresolved() {
	if m != nil {
		m.Unresolved.Inc()
	}
}

func (m *Metrics) IncApprovalDenied() {
	if m != nil {
		m.ApprovalDenied.Inc()
	}
}

func (m *Metrics) IncPublishFailed() {
	if m != nil {
		m.PublishFailed.Inc()
	}
}
