package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pmetrics "ecoledger/internal/platform/metrics"
)

// Metrics for the certification subsystem. A nil *Metrics records nothing.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	Unchanged       prometheus.Counter
	Recalculations  *prometheus.CounterVec
	PublishFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: pmetrics.Namespace,
			Subsystem: "certification",
			Name:      "seal_transitions_total",
			Help:      "Seal status changes written to the ledger, by source and target status.",
		}, []string{"from", "to"}),
		Unchanged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: pmetrics.Namespace,
			Subsystem: "certification",
			Name:      "seal_unchanged_total",
			Help:      "Audit outcomes or recalculations that left the seal status as it was.",
		}),
		Recalculations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: pmetrics.Namespace,
			Subsystem: "certification",
			Name:      "recalculations_total",
			Help:      "Seal recalculations, by branch taken.",
		}, []string{"branch"}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: pmetrics.Namespace,
			Subsystem: "certification",
			Name:      "publish_failures_total",
			Help:      "seal-updated events that could not be published.",
		}),
	}
}

func (m *Metrics) IncTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncUnchanged() {
	if m != nil {
		m.Unchanged.Inc()
	}
}

func (m *Metrics) IncRecalculation(branch string) {
	if m != nil {
		m.Recalculations.WithLabelValues(branch).Inc()
	}
}

func (m *Metrics) IncPublishFailed() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}
