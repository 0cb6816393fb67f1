package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit subsystem.
type Metrics struct {
	Verdicts       *prometheus.CounterVec
	RuleErrors     *prometheus.CounterVec
	DuplicateSkips prometheus.Counter
	Revisions      *prometheus.CounterVec
	IngestLatency  prometheus.Histogram
}

// New creates a new Metrics instance with all audit metrics registered.
func New() *Metrics {
	return &Metrics{
		Verdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoledger_audit_verdicts_total",
			Help: "Audit records created, by verdict",
		}, []string{"verdict"}),

		RuleErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoledger_audit_rule_errors_total",
			Help: "Rule executions that failed with an error or panic, by rule",
		}, []string{"rule"}),

		DuplicateSkips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecoledger_audit_duplicate_movements_total",
			Help: "movement-created deliveries skipped because an audit already exists",
		}),

		Revisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoledger_audit_revisions_total",
			Help: "Manual revisions applied, by resulting verdict",
		}, []string{"verdict"}),

		IngestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecoledger_audit_ingest_duration_seconds",
			Help:    "Duration of auditing one movement including persistence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncVerdict(verdict string) {
	if m != nil {
		m.Verdicts.WithLabelValues(verdict).Inc()
	}
}

func (m *Metrics) IncRuleError(rule string) {
	if m != nil {
		m.RuleErrors.WithLabelValues(rule).Inc()
	}
}

func (m *Metrics) IncDuplicate() {
	if m != nil {
		m.DuplicateSkips.Inc()
	}
}

func (m *Metrics) IncRevision(verdict string) {
	if m != nil {
		m.Revisions.WithLabelValues(verdict).Inc()
	}
}

func (m *Metrics) ObserveIngest(d time.Duration) {
	if m != nil {
		m.IngestLatency.Observe(d.Seconds())
	}
}
