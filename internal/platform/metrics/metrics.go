// Package metrics holds metrics shared by every subsystem. Subsystem packages
// register their own collectors next to the code that records them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every ecoledger metric.
const Namespace = "ecoledger"

// ConsumerMetrics tracks event relay deliveries per topic.
type ConsumerMetrics struct {
	Deliveries *prometheus.CounterVec
	Retries    *prometheus.CounterVec
	Abandoned  *prometheus.CounterVec
	Published  *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewConsumerMetrics creates and registers the event relay metrics.
func NewConsumerMetrics() *ConsumerMetrics {
	return &ConsumerMetrics{
		Deliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_delivered_total",
			Help:      "Messages handed to a handler, by topic and outcome.",
		}, []string{"topic", "outcome"}),
		Retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_retries_total",
			Help:      "Handler retries after a failed attempt, by topic.",
		}, []string{"topic"}),
		Abandoned: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_abandoned_total",
			Help:      "Messages committed without success after exhausting retries, by topic.",
		}, []string{"topic"}),
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_published_total",
			Help:      "Events published, by topic and outcome.",
		}, []string{"topic", "outcome"}),
		Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "events_handle_duration_seconds",
			Help:      "Time spent handling one message, including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *ConsumerMetrics) IncDelivery(topic, outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(topic, outcome).Inc()
}

func (m *ConsumerMetrics) IncRetry(topic string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(topic).Inc()
}

func (m *ConsumerMetrics) IncAbandoned(topic string) {
	if m == nil {
		return
	}
	m.Abandoned.WithLabelValues(topic).Inc()
}

func (m *ConsumerMetrics) IncPublished(topic, outcome string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(topic, outcome).Inc()
}

func (m *ConsumerMetrics) ObserveHandle(topic string, seconds float64) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(topic).Observe(seconds)
}
