package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"ecoledger/internal/platform/kafka/producer"
	"ecoledger/internal/platform/metrics"
	"ecoledger/pkg/requestcontext"
)

// Publisher sends one event. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// RecordWriter is the subset of the Kafka producer the publisher needs.
type RecordWriter interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaPublisher encodes events as JSON and writes them through a RecordWriter.
type KafkaPublisher struct {
	writer  RecordWriter
	logger  *slog.Logger
	metrics *metrics.ConsumerMetrics
}

// NewKafkaPublisher creates a publisher. metrics may be nil.
func NewKafkaPublisher(writer RecordWriter, logger *slog.Logger, m *metrics.ConsumerMetrics) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{writer: writer, logger: logger, metrics: m}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		p.metrics.IncPublished(topic, "encode_error")
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	headers := map[string]string{producer.HeaderRequestID: requestcontext.RequestID(ctx)}
	if err := p.writer.Publish(ctx, topic, []byte(key), value, headers); err != nil {
		p.metrics.IncPublished(topic, "error")
		return err
	}
	p.metrics.IncPublished(topic, "ok")
	p.logger.DebugContext(ctx, "event published", "topic", topic, "key", key)
	return nil
}

// NoOpPublisher drops events. Used when the relay is disabled.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, string, string, any) error { return nil }
