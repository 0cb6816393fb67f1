// Package consumer runs manual-commit consumer group loops on top of franz-go.
package consumer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"ecoledger/internal/platform/config"
	"ecoledger/internal/platform/kafka"
	"ecoledger/internal/platform/metrics"
)

// Consumer polls a consumer group and commits each record only after it has
// been handled or abandoned.
type Consumer struct {
	client     *kgo.Client
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// New creates a consumer for group on topics. Auto-commit is disabled.
func New(cfg config.Kafka, group string, topics []string, handler Handler, logger *slog.Logger, m *metrics.ConsumerMetrics) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cl, err := kafka.NewClient(cfg,
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		client:     cl,
		dispatcher: NewDispatcher(handler, cfg.MaxRetries, cfg.RetryBackoff, WithLogger(logger), WithMetrics(m)),
		logger:     logger,
	}, nil
}

// Run polls until ctx is cancelled. Records are processed in order per
// partition; an interrupted record is left uncommitted so it is redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if !errors.Is(err, context.Canceled) {
				c.logger.ErrorContext(ctx, "fetch error",
					"topic", topic,
					"partition", partition,
					"error", err,
				)
			}
		})

		var done []*kgo.Record
		interrupted := false
		fetches.EachRecord(func(rec *kgo.Record) {
			if interrupted {
				return
			}
			msg := toMessage(rec)
			c.logger.DebugContext(ctx, "message received",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			if c.dispatcher.Dispatch(ctx, msg) == Interrupted {
				interrupted = true
				return
			}
			done = append(done, rec)
		})

		if len(done) > 0 {
			// Commit with a fresh context so work finished before shutdown is kept.
			if err := c.client.CommitRecords(context.WithoutCancel(ctx), done...); err != nil {
				c.logger.ErrorContext(ctx, "commit failed", "error", err, "records", len(done))
			}
		}
		if interrupted {
			return nil
		}
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}

func toMessage(rec *kgo.Record) *Message {
	msg := &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Timestamp: rec.Timestamp,
	}
	if len(rec.Headers) > 0 {
		msg.Headers = make(map[string]string, len(rec.Headers))
		for _, h := range rec.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}

