// Package producer publishes event relay records.
package producer

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// HeaderRequestID carries the originating HTTP request id across topics.
const HeaderRequestID = "request_id"

// Producer writes records synchronously so callers know the broker accepted them.
type Producer struct {
	client *kgo.Client
}

// New wraps an existing client. The caller owns the client lifecycle.
func New(client *kgo.Client) *Producer {
	return &Producer{client: client}
}

// Publish writes one record and waits for the broker acknowledgment.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	for k, v := range headers {
		if v == "" {
			continue
		}
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}
