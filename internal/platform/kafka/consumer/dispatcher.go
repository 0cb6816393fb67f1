package consumer

import (
	"context"
	"log/slog"
	"time"

	"ecoledger/internal/platform/kafka/producer"
	"ecoledger/internal/platform/metrics"
	"ecoledger/internal/platform/tracing"
	"ecoledger/pkg/requestcontext"
)

// Outcome of dispatching one message.
type Outcome int

const (
	// Handled means the handler succeeded; the message may be committed.
	Handled Outcome = iota
	// Abandoned means every attempt failed; the message is committed and dropped.
	Abandoned
	// Interrupted means the context ended mid-retry; the message must not be committed.
	Interrupted
)

// Dispatcher runs a handler with a fixed backoff between attempts. It makes
// 1+MaxRetries attempts before giving up on a message.
type Dispatcher struct {
	handler    Handler
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	metrics    *metrics.ConsumerMetrics
	sleep      func(ctx context.Context, d time.Duration) error
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *metrics.ConsumerMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithSleep replaces the backoff wait. Tests use it to avoid real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = fn }
}

// NewDispatcher creates a dispatcher around handler.
func NewDispatcher(handler Handler, maxRetries int, backoff time.Duration, opts ...DispatcherOption) *Dispatcher {
	if maxRetries < 0 {
		maxRetries = 0
	}
	d := &Dispatcher{
		handler:    handler,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     slog.Default(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers msg until it is handled, retries run out, or ctx ends.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) Outcome {
	start := time.Now()
	defer func() { d.metrics.ObserveHandle(msg.Topic, time.Since(start).Seconds()) }()

	for attempt := 0; ; attempt++ {
		err := d.attempt(ctx, msg)
		if err == nil {
			d.metrics.IncDelivery(msg.Topic, "handled")
			return Handled
		}
		if ctx.Err() != nil {
			d.metrics.IncDelivery(msg.Topic, "interrupted")
			return Interrupted
		}

		d.logger.WarnContext(ctx, "message handling failed",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt+1,
			"error", err,
		)

		if attempt >= d.maxRetries {
			d.logger.ErrorContext(ctx, "giving up on message after retries",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"attempts", attempt+1,
				"error", err,
			)
			d.metrics.IncDelivery(msg.Topic, "abandoned")
			d.metrics.IncAbandoned(msg.Topic)
			return Abandoned
		}

		d.metrics.IncRetry(msg.Topic)
		if err := d.sleep(ctx, d.backoff); err != nil {
			d.metrics.IncDelivery(msg.Topic, "interrupted")
			return Interrupted
		}
	}
}

func (d *Dispatcher) attempt(ctx context.Context, msg *Message) (err error) {
	ctx, span := tracing.Start(ctx, "consumer", "consume "+msg.Topic,
		"messaging.destination", msg.Topic,
		"messaging.message.key", string(msg.Key),
	)
	defer func() { tracing.End(span, err) }()

	if id := msg.Headers[producer.HeaderRequestID]; id != "" {
		ctx = requestcontext.WithRequestID(ctx, id)
	}
	ctx = requestcontext.WithTime(ctx, time.Now().UTC())
	return d.handler.Handle(ctx, msg)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
