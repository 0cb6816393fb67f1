package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingHandler struct {
	calls   int
	failFor int
}

func (h *countingHandler) Handle(_ context.Context, _ *Message) error {
	h.calls++
	if h.calls <= h.failFor {
		return errors.New("store unavailable")
	}
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher(t *testing.T) {
	msg := &Message{Topic: "audit-completed", Key: []byte("k")}

	t.Run("acknowledges after first success", func(t *testing.T) {
		h := &countingHandler{}
		d := NewDispatcher(h, 3, time.Second, WithLogger(quietLogger()))

		assert.Equal(t, Handled, d.Dispatch(context.Background(), msg))
		assert.Equal(t, 1, h.calls)
	})

	t.Run("retries with fixed backoff until success", func(t *testing.T) {
		h := &countingHandler{failFor: 2}
		var waits []time.Duration
		d := NewDispatcher(h, 3, 250*time.Millisecond,
			WithLogger(quietLogger()),
			WithSleep(func(_ context.Context, d time.Duration) error {
				waits = append(waits, d)
				return nil
			}),
		)

		assert.Equal(t, Handled, d.Dispatch(context.Background(), msg))
		assert.Equal(t, 3, h.calls)
		assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, waits)
	})

	t.Run("abandons after max retries", func(t *testing.T) {
		h := &countingHandler{failFor: 100}
		d := NewDispatcher(h, 3, time.Millisecond,
			WithLogger(quietLogger()),
			WithSleep(func(context.Context, time.Duration) error { return nil }),
		)

		assert.Equal(t, Abandoned, d.Dispatch(context.Background(), msg))
		assert.Equal(t, 4, h.calls, "one attempt plus three retries")
	})

	t.Run("stops without acknowledging when context ends during backoff", func(t *testing.T) {
		h := &countingHandler{failFor: 100}
		ctx, cancel := context.WithCancel(context.Background())
		d := NewDispatcher(h, 3, time.Hour,
			WithLogger(quietLogger()),
			WithSleep(func(ctx context.Context, _ time.Duration) error {
				cancel()
				return ctx.Err()
			}),
		)

		assert.Equal(t, Interrupted, d.Dispatch(ctx, msg))
		assert.Equal(t, 1, h.calls)
	})
}

func TestRouter(t *testing.T) {
	var got string
	r := NewRouter(quietLogger())
	r.Register("movement-created", HandlerFunc(func(_ context.Context, m *Message) error {
		got = m.Topic
		return nil
	}))

	t.Run("routes by topic", func(t *testing.T) {
		assert.NoError(t, r.Handle(context.Background(), &Message{Topic: "movement-created"}))
		assert.Equal(t, "movement-created", got)
	})

	t.Run("unknown topic is acknowledged", func(t *testing.T) {
		assert.NoError(t, r.Handle(context.Background(), &Message{Topic: "other"}))
	})
}
