// Package idempotency deduplicates movement create requests, either by a
// client-supplied key or by a fingerprint of the request body.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"ecoledger/internal/movement/metrics"
	"ecoledger/pkg/domain"
	dErrors "ecoledger/pkg/domain-errors"
	"ecoledger/pkg/platform/sentinel"
	"ecoledger/pkg/requestcontext"
)

// ErrUnresolved means a record for the key exists but has not completed. The
// caller must treat the request as neither succeeded nor failed.
var ErrUnresolved = errors.New("idempotent request unresolved")

// ErrFailed is the unresolved case where the earlier attempt for the key
// failed. It matches ErrUnresolved.
var ErrFailed = fmt.Errorf("%w: earlier attempt failed", ErrUnresolved)

// CreateFunc performs the guarded creation.
type CreateFunc func(ctx context.Context) (domain.MovementID, error)

// Coordinator runs a create operation at most once per key. Two concurrent
// first requests with the same key are not serialized: the one that loses
// the record insert gets ErrUnresolved.
type Coordinator struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func NewCoordinator(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle returns the result id for the request identified by key, or by
// fingerprint when key is empty, invoking create only when no completed
// result exists.
func (c *Coordinator) Handle(ctx context.Context, key, fingerprint string, create CreateFunc) (domain.MovementID, error) {
	if key != "" {
		return c.handleKeyed(ctx, key, fingerprint, create)
	}
	return c.handleFingerprint(ctx, fingerprint, create)
}

func (c *Coordinator) handleKeyed(ctx context.Context, key, fingerprint string, create CreateFunc) (domain.MovementID, error) {
	existing, err := c.store.FindByKey(ctx, key)
	switch {
	case err == nil:
		if existing.Completed() {
			c.metrics.IncReplay("key")
			return existing.ResultID, nil
		}
		c.metrics.IncUnresolved()
		if existing.Status == StatusFailed {
			return domain.MovementID{}, ErrFailed
		}
		return domain.MovementID{}, ErrUnresolved
	case !errors.Is(err, sentinel.ErrNotFound):
		return domain.MovementID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load idempotency record")
	}

	now := requestcontext.Now(ctx)
	rec := &Record{
		ID:          uuid.New(),
		Key:         key,
		Fingerprint: fingerprint,
		Status:      StatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.store.Create(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			c.metrics.IncUnresolved()
			return domain.MovementID{}, ErrUnresolved
		}
		return domain.MovementID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save idempotency record")
	}

	id, createErr := create(ctx)
	rec.UpdatedAt = requestcontext.Now(ctx)
	if createErr != nil {
		rec.Status = StatusFailed
		if err := c.store.Update(ctx, rec); err != nil {
			c.logger.ErrorContext(ctx, "failed to mark idempotency record failed",
				"idempotency_key", key,
				"error", err,
			)
		}
		return domain.MovementID{}, createErr
	}

	rec.Status = StatusCompleted
	rec.ResultID = id
	if err := c.store.Update(ctx, rec); err != nil {
		// The movement exists; later requests with this key stay unresolved.
		c.logger.ErrorContext(ctx, "failed to complete idempotency record",
			"idempotency_key", key,
			"movement_id", id,
			"error", err,
		)
	}
	return id, nil
}

func (c *Coordinator) handleFingerprint(ctx context.Context, fingerprint string, create CreateFunc) (domain.MovementID, error) {
	existing, err := c.store.FindByFingerprint(ctx, fingerprint)
	switch {
	case err == nil && existing.Completed():
		c.metrics.IncReplay("fingerprint")
		return existing.ResultID, nil
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return domain.MovementID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load idempotency record")
	}

	id, err := create(ctx)
	if err != nil {
		return domain.MovementID{}, err
	}

	now := requestcontext.Now(ctx)
	rec := &Record{
		ID:          uuid.New(),
		Fingerprint: fingerprint,
		ResultID:    id,
		Status:      StatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.store.Create(ctx, rec); err != nil {
		c.logger.WarnContext(ctx, "failed to record fingerprint result",
			"fingerprint", fingerprint,
			"movement_id", id,
			"error", err,
		)
	}
	return id, nil
}
