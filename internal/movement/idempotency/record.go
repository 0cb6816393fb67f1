package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ecoledger/pkg/domain"
)

// Status of an idempotency record.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Record tracks one create request. Key is empty for requests deduplicated
// by fingerprint alone.
type Record struct {
	ID          uuid.UUID         `json:"id"`
	Key         string            `json:"key,omitempty"`
	Fingerprint string            `json:"fingerprint"`
	ResultID    domain.MovementID `json:"resultId,omitzero"`
	Status      Status            `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Completed reports whether the record holds a permanent result.
func (r *Record) Completed() bool { return r.Status == StatusCompleted }

// Store persists idempotency records.
type Store interface {
	// FindByKey returns sentinel.ErrNotFound when no record uses key.
	FindByKey(ctx context.Context, key string) (*Record, error)
	// FindByFingerprint prefers a COMPLETED record when several share the
	// fingerprint. Returns sentinel.ErrNotFound when none does.
	FindByFingerprint(ctx context.Context, fingerprint string) (*Record, error)
	// Create returns sentinel.ErrAlreadyExists when the key is taken, or for
	// an unkeyed record when the fingerprint already has an unkeyed record.
	Create(ctx context.Context, rec *Record) error
	// Update replaces status, result and updated-at of an existing record.
	Update(ctx context.Context, rec *Record) error
}
