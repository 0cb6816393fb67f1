package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoledger/internal/certification/models"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/sentinel"
)

func newSeal(producer domain.ProducerID, status models.Status, expires time.Time) *models.Seal {
	return &models.Seal{
		ProducerID:    producer,
		Status:        status,
		Reasons:       []string{},
		RuleVersion:   "1.0.0",
		LastCheckedAt: expires.Add(-time.Hour),
		ExpiresAt:     expires,
	}
}

func TestInMemoryStore_SealRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	_, err := s.FindSeal(ctx, "p-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	seal := newSeal("p-1", models.StatusActive, time.Now().Add(time.Hour))
	require.NoError(t, s.SaveSeal(ctx, seal))

	got, err := s.FindSeal(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)

	got.Status = models.StatusInactive
	again, err := s.FindSeal(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, again.Status, "callers get copies")

	seal.Status = models.StatusPending
	require.NoError(t, s.SaveSeal(ctx, seal))
	again, err = s.FindSeal(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status, "save replaces")
}

func TestInMemoryStore_ListChangesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	pending := models.StatusPending
	require.NoError(t, s.AppendChange(ctx, models.NewChange("p-1", nil, models.StatusPending, "first", nil, base)))
	require.NoError(t, s.AppendChange(ctx, models.NewChange("p-1", &pending, models.StatusActive, "second", nil, base.Add(time.Minute))))
	require.NoError(t, s.AppendChange(ctx, models.NewChange("p-2", nil, models.StatusInactive, "other", nil, base)))

	changes, err := s.ListChanges(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "second", changes[0].Reason)
	assert.Equal(t, "first", changes[1].Reason)

	empty, err := s.ListChanges(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInMemoryStore_ListExpired(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveSeal(ctx, newSeal("late", models.StatusActive, now.Add(-time.Hour))))
	require.NoError(t, s.SaveSeal(ctx, newSeal("later", models.StatusActive, now.Add(-time.Minute))))
	require.NoError(t, s.SaveSeal(ctx, newSeal("exact", models.StatusActive, now)))
	require.NoError(t, s.SaveSeal(ctx, newSeal("fresh", models.StatusActive, now.Add(time.Hour))))

	ids, err := s.ListExpired(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.ProducerID{"late", "later"}, ids)

	ids, err = s.ListExpired(ctx, now, 1)
	require.NoError(t, err)
	assert.Equal(t, []domain.ProducerID{"late"}, ids)
}
