package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoledger/internal/movement/models"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/sentinel"
)

var base = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *InMemoryStore, producer domain.ProducerID, commodity domain.CommodityID, day int) *models.Movement {
	t.Helper()
	m := &models.Movement{
		ID:          domain.NewMovementID(),
		ProducerID:  producer,
		CommodityID: commodity,
		Type:        "HARVEST",
		Quantity:    domain.QuantityFromInt(1),
		Unit:        "kg",
		OccurredAt:  base.AddDate(0, 0, day),
		CreatedAt:   base,
		Attachments: []models.Attachment{{Type: "image/png", URL: "https://x/y.png"}},
	}
	require.NoError(t, s.Save(context.Background(), m))
	return m
}

func TestInMemoryStore_SaveAndFind(t *testing.T) {
	s := NewInMemory()
	m := seed(t, s, "p-1", "soy", 0)

	got, err := s.FindByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	got.Attachments[0].URL = "changed"

	again, _ := s.FindByID(context.Background(), m.ID)
	assert.Equal(t, "https://x/y.png", again.Attachments[0].URL)

	assert.ErrorIs(t, s.Save(context.Background(), m), sentinel.ErrAlreadyExists)
	_, err = s.FindByID(context.Background(), domain.NewMovementID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_ListByProducer(t *testing.T) {
	s := NewInMemory()
	for day := range 5 {
		seed(t, s, "p-1", "soy", day)
	}
	seed(t, s, "p-1", "corn", 10)
	seed(t, s, "p-2", "soy", 1)

	page, err := s.ListByProducer(context.Background(), models.ListFilter{ProducerID: "p-1", Page: 1, Size: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	require.Len(t, page.Items, 4)
	assert.Equal(t, domain.CommodityID("corn"), page.Items[0].CommodityID, "newest first")

	page2, err := s.ListByProducer(context.Background(), models.ListFilter{ProducerID: "p-1", Page: 2, Size: 4})
	require.NoError(t, err)
	assert.Len(t, page2.Items, 2)

	from, to := base.AddDate(0, 0, 1), base.AddDate(0, 0, 3)
	filtered, err := s.ListByProducer(context.Background(), models.ListFilter{
		ProducerID: "p-1", CommodityID: "soy", From: &from, To: &to, Page: 1, Size: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, filtered.Total)

	beyond, err := s.ListByProducer(context.Background(), models.ListFilter{ProducerID: "p-1", Page: 9, Size: 20})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 6, beyond.Total)

	huge, err := s.ListByProducer(context.Background(), models.ListFilter{ProducerID: "p-1", Page: math.MaxInt, Size: models.MaxPageSize})
	require.NoError(t, err)
	assert.Empty(t, huge.Items)
	assert.Equal(t, 6, huge.Total)
}

func TestInMemoryStore_ListByCommodity(t *testing.T) {
	s := NewInMemory()
	older := seed(t, s, "p-1", "soy", 1)
	newer := seed(t, s, "p-2", "soy", 2)
	seed(t, s, "p-1", "corn", 3)

	list, err := s.ListByCommodity(context.Background(), "soy")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}
