package store

import (
	"context"
	"sort"
	"sync"

	"ecoledger/internal/movement/models"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/sentinel"
)

// InMemoryStore keeps movements in process memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	movements map[domain.MovementID]*models.Movement
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{movements: make(map[domain.MovementID]*models.Movement)}
}

func (s *InMemoryStore) Save(_ context.Context, m *models.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movements[m.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	s.movements[m.ID] = clone(m)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.MovementID) (*models.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movements[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(m), nil
}

func (s *InMemoryStore) ListByProducer(_ context.Context, filter models.ListFilter) (models.Page, error) {
	s.mu.RLock()
	matched := make([]*models.Movement, 0)
	for _, m := range s.movements {
		if filter.Matches(m) {
			matched = append(matched, m)
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(matched)
	total := len(matched)
	start := min(filter.Offset(), total)
	end := min(start+filter.Size, total)

	items := make([]*models.Movement, 0, end-start)
	for _, m := range matched[start:end] {
		items = append(items, clone(m))
	}
	return models.Page{Items: items, Total: total}, nil
}

func (s *InMemoryStore) ListByCommodity(_ context.Context, commodityID domain.CommodityID) ([]*models.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Movement, 0)
	for _, m := range s.movements {
		if m.CommodityID == commodityID {
			out = append(out, clone(m))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(ms []*models.Movement) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].OccurredAt.Equal(ms[j].OccurredAt) {
			return ms[i].OccurredAt.After(ms[j].OccurredAt)
		}
		return ms[i].CreatedAt.After(ms[j].CreatedAt)
	})
}

func clone(m *models.Movement) *models.Movement {
	c := *m
	c.Attachments = append([]models.Attachment(nil), m.Attachments...)
	if m.Location != nil {
		loc := *m.Location
		c.Location = &loc
	}
	return &c
}
