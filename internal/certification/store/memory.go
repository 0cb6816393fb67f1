package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"ecoledger/internal/certification/models"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/sentinel"
)

// InMemoryStore keeps seals and their ledger in process. Callers serialize
// read-modify-write per producer through service.ShardedTransactor.
type InMemoryStore struct {
	mu      sync.RWMutex
	seals   map[domain.ProducerID]*models.Seal
	changes map[domain.ProducerID][]*models.Change
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		seals:   make(map[domain.ProducerID]*models.Seal),
		changes: make(map[domain.ProducerID][]*models.Change),
	}
}

func (s *InMemoryStore) FindSeal(_ context.Context, producerID domain.ProducerID) (*models.Seal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seal, ok := s.seals[producerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return seal.Clone(), nil
}

func (s *InMemoryStore) SaveSeal(_ context.Context, seal *models.Seal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seals[seal.ProducerID] = seal.Clone()
	return nil
}

func (s *InMemoryStore) AppendChange(_ context.Context, change *models.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *change
	s.changes[change.ProducerID] = append(s.changes[change.ProducerID], &c)
	return nil
}

// ListChanges returns entries newest first; entries created at the same
// instant keep reverse insertion order.
func (s *InMemoryStore) ListChanges(_ context.Context, producerID domain.ProducerID) ([]*models.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.changes[producerID]
	out := make([]*models.Change, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		c := *stored[i]
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.ProducerID, error) {
	s.mu.RLock()
	expired := make([]*models.Seal, 0)
	for _, seal := range s.seals {
		if seal.Expired(now) {
			expired = append(expired, seal)
		}
	}
	s.mu.RUnlock()

	sort.Slice(expired, func(i, j int) bool {
		if expired[i].ExpiresAt.Equal(expired[j].ExpiresAt) {
			return expired[i].ProducerID < expired[j].ProducerID
		}
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	out := make([]domain.ProducerID, len(expired))
	for i, seal := range expired {
		out[i] = seal.ProducerID
	}
	return out, nil
}
