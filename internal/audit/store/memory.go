package store

import (
	"context"
	"sort"
	"sync"

	"ecoledger/internal/audit/models"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/sentinel"
)

// InMemoryStore keeps audit records in process memory.
type InMemoryStore struct {
	mu         sync.RWMutex
	byID       map[domain.AuditID]*models.Record
	byMovement map[domain.MovementID]domain.AuditID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:       make(map[domain.AuditID]*models.Record),
		byMovement: make(map[domain.MovementID]domain.AuditID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byMovement[record.MovementID]; ok {
		return sentinel.ErrAlreadyExists
	}
	s.byID[record.ID] = clone(record)
	s.byMovement[record.MovementID] = record.ID
	return nil
}

func (s *InMemoryStore) ExistsByMovement(_ context.Context, movementID domain.MovementID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byMovement[movementID]
	return ok, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.AuditID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(r), nil
}

func (s *InMemoryStore) ListByProducer(_ context.Context, producerID domain.ProducerID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Record, 0)
	for _, r := range s.byID {
		if r.ProducerID == producerID {
			out = append(out, clone(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ProcessedAt.After(out[j].ProcessedAt)
	})
	return out, nil
}

func (s *InMemoryStore) SaveRevision(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[record.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Revised() {
		return sentinel.ErrInvalidState
	}
	current.Verdict = record.Verdict
	current.AuditorID = record.AuditorID
	current.Observation = record.Observation
	current.RevisedAt = record.RevisedAt
	return nil
}

func clone(r *models.Record) *models.Record {
	c := *r
	c.Evidence = append([]models.Evidence(nil), r.Evidence...)
	return &c
}
