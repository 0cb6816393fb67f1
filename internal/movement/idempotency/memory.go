package idempotency

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"ecoledger/pkg/platform/sentinel"
)

// InMemoryStore keeps idempotency records in process memory.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
	byKey   map[string]uuid.UUID
	// unkeyed records by fingerprint
	byPrint map[string]uuid.UUID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[uuid.UUID]*Record),
		byKey:   make(map[string]uuid.UUID),
		byPrint: make(map[string]uuid.UUID),
	}
}

func (s *InMemoryStore) FindByKey(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	r := *s.records[id]
	return &r, nil
}

func (s *InMemoryStore) FindByFingerprint(_ context.Context, fingerprint string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *Record
	for _, r := range s.records {
		if r.Fingerprint != fingerprint {
			continue
		}
		if found == nil || (r.Completed() && !found.Completed()) ||
			(r.Completed() == found.Completed() && r.CreatedAt.Before(found.CreatedAt)) {
			found = r
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	r := *found
	return &r, nil
}

func (s *InMemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Key != "" {
		if _, ok := s.byKey[rec.Key]; ok {
			return sentinel.ErrAlreadyExists
		}
		s.byKey[rec.Key] = rec.ID
	} else {
		if _, ok := s.byPrint[rec.Fingerprint]; ok {
			return sentinel.ErrAlreadyExists
		}
		s.byPrint[rec.Fingerprint] = rec.ID
	}
	r := *rec
	s.records[rec.ID] = &r
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[rec.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	current.Status = rec.Status
	current.ResultID = rec.ResultID
	current.UpdatedAt = rec.UpdatedAt
	return nil
}
