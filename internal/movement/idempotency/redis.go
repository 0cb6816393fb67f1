package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ecoledger/pkg/platform/sentinel"
)

const (
	keyPrefix         = "idempotency:key:"
	fingerprintPrefix = "idempotency:fp:"
)

// RedisStore keeps records as JSON values. A keyed record lives under its key;
// unkeyed records live under their fingerprint. Completing a keyed record also
// indexes it by fingerprint if that slot is free.
//
// Completed records never expire. In-progress and failed records expire after
// unresolvedTTL so an abandoned key is eventually released.
type RedisStore struct {
	client        redis.Cmdable
	unresolvedTTL time.Duration
}

// NewRedisStore creates a store. Zero unresolvedTTL keeps every record.
func NewRedisStore(client redis.Cmdable, unresolvedTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, unresolvedTTL: unresolvedTTL}
}

func (s *RedisStore) FindByKey(ctx context.Context, key string) (*Record, error) {
	return s.get(ctx, keyPrefix+key)
}

func (s *RedisStore) FindByFingerprint(ctx context.Context, fingerprint string) (*Record, error) {
	return s.get(ctx, fingerprintPrefix+fingerprint)
}

func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, slotFor(rec), data, s.ttlFor(rec)).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return sentinel.ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	ok, err := s.client.SetXX(ctx, slotFor(rec), data, s.ttlFor(rec)).Result()
	if err != nil {
		return fmt.Errorf("redis setxx: %w", err)
	}
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.Key != "" && rec.Completed() {
		if err := s.client.SetNX(ctx, fingerprintPrefix+rec.Fingerprint, data, 0).Err(); err != nil {
			return fmt.Errorf("redis index fingerprint: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, slot string) (*Record, error) {
	data, err := s.client.Get(ctx, slot).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

// ttlFor returns the expiry for rec. A SET with zero expiry also clears any
// TTL left from the in-progress write.
func (s *RedisStore) ttlFor(rec *Record) time.Duration {
	if rec.Completed() {
		return 0
	}
	return s.unresolvedTTL
}

func slotFor(rec *Record) string {
	if rec.Key != "" {
		return keyPrefix + rec.Key
	}
	return fingerprintPrefix + rec.Fingerprint
}
