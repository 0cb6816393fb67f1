package service

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"ecoledger/pkg/domain"
	dErrors "ecoledger/pkg/domain-errors"
	"ecoledger/pkg/platform/tx"
)

// Transactor scopes one read-compute-write of a producer's seal. Store calls
// made with the ctx passed to fn take part in the unit of work.
type Transactor interface {
	RunInTx(ctx context.Context, producerID domain.ProducerID, fn func(ctx context.Context) error) error
}

// SQLTransactor runs the unit of work in one database transaction that first
// takes a transaction-scoped advisory lock on the producer id. The lock also
// covers a producer with no seal row yet, which FOR UPDATE cannot.
type SQLTransactor struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLTransactor(db *sql.DB) *SQLTransactor {
	return &SQLTransactor{db: db, timeout: defaultSealTxTimeout}
}

func (t *SQLTransactor) RunInTx(ctx context.Context, producerID domain.ProducerID, fn func(ctx context.Context) error) error {
	ctx, cancel, err := bound(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()
	return tx.RunInTx(ctx, t.db, func(ctx context.Context) error {
		if _, err := tx.Conn(ctx, t.db).ExecContext(ctx, sealLockQuery, string(producerID)); err != nil {
			return fmt.Errorf("lock producer seal: %w", err)
		}
		return fn(ctx)
	})
}

const sealLockQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`

const (
	numSealShards        = 64
	defaultSealTxTimeout = 5 * time.Second
)

// ShardedTransactor serializes work per producer with a fixed set of mutexes
// selected by a hash of the producer id. Used with the in-memory store.
type ShardedTransactor struct {
	shards  [numSealShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTransactor() *ShardedTransactor {
	return &ShardedTransactor{timeout: defaultSealTxTimeout}
}

func (t *ShardedTransactor) RunInTx(ctx context.Context, producerID domain.ProducerID, fn func(ctx context.Context) error) error {
	ctx, cancel, err := bound(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	mu := &t.shards[shardFor(producerID)]
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

// bound rejects an already cancelled ctx and applies timeout when the caller
// set no deadline.
func bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

func shardFor(producerID domain.ProducerID) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(producerID))
	return h.Sum32() % numSealShards
}
