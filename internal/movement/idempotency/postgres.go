package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ecoledger/internal/platform/postgres"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/sentinel"
	"ecoledger/pkg/platform/tx"
)

// PostgresStore persists records in idempotency_records. The key column is
// unique; unkeyed records are unique per fingerprint through a partial index.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const idempotencyColumns = `id, idempotency_key, request_hash, result_id, status, created_at, updated_at`

func (s *PostgresStore) FindByKey(ctx context.Context, key string) (*Record, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+idempotencyColumns+` FROM idempotency_records WHERE idempotency_key = $1`, key)
	return scanIdempotency(row)
}

func (s *PostgresStore) FindByFingerprint(ctx context.Context, fingerprint string) (*Record, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+idempotencyColumns+` FROM idempotency_records
		WHERE request_hash = $1
		ORDER BY (status = 'COMPLETED') DESC, created_at
		LIMIT 1`, fingerprint)
	return scanIdempotency(row)
}

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO idempotency_records (id, idempotency_key, request_hash, result_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, nullableString(rec.Key), rec.Fingerprint, nullableResult(rec.ResultID),
		string(rec.Status), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rec *Record) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE idempotency_records SET status = $2, result_id = $3, updated_at = $4 WHERE id = $1`,
		rec.ID, string(rec.Status), nullableResult(rec.ResultID), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update idempotency record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanIdempotency(row *sql.Row) (*Record, error) {
	var (
		r      Record
		key    sql.NullString
		result uuid.NullUUID
		status string
	)
	err := row.Scan(&r.ID, &key, &r.Fingerprint, &result, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan idempotency record: %w", err)
	}
	r.Key = key.String
	r.Status = Status(status)
	if result.Valid {
		r.ResultID = domain.MovementID(result.UUID)
	}
	return &r, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableResult(id domain.MovementID) any {
	if id.IsNil() {
		return nil
	}
	return id.String()
}
