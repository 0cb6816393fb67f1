package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ecoledger/internal/audit/models"
	"ecoledger/internal/platform/postgres"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/sentinel"
	"ecoledger/pkg/platform/tx"
)

// PostgresStore persists audit records in the audit_records table. Evidence is
// stored as a JSONB array so its order is preserved.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, movement_id, producer_id, rule_version, verdict, evidence,
	processed_at, auditor_id, observation, revised_at`

func (s *PostgresStore) Create(ctx context.Context, record *models.Record) error {
	evidence, err := json.Marshal(record.Evidence)
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}
	_, err = tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO audit_records (id, movement_id, producer_id, rule_version, verdict, evidence, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(record.ID), uuid.UUID(record.MovementID), string(record.ProducerID),
		record.RuleVersion, string(record.Verdict), evidence, record.ProcessedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ExistsByMovement(ctx context.Context, movementID domain.MovementID) (bool, error) {
	var exists bool
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM audit_records WHERE movement_id = $1)`,
		uuid.UUID(movementID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check audit existence: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.AuditID) (*models.Record, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM audit_records WHERE id = $1`, uuid.UUID(id))
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find audit record: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByProducer(ctx context.Context, producerID domain.ProducerID) ([]*models.Record, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+recordColumns+` FROM audit_records WHERE producer_id = $1 ORDER BY processed_at DESC, id`,
		string(producerID))
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}

// SaveRevision only updates unrevised rows, so two racing revisions cannot both win.
func (s *PostgresStore) SaveRevision(ctx context.Context, record *models.Record) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE audit_records
		SET verdict = $2, auditor_id = $3, observation = $4, revised_at = $5
		WHERE id = $1 AND revised_at IS NULL`,
		uuid.UUID(record.ID), string(record.Verdict), nullableAuditor(record.AuditorID),
		record.Observation, record.RevisedAt,
	)
	if err != nil {
		return fmt.Errorf("update audit revision: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update audit revision: %w", err)
	}
	if n == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		r           models.Record
		id, mvID    uuid.UUID
		producer    string
		verdict     string
		evidenceRaw []byte
		auditor     sql.NullString
		observation sql.NullString
		revisedAt   sql.NullTime
		processedAt time.Time
	)
	if err := row.Scan(&id, &mvID, &producer, &r.RuleVersion, &verdict, &evidenceRaw,
		&processedAt, &auditor, &observation, &revisedAt); err != nil {
		return nil, err
	}
	r.ID = domain.AuditID(id)
	r.MovementID = domain.MovementID(mvID)
	r.ProducerID = domain.ProducerID(producer)
	r.Verdict = models.Verdict(verdict)
	r.ProcessedAt = processedAt
	r.Evidence = []models.Evidence{}
	if len(evidenceRaw) > 0 {
		if err := json.Unmarshal(evidenceRaw, &r.Evidence); err != nil {
			return nil, fmt.Errorf("decode evidence: %w", err)
		}
	}
	if auditor.Valid {
		a := domain.AuditorID(auditor.String)
		r.AuditorID = &a
	}
	if observation.Valid {
		o := observation.String
		r.Observation = &o
	}
	if revisedAt.Valid {
		t := revisedAt.Time
		r.RevisedAt = &t
	}
	return &r, nil
}

func nullableAuditor(a *domain.AuditorID) any {
	if a == nil {
		return nil
	}
	return string(*a)
}
