package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ecoledger/internal/certification/models"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/sentinel"
	"ecoledger/pkg/platform/tx"
)

// PostgresStore persists seals in green_seals and the ledger in seal_changes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sealColumns = `producer_id, status, tier, score, reasons, rule_version,
	last_audit_id, last_verdict, last_checked_at, expires_at`

// FindSeal locks the row for the rest of the transaction when called inside one.
func (s *PostgresStore) FindSeal(ctx context.Context, producerID domain.ProducerID) (*models.Seal, error) {
	query := `SELECT ` + sealColumns + ` FROM green_seals WHERE producer_id = $1`
	if _, ok := tx.From(ctx); ok {
		query += ` FOR UPDATE`
	}
	seal, err := scanSeal(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, string(producerID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find seal: %w", err)
	}
	return seal, nil
}

func (s *PostgresStore) SaveSeal(ctx context.Context, seal *models.Seal) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO green_seals (`+sealColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (producer_id) DO UPDATE SET
			status = EXCLUDED.status,
			tier = EXCLUDED.tier,
			score = EXCLUDED.score,
			reasons = EXCLUDED.reasons,
			rule_version = EXCLUDED.rule_version,
			last_audit_id = EXCLUDED.last_audit_id,
			last_verdict = EXCLUDED.last_verdict,
			last_checked_at = EXCLUDED.last_checked_at,
			expires_at = EXCLUDED.expires_at`,
		string(seal.ProducerID), string(seal.Status), nullableTier(seal.Tier), seal.Score,
		pq.Array(nonNil(seal.Reasons)), seal.RuleVersion, nullableAuditID(seal.LastAuditID),
		nullableVerdict(seal.LastVerdict), seal.LastCheckedAt, seal.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert seal: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendChange(ctx context.Context, change *models.Change) error {
	var from any
	if change.From != nil {
		from = string(*change.From)
	}
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO seal_changes (id, producer_id, from_status, to_status, reason, evidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(change.ID), string(change.ProducerID), from, string(change.To),
		change.Reason, change.Evidence, change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert seal change: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListChanges(ctx context.Context, producerID domain.ProducerID) ([]*models.Change, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT id, producer_id, from_status, to_status, reason, evidence, created_at
		FROM seal_changes WHERE producer_id = $1
		ORDER BY created_at DESC, id`, string(producerID))
	if err != nil {
		return nil, fmt.Errorf("list seal changes: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Change, 0)
	for rows.Next() {
		var (
			c        models.Change
			id       uuid.UUID
			producer string
			from     sql.NullString
			to       string
			evidence sql.NullString
		)
		if err := rows.Scan(&id, &producer, &from, &to, &c.Reason, &evidence, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan seal change: %w", err)
		}
		c.ID = domain.ChangeID(id)
		c.ProducerID = domain.ProducerID(producer)
		c.To = models.Status(to)
		if from.Valid {
			st := models.Status(from.String)
			c.From = &st
		}
		if evidence.Valid {
			e := evidence.String
			c.Evidence = &e
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seal changes: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.ProducerID, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT producer_id FROM green_seals
		WHERE expires_at < $1
		ORDER BY expires_at, producer_id
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired seals: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ProducerID, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired seal: %w", err)
		}
		out = append(out, domain.ProducerID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired seals: %w", err)
	}
	return out, nil
}

func scanSeal(row *sql.Row) (*models.Seal, error) {
	var (
		seal     models.Seal
		producer string
		status   string
		tier     sql.NullString
		reasons  pq.StringArray
		auditID  uuid.NullUUID
		verdict  sql.NullString
	)
	if err := row.Scan(&producer, &status, &tier, &seal.Score, &reasons, &seal.RuleVersion,
		&auditID, &verdict, &seal.LastCheckedAt, &seal.ExpiresAt); err != nil {
		return nil, err
	}
	seal.ProducerID = domain.ProducerID(producer)
	seal.Status = models.Status(status)
	seal.Reasons = []string(reasons)
	if seal.Reasons == nil {
		seal.Reasons = []string{}
	}
	if tier.Valid {
		t := models.Tier(tier.String)
		seal.Tier = &t
	}
	if auditID.Valid {
		id := domain.AuditID(auditID.UUID)
		seal.LastAuditID = &id
	}
	if verdict.Valid {
		v := models.Verdict(verdict.String)
		seal.LastVerdict = &v
	}
	return &seal, nil
}

func nullableTier(t *models.Tier) any {
	if t == nil {
		return nil
	}
	return string(*t)
}

func nullableVerdict(v *models.Verdict) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

func nullableAuditID(id *domain.AuditID) any {
	if id == nil {
		return nil
	}
	return uuid.UUID(*id)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
