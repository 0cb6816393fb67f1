package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ecoledger/internal/movement/models"
	"ecoledger/internal/platform/postgres"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/sentinel"
	"ecoledger/pkg/platform/tx"
)

// PostgresStore persists movements and their attachments.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const movementColumns = `id, producer_id, commodity_id, movement_type, quantity, unit,
	occurred_at, latitude, longitude, created_at`

// Save writes the movement row and its attachments in one transaction.
func (s *PostgresStore) Save(ctx context.Context, m *models.Movement) error {
	return tx.RunInTx(ctx, s.db, func(ctx context.Context) error {
		conn := tx.Conn(ctx, s.db)
		var lat, lon any
		if m.Location != nil {
			lat, lon = m.Location.Lat, m.Location.Lon
		}
		_, err := conn.ExecContext(ctx, `
			INSERT INTO movements (`+movementColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			uuid.UUID(m.ID), string(m.ProducerID), string(m.CommodityID), m.Type, m.Quantity,
			m.Unit, m.OccurredAt, lat, lon, m.CreatedAt,
		)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return sentinel.ErrAlreadyExists
			}
			return fmt.Errorf("insert movement: %w", err)
		}
		for i, a := range m.Attachments {
			_, err := conn.ExecContext(ctx, `
				INSERT INTO movement_attachments (movement_id, position, type, url, hash)
				VALUES ($1, $2, $3, $4, $5)`,
				uuid.UUID(m.ID), i, a.Type, a.URL, a.Hash,
			)
			if err != nil {
				return fmt.Errorf("insert movement attachment: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.MovementID) (*models.Movement, error) {
	conn := tx.Conn(ctx, s.db)
	m, err := scanMovement(conn.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE id = $1`, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find movement: %w", err)
	}
	if err := s.loadAttachments(ctx, []*models.Movement{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) ListByProducer(ctx context.Context, filter models.ListFilter) (models.Page, error) {
	where := []string{"producer_id = $1"}
	args := []any{string(filter.ProducerID)}
	if filter.CommodityID != "" {
		args = append(args, string(filter.CommodityID))
		where = append(where, fmt.Sprintf("commodity_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("occurred_at <= $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")
	conn := tx.Conn(ctx, s.db)

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM movements WHERE `+clause, args...).Scan(&total); err != nil {
		return models.Page{}, fmt.Errorf("count movements: %w", err)
	}

	pageArgs := append(append([]any{}, args...), filter.Size, filter.Offset())
	rows, err := conn.QueryContext(ctx, fmt.Sprintf(
		`SELECT `+movementColumns+` FROM movements WHERE %s
		ORDER BY occurred_at DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		clause, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return models.Page{}, fmt.Errorf("list movements: %w", err)
	}
	items, err := collect(rows)
	if err != nil {
		return models.Page{}, err
	}
	if err := s.loadAttachments(ctx, items); err != nil {
		return models.Page{}, err
	}
	return models.Page{Items: items, Total: total}, nil
}

func (s *PostgresStore) ListByCommodity(ctx context.Context, commodityID domain.CommodityID) ([]*models.Movement, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE commodity_id = $1
		ORDER BY occurred_at DESC, created_at DESC`, string(commodityID))
	if err != nil {
		return nil, fmt.Errorf("list commodity movements: %w", err)
	}
	items, err := collect(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadAttachments(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) loadAttachments(ctx context.Context, ms []*models.Movement) error {
	if len(ms) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Movement, len(ms))
	ids := make([]string, 0, len(ms))
	for _, m := range ms {
		m.Attachments = []models.Attachment{}
		byID[uuid.UUID(m.ID)] = m
		ids = append(ids, m.ID.String())
	}

	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT movement_id, type, url, hash FROM movement_attachments
		WHERE movement_id = ANY($1::uuid[])
		ORDER BY movement_id, position`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id uuid.UUID
			a  models.Attachment
		)
		if err := rows.Scan(&id, &a.Type, &a.URL, &a.Hash); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		if m, ok := byID[id]; ok {
			m.Attachments = append(m.Attachments, a)
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func collect(rows *sql.Rows) ([]*models.Movement, error) {
	defer rows.Close()
	out := make([]*models.Movement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movements: %w", err)
	}
	return out, nil
}

func scanMovement(row scanner) (*models.Movement, error) {
	var (
		m                   models.Movement
		id                  uuid.UUID
		producer, commodity string
		lat, lon            sql.NullFloat64
	)
	if err := row.Scan(&id, &producer, &commodity, &m.Type, &m.Quantity, &m.Unit,
		&m.OccurredAt, &lat, &lon, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.ID = domain.MovementID(id)
	m.ProducerID = domain.ProducerID(producer)
	m.CommodityID = domain.CommodityID(commodity)
	if lat.Valid && lon.Valid {
		m.Location = &models.Location{Lat: lat.Float64, Lon: lon.Float64}
	}
	return &m, nil
}
