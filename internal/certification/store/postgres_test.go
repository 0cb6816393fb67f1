package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoledger/internal/certification/models"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/sentinel"
	"ecoledger/pkg/platform/tx"
)

var sealCols = []string{
	"producer_id", "status", "tier", "score", "reasons", "rule_version",
	"last_audit_id", "last_verdict", "last_checked_at", "expires_at",
}

func newMockStore(t *testing.T) (*PostgresStore, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), db, mock
}

func TestPostgresStore_FindSeal(t *testing.T) {
	s, _, mock := newMockStore(t)
	auditID := domain.NewAuditID()
	checked := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM green_seals WHERE producer_id = $1")).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows(sealCols).AddRow(
			"p-1", "ATIVO", "OURO", 95, "{\"QUANTITY_VALIDATION: ok\"}", "1.0.0",
			auditID.String(), "APPROVED", checked, checked.Add(180*24*time.Hour),
		))

	seal, err := s.FindSeal(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, seal.Status)
	require.NotNil(t, seal.Tier)
	assert.Equal(t, models.TierGold, *seal.Tier)
	assert.Equal(t, 95, seal.Score)
	assert.Equal(t, []string{"QUANTITY_VALIDATION: ok"}, seal.Reasons)
	require.NotNil(t, seal.LastAuditID)
	assert.Equal(t, auditID, *seal.LastAuditID)
	require.NotNil(t, seal.LastVerdict)
	assert.Equal(t, models.VerdictApproved, *seal.LastVerdict)

	mock.ExpectQuery(regexp.QuoteMeta("FROM green_seals")).WillReturnError(sql.ErrNoRows)
	_, err = s.FindSeal(context.Background(), "p-2")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

// Justification: inside a transaction the seal row must be locked so two
// concurrent audit outcomes for one producer serialize on it.
func TestPostgresStore_FindSealLocksInsideTx(t *testing.T) {
	s, db, mock := newMockStore(t)
	checked := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE producer_id = $1 FOR UPDATE")).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows(sealCols).AddRow(
			"p-1", "PENDENTE", nil, 60, "{}", "1.0.0", nil, nil, checked, checked,
		))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO green_seals")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tx.RunInTx(context.Background(), db, func(ctx context.Context) error {
		seal, err := s.FindSeal(ctx, "p-1")
		if err != nil {
			return err
		}
		assert.Nil(t, seal.Tier)
		assert.Nil(t, seal.LastVerdict)
		assert.Empty(t, seal.Reasons)
		return s.SaveSeal(ctx, seal)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSeal(t *testing.T) {
	s, _, mock := newMockStore(t)
	tier := models.TierSilver
	verdict := models.VerdictApproved
	auditID := domain.NewAuditID()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seal := &models.Seal{
		ProducerID: "p-1", Status: models.StatusActive, Tier: &tier, Score: 85,
		RuleVersion: "1.0.0", LastAuditID: &auditID, LastVerdict: &verdict,
		LastCheckedAt: now, ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (producer_id) DO UPDATE")).
		WithArgs("p-1", "ATIVO", "PRATA", 85, pq.Array([]string{}), "1.0.0",
			sqlmock.AnyArg(), "APPROVED", now, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SaveSeal(context.Background(), seal))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendAndListChanges(t *testing.T) {
	s, _, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	from := models.StatusPending
	evidence := "audit 1"
	change := models.NewChange("p-1", &from, models.StatusActive, "audit verdict APPROVED", &evidence, now)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO seal_changes")).
		WithArgs(sqlmock.AnyArg(), "p-1", "PENDENTE", "ATIVO", "audit verdict APPROVED", &evidence, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.AppendChange(context.Background(), change))

	first := models.NewChange("p-1", nil, models.StatusPending, "audit verdict REQUIRES_REVIEW", nil, now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "producer_id", "from_status", "to_status", "reason", "evidence", "created_at"}).
			AddRow(change.ID.String(), "p-1", "PENDENTE", "ATIVO", change.Reason, evidence, now).
			AddRow(first.ID.String(), "p-1", nil, "PENDENTE", first.Reason, nil, first.CreatedAt))

	changes, err := s.ListChanges(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, change.ID, changes[0].ID)
	require.NotNil(t, changes[0].From)
	assert.Equal(t, models.StatusPending, *changes[0].From)
	assert.Equal(t, "audit 1", *changes[0].Evidence)
	assert.Nil(t, changes[1].From)
	assert.Nil(t, changes[1].Evidence)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListExpired(t *testing.T) {
	s, _, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE expires_at < $1")).
		WithArgs(now, 50).
		WillReturnRows(sqlmock.NewRows([]string{"producer_id"}).AddRow("p-1").AddRow("p-2"))

	ids, err := s.ListExpired(context.Background(), now, 50)
	require.NoError(t, err)
	assert.Equal(t, []domain.ProducerID{"p-1", "p-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
