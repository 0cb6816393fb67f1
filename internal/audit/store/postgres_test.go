package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoledger/internal/audit/models"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/sentinel"
	"ecoledger/pkg/platform/tx"
)

var recordCols = []string{
	"id", "movement_id", "producer_id", "rule_version", "verdict", "evidence",
	"processed_at", "auditor_id", "observation", "revised_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresStore_Create(t *testing.T) {
	s, mock := newMockStore(t)
	rec := newRecord("p-1", time.Now())
	rec.Evidence = []models.Evidence{{Kind: models.EvidenceQuantity, Detail: "too low"}}
	evidence, _ := json.Marshal(rec.Evidence)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_records")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "p-1", "1.0.0", "APPROVED", evidence, rec.ProcessedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Create(context.Background(), rec))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_records")).
		WillReturnError(&pq.Error{Code: "23505"})
	assert.ErrorIs(t, s.Create(context.Background(), rec), sentinel.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByID(t *testing.T) {
	s, mock := newMockStore(t)
	id := domain.NewAuditID()
	mvID := domain.NewMovementID()
	processed := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	revised := processed.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_records WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow(
			id.String(), mvID.String(), "p-1", "1.0.0", "REJECTED",
			[]byte(`[{"kind":"QUANTITY_VALIDATION","detail":"x"}]`),
			processed, "auditor-1", "checked", revised,
		))

	rec, err := s.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, mvID, rec.MovementID)
	assert.Equal(t, models.VerdictRejected, rec.Verdict)
	require.Len(t, rec.Evidence, 1)
	assert.Equal(t, models.EvidenceQuantity, rec.Evidence[0].Kind)
	require.NotNil(t, rec.AuditorID)
	assert.Equal(t, domain.AuditorID("auditor-1"), *rec.AuditorID)
	require.NotNil(t, rec.RevisedAt)
	assert.True(t, rec.Revised())

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_records WHERE id = $1")).
		WillReturnError(sql.ErrNoRows)
	_, err = s.FindByID(context.Background(), domain.NewAuditID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStore_ListByProducer(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(recordCols).
		AddRow(domain.NewAuditID().String(), domain.NewMovementID().String(), "p-1", "1.0.0", "APPROVED", []byte(`[]`), now, nil, nil, nil).
		AddRow(domain.NewAuditID().String(), domain.NewMovementID().String(), "p-1", "1.0.0", "REJECTED", []byte(`[]`), now.Add(-time.Hour), nil, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY processed_at DESC")).
		WithArgs("p-1").
		WillReturnRows(rows)

	list, err := s.ListByProducer(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].Revised())
	assert.Nil(t, list[1].Observation)
}

func TestPostgresStore_SaveRevisionIsConditional(t *testing.T) {
	s, mock := newMockStore(t)
	rec := newRecord("p-1", time.Now())
	require.NoError(t, rec.ApplyRevision(models.Revision{AuditorID: "a-1", Verdict: models.VerdictApproved}, time.Now()))

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND revised_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SaveRevision(context.Background(), rec))

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND revised_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.SaveRevision(context.Background(), rec), sentinel.ErrInvalidState)
}

func TestPostgresStore_JoinsContextTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgres(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	err = tx.RunInTx(context.Background(), db, func(ctx context.Context) error {
		ok, err := s.ExistsByMovement(ctx, domain.NewMovementID())
		if err != nil {
			return err
		}
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
