package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/drive"
	"campusdrive/internal/domain/store"
)

func newMockStore(t *testing.T, retries int) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	logger, _ := test.NewNullLogger()
	return NewStore(db, retries, logger), mock
}

var driveColumns = []string{"id", "owner_org_id", "title", "status", "current_stage", "is_locked", "locked_at", "created_at", "updated_at"}

func TestWithinTxLocksAndCommits(t *testing.T) {
	st, mock := newMockStore(t, 0)
	driveID := common.NewUUID()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM drives WHERE id = \$1 FOR UPDATE`).
		WithArgs(driveID.String()).
		WillReturnRows(sqlmock.NewRows(driveColumns).AddRow(driveID.String(), common.NewUUID().String(), "Drive", "ACTIVE", "TEST", false, nil, now, now))
	mock.ExpectExec(`UPDATE drives SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.WithinTx(context.Background(), func(tx store.Repositories) error {
		d, err := tx.Drives().GetByID(context.Background(), driveID)
		if err != nil {
			return err
		}
		assert.Equal(t, drive.StageTest, d.CurrentStage)
		assert.Nil(t, d.LockedAt)
		d.Lock(now)
		return tx.Drives().Update(context.Background(), *d)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	st, mock := newMockStore(t, 3)
	boom := common.NewError(common.CodeInvalidState, "drive is locked", nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := st.WithinTx(context.Background(), func(tx store.Repositories) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRetriesSerializationFailure(t *testing.T) {
	st, mock := newMockStore(t, 2)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE drives SET`).WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE drives SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	attempts := 0
	err := st.WithinTx(context.Background(), func(tx store.Repositories) error {
		attempts++
		return tx.Drives().Update(context.Background(), drive.Drive{ID: common.NewUUID()})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxGivesUpAfterRetries(t *testing.T) {
	st, mock := newMockStore(t, 0)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE drives SET`).WillReturnError(&pgconn.PgError{Code: "40P01"})
	mock.ExpectRollback()

	err := st.WithinTx(context.Background(), func(tx store.Repositories) error {
		return tx.Drives().Update(context.Background(), drive.Drive{ID: common.NewUUID()})
	})
	require.Error(t, err)
	assert.True(t, common.Is(err, common.CodeInternal))
	assert.True(t, retryable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, retryable(&pq.Error{Code: "40001"}))
	assert.True(t, retryable(common.NewError(common.CodeInternal, "wrapped", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, retryable(&pq.Error{Code: "23505"}))
	assert.False(t, retryable(errors.New("plain")))
}

func TestSnapshotReadMapsNotFound(t *testing.T) {
	st, mock := newMockStore(t, 0)
	mock.ExpectQuery(`FROM drives WHERE id = \$1`).WillReturnRows(sqlmock.NewRows(driveColumns))

	_, err := st.Drives().GetByID(context.Background(), common.NewUUID())
	require.Error(t, err)
	assert.True(t, common.Is(err, common.CodeNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}
