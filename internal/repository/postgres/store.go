package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/application"
	"campusdrive/internal/domain/drive"
	"campusdrive/internal/domain/store"
	"campusdrive/internal/domain/student"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repositories binds every repository to one querier. lock makes reads of lifecycle rows take
// FOR UPDATE, which is only meaningful inside a transaction.
type repositories struct {
	q    querier
	lock bool
}

func (r repositories) Drives() drive.Repository {
	return &DriveRepository{q: r.q, lock: r.lock}
}

func (r repositories) Stages() drive.StageRepository {
	return &StageRepository{q: r.q, lock: r.lock}
}

func (r repositories) Colleges() drive.CollegeRepository {
	return &CollegeRepository{q: r.q, lock: r.lock}
}

func (r repositories) Applications() application.Repository {
	return &ApplicationRepository{q: r.q, lock: r.lock}
}

func (r repositories) Students() student.Repository {
	return &StudentRepository{q: r.q}
}

type Store struct {
	repositories
	db      *sql.DB
	retries int
	logger  logrus.FieldLogger
}

func NewStore(db *sql.DB, retries int, logger logrus.FieldLogger) *Store {
	return &Store{repositories: repositories{q: db}, db: db, retries: retries, logger: logger}
}

var _ store.Store = (*Store)(nil)

// WithinTx runs fn in a READ COMMITTED transaction whose reads lock rows. Serialization failures
// and deadlocks rerun fn from scratch up to the configured number of retries.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Repositories) error) error {
	for attempt := 0; ; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil || !retryable(err) || attempt >= s.retries {
			return err
		}
		s.logger.WithError(err).WithField("attempt", attempt+1).Warn("retrying transaction")
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Store) runTx(ctx context.Context, fn func(tx store.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return common.NewError(common.CodeInternal, "failed to begin transaction", err)
	}
	if err := fn(repositories{q: tx, lock: true}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return common.NewError(common.CodeInternal, "failed to commit transaction", err)
	}
	return nil
}

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func retryable(err error) bool {
	switch sqlState(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	default:
		return false
	}
}

func forUpdate(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

func nullUUID(id common.UUID) any {
	if id.IsZero() {
		return nil
	}
	return id.String()
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}
