package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/studyspace/internal/persistence"
	"github.com/example/studyspace/internal/persistence/sqlite/migration"
)

// timeLayout stores instants as fixed-width UTC text so they compare correctly as strings.
const timeLayout = "2006-01-02T15:04:05Z"

// ConnectionPool owns the *sql.DB shared by the repositories.
type ConnectionPool struct {
	db *sql.DB
}

func NewConnectionPool(config migration.SQLiteConfig) (*ConnectionPool, error) {
	db, err := migration.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &ConnectionPool{db: db}, nil
}

// NewConnectionPoolFromDB wraps a handle opened elsewhere, such as a sqlmock.
func NewConnectionPoolFromDB(db *sql.DB) *ConnectionPool {
	return &ConnectionPool{db: db}
}

func (cp *ConnectionPool) DB() *sql.DB { return cp.db }

func (cp *ConnectionPool) Close() error {
	if cp.db == nil {
		return nil
	}
	return cp.db.Close()
}

func (cp *ConnectionPool) Ping(ctx context.Context) error {
	return cp.db.PingContext(ctx)
}

type TransactionFunc func(tx *sql.Tx) error

// WithTransaction runs fn in one transaction: commit on nil, rollback on error
// or panic. With immediate transactions enabled the write lock is held from
// BeginTx, so checks made inside fn stay valid until commit.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := cp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// QueryHelper runs statements against the pool or an open transaction.
type QueryHelper struct {
	pool *ConnectionPool
}

func NewQueryHelper(pool *ConnectionPool) *QueryHelper {
	return &QueryHelper{pool: pool}
}

func (qh *QueryHelper) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return qh.pool.db.QueryRowContext(ctx, query, args...)
}

func (qh *QueryHelper) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return qh.pool.db.QueryContext(ctx, query, args...)
}

func (qh *QueryHelper) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return qh.pool.db.ExecContext(ctx, query, args...)
}

func (qh *QueryHelper) QueryRowTx(ctx context.Context, tx *sql.Tx, query string, args ...any) *sql.Row {
	return tx.QueryRowContext(ctx, query, args...)
}

func (qh *QueryHelper) QueryTx(ctx context.Context, tx *sql.Tx, query string, args ...any) (*sql.Rows, error) {
	return tx.QueryContext(ctx, query, args...)
}

func (qh *QueryHelper) ExecTx(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	return tx.ExecContext(ctx, query, args...)
}

// persistenceErrors pass through MapError untouched.
var persistenceErrors = []error{
	persistence.ErrNotFound,
	persistence.ErrDuplicate,
	persistence.ErrConstraintViolation,
	persistence.ErrForeignKeyViolation,
	persistence.ErrCapacityExceeded,
	persistence.ErrUserOverlap,
	persistence.ErrOpenSession,
	persistence.ErrSessionClosed,
	persistence.ErrConflict,
}

// driverErrors maps substrings of modernc driver messages to sentinels.
// Busy and locked databases are transient and surface as ErrConflict.
var driverErrors = []struct {
	sentinel error
	patterns []string
}{
	{persistence.ErrConflict, []string{"database is locked", "SQLITE_BUSY", "database table is locked"}},
	{persistence.ErrDuplicate, []string{"UNIQUE constraint failed"}},
	{persistence.ErrForeignKeyViolation, []string{"FOREIGN KEY constraint failed"}},
	{persistence.ErrConstraintViolation, []string{"CHECK constraint failed", "NOT NULL constraint failed"}},
}

type ErrorMapper struct{}

func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError translates driver errors into persistence sentinels, wrapping the
// original so its text survives in logs.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	for _, known := range persistenceErrors {
		if errors.Is(err, known) {
			return err
		}
	}

	msg := err.Error()
	for _, entry := range driverErrors {
		for _, pattern := range entry.patterns {
			if strings.Contains(msg, pattern) {
				return fmt.Errorf("%w: %v", entry.sentinel, err)
			}
		}
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(column, value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", column, err)
	}
	return t, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
