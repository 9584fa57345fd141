package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/studyspace/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite usage session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const sessionColumns = `id, user_id, resource_id, entered_at, exited_at, score, note`

// CreateSession stores a new session. The partial unique index on open
// sessions rejects a second open session for the same user.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.UsageSession) error {
	if session.ID == "" || session.UserID == "" || session.ResourceID == "" {
		return persistence.ErrConstraintViolation
	}

	var exitedAt sql.NullString
	if session.ExitedAt != nil {
		exitedAt = sql.NullString{String: formatTime(*session.ExitedAt), Valid: true}
	}
	var score sql.NullInt64
	if session.Score != nil {
		score = sql.NullInt64{Int64: int64(*session.Score), Valid: true}
	}

	query := `
		INSERT INTO usage_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.ResourceID,
		formatTime(session.EnteredAt),
		exitedAt,
		score,
		nullString(session.Note),
	)
	return r.mapSessionError(err)
}

// GetSession retrieves a session by ID
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.UsageSession, error) {
	if id == "" {
		return persistence.UsageSession{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+sessionColumns+` FROM usage_sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err != nil {
		return persistence.UsageSession{}, r.mapper.MapError(err)
	}
	return session, nil
}

// GetOpenSession returns the user's open session
func (r *SessionRepository) GetOpenSession(ctx context.Context, userID string) (persistence.UsageSession, error) {
	row := r.helper.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM usage_sessions WHERE user_id = ? AND exited_at IS NULL`, userID)
	session, err := scanSession(row)
	if err != nil {
		return persistence.UsageSession{}, r.mapper.MapError(err)
	}
	return session, nil
}

// CloseSession stamps the exit of an open session. Only a row that is still
// open is updated, so concurrent stops cannot both succeed.
func (r *SessionRepository) CloseSession(ctx context.Context, session persistence.UsageSession) error {
	if session.ExitedAt == nil {
		return persistence.ErrConstraintViolation
	}

	var score sql.NullInt64
	if session.Score != nil {
		score = sql.NullInt64{Int64: int64(*session.Score), Valid: true}
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(ctx, tx, `
			UPDATE usage_sessions
			SET exited_at = ?, score = ?, note = ?
			WHERE id = ? AND exited_at IS NULL
		`,
			formatTime(*session.ExitedAt),
			score,
			nullString(session.Note),
			session.ID,
		)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 1 {
			return nil
		}

		var exists int
		err = r.helper.QueryRowTx(ctx, tx, "SELECT 1 FROM usage_sessions WHERE id = ?", session.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrNotFound
		}
		if err != nil {
			return err
		}
		return persistence.ErrSessionClosed
	})
	return r.mapper.MapError(err)
}

// ListSessions returns matching sessions, most recent entry first
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.UsageSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM usage_sessions`
	var conditions []string
	var args []any

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.OpenOnly {
		conditions = append(conditions, "exited_at IS NULL")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY entered_at DESC, id DESC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var sessions []persistence.UsageSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (persistence.UsageSession, error) {
	var session persistence.UsageSession
	var enteredAtStr string
	var exitedAt, note sql.NullString
	var score sql.NullInt64

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.ResourceID,
		&enteredAtStr,
		&exitedAt,
		&score,
		&note,
	)
	if err != nil {
		return persistence.UsageSession{}, err
	}

	if session.EnteredAt, err = parseTime("entered_at", enteredAtStr); err != nil {
		return persistence.UsageSession{}, err
	}
	if exitedAt.Valid {
		exited, err := parseTime("exited_at", exitedAt.String)
		if err != nil {
			return persistence.UsageSession{}, err
		}
		session.ExitedAt = &exited
	}
	if score.Valid {
		value := int(score.Int64)
		session.Score = &value
	}
	session.Note = stringPtr(note)
	return session, nil
}

// mapSessionError maps the open-session unique index to ErrOpenSession
func (r *SessionRepository) mapSessionError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed: usage_sessions.user_id") {
		return fmt.Errorf("%w: %v", persistence.ErrOpenSession, err)
	}
	return r.mapper.MapError(err)
}
