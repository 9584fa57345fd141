package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/studyspace/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository using SQLite
type ReservationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewReservationRepository creates a new SQLite reservation repository
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const reservationColumns = `id, user_id, resource_id, start_time, end_time, status, note, created_at, updated_at`

// CreateReservation inserts a reservation after re-checking the admission
// gate against the stored rows in the same transaction.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation, capacity int) error {
	if err := validateReservation(reservation); err != nil {
		return err
	}

	now := time.Now().UTC()
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = now
	}
	if reservation.UpdatedAt.IsZero() {
		reservation.UpdatedAt = reservation.CreatedAt
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if reservation.Status == persistence.ReservationActive {
			if err := r.admitTx(ctx, tx, reservation, capacity); err != nil {
				return err
			}
		}

		query := `
			INSERT INTO reservations (` + reservationColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := r.helper.ExecTx(ctx, tx, query,
			reservation.ID,
			reservation.UserID,
			reservation.ResourceID,
			formatTime(reservation.Start),
			formatTime(reservation.End),
			reservation.Status,
			nullString(reservation.Note),
			formatTime(reservation.CreatedAt),
			formatTime(reservation.UpdatedAt),
		)
		return err
	})
	return r.mapper.MapError(err)
}

// UpdateReservation moves a reservation to a new interval after re-checking
// the admission gate with the original excluded. The owner and resource of a
// reservation never change.
func (r *ReservationRepository) UpdateReservation(ctx context.Context, reservation persistence.Reservation, capacity int) error {
	if err := validateReservation(reservation); err != nil {
		return err
	}
	if reservation.UpdatedAt.IsZero() {
		reservation.UpdatedAt = time.Now().UTC()
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var userID, resourceID string
		err := r.helper.QueryRowTx(ctx, tx,
			"SELECT user_id, resource_id FROM reservations WHERE id = ?", reservation.ID,
		).Scan(&userID, &resourceID)
		if err != nil {
			return err
		}
		reservation.UserID = userID
		reservation.ResourceID = resourceID

		if reservation.Status == persistence.ReservationActive {
			if err := r.admitTx(ctx, tx, reservation, capacity); err != nil {
				return err
			}
		}

		query := `
			UPDATE reservations
			SET start_time = ?, end_time = ?, status = ?, note = ?, updated_at = ?
			WHERE id = ?
		`
		_, err = r.helper.ExecTx(ctx, tx, query,
			formatTime(reservation.Start),
			formatTime(reservation.End),
			reservation.Status,
			nullString(reservation.Note),
			formatTime(reservation.UpdatedAt),
			reservation.ID,
		)
		return err
	})
	return r.mapper.MapError(err)
}

// GetReservation retrieves a reservation by ID
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	reservation, err := scanReservation(row)
	if err != nil {
		return persistence.Reservation{}, r.mapper.MapError(err)
	}
	return reservation, nil
}

// SetReservationStatus changes the lifecycle status of a reservation
func (r *ReservationRepository) SetReservationStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	result, err := r.helper.Exec(ctx,
		"UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?",
		status, formatTime(updatedAt), id,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListReservations lists reservations matching the filter ordered by start then ID
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	query, args := buildReservationQuery(filter)

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	reservations, err := scanReservations(rows)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	return reservations, nil
}

// admitTx loads the active rows that can conflict with the reservation and
// runs the admission gate over them.
func (r *ReservationRepository) admitTx(ctx context.Context, tx *sql.Tx, reservation persistence.Reservation, capacity int) error {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = ? AND start_time < ? AND end_time > ? AND (user_id = ? OR resource_id = ?)
		ORDER BY start_time ASC, id ASC
	`
	rows, err := r.helper.QueryTx(ctx, tx, query,
		persistence.ReservationActive,
		formatTime(reservation.End),
		formatTime(reservation.Start),
		reservation.UserID,
		reservation.ResourceID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	candidates, err := scanReservations(rows)
	if err != nil {
		return err
	}

	var userRows, resourceRows []persistence.Reservation
	for _, existing := range candidates {
		if existing.UserID == reservation.UserID {
			userRows = append(userRows, existing)
		}
		if existing.ResourceID == reservation.ResourceID {
			resourceRows = append(resourceRows, existing)
		}
	}
	return persistence.CheckAdmission(reservation, userRows, resourceRows, capacity)
}

// buildReservationQuery builds the SQL query for listing reservations with filters
func buildReservationQuery(filter persistence.ReservationFilter) (string, []any) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	var conditions []string
	var args []any

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ResourceID != "" {
		conditions = append(conditions, "resource_id = ?")
		args = append(args, filter.ResourceID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.EndsAfter != nil {
		conditions = append(conditions, "end_time > ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}
	if filter.StartsBefore != nil {
		conditions = append(conditions, "start_time < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC, id ASC"

	return query, args
}

func scanReservations(rows *sql.Rows) ([]persistence.Reservation, error) {
	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reservations, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var reservation persistence.Reservation
	var startStr, endStr, createdAtStr, updatedAtStr string
	var note sql.NullString

	err := row.Scan(
		&reservation.ID,
		&reservation.UserID,
		&reservation.ResourceID,
		&startStr,
		&endStr,
		&reservation.Status,
		&note,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}

	reservation.Note = stringPtr(note)
	if reservation.Start, err = parseTime("start_time", startStr); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.End, err = parseTime("end_time", endStr); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.Reservation{}, err
	}
	return reservation, nil
}

// validateReservation checks the fields the schema would otherwise reject
func validateReservation(reservation persistence.Reservation) error {
	if reservation.ID == "" || reservation.UserID == "" || reservation.ResourceID == "" {
		return persistence.ErrConstraintViolation
	}
	if !reservation.Start.Before(reservation.End) {
		return persistence.ErrConstraintViolation
	}
	switch reservation.Status {
	case persistence.ReservationActive, persistence.ReservationCancelled, persistence.ReservationCompleted:
		return nil
	}
	return persistence.ErrConstraintViolation
}
