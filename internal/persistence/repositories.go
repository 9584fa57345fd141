package persistence

import (
	"context"
	"time"
)

// ResourceFilter narrows resource queries.
type ResourceFilter struct {
	ActiveOnly bool
	IDs        []string
}

// ResourceRepository stores the resource catalog.
type ResourceRepository interface {
	UpsertResource(ctx context.Context, resource Resource) error
	GetResource(ctx context.Context, id string) (Resource, error)
	ListResources(ctx context.Context, filter ResourceFilter) ([]Resource, error)
}

// ReservationFilter narrows reservation queries. Zero values match everything.
// EndsAfter and StartsBefore select reservations intersecting that range.
type ReservationFilter struct {
	UserID       string
	ResourceID   string
	Statuses     []string
	EndsAfter    *time.Time
	StartsBefore *time.Time
}

// ReservationRepository stores reservations. CreateReservation and
// UpdateReservation are conditional writes: inside a single transaction they
// re-check the user overlap and the resource capacity against the stored
// active reservations and fail with ErrUserOverlap or ErrCapacityExceeded
// instead of writing.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation, capacity int) error
	UpdateReservation(ctx context.Context, reservation Reservation, capacity int) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	SetReservationStatus(ctx context.Context, id, status string, updatedAt time.Time) error
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
}

// SessionFilter narrows usage session queries.
type SessionFilter struct {
	UserID   string
	OpenOnly bool
}

// SessionRepository stores usage sessions. At most one session per user may
// be open; CreateSession fails with ErrOpenSession otherwise.
type SessionRepository interface {
	CreateSession(ctx context.Context, session UsageSession) error
	GetSession(ctx context.Context, id string) (UsageSession, error)
	GetOpenSession(ctx context.Context, userID string) (UsageSession, error)
	CloseSession(ctx context.Context, session UsageSession) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]UsageSession, error)
}
