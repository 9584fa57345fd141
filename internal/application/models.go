package application

import "time"

// Resource is a bookable study space.
type Resource struct {
	ID          string
	Name        string
	Location    string
	Capacity    int
	Type        string
	PowerOutlet bool
	QuietZone   bool
	Active      bool
}

// ReservationStatus captures the lifecycle state of a reservation.
type ReservationStatus string

const (
	// ReservationActive counts against capacity.
	ReservationActive ReservationStatus = "active"
	// ReservationCancelled was withdrawn by its owner.
	ReservationCancelled ReservationStatus = "cancelled"
	// ReservationCompleted has elapsed.
	ReservationCompleted ReservationStatus = "completed"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationActive, ReservationCancelled, ReservationCompleted:
		return true
	}
	return false
}

// Reservation holds a user's claim on one seat of a resource for [Start, End).
type Reservation struct {
	ID         string
	UserID     string
	ResourceID string
	Start      time.Time
	End        time.Time
	Status     ReservationStatus
	Note       *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateReservationParams captures the input for CreateReservation.
type CreateReservationParams struct {
	UserID     string
	ResourceID string
	Start      time.Time
	End        time.Time
	Note       *string
}

// UpdateReservationParams captures the input for UpdateReservation. A nil Note
// keeps the existing note.
type UpdateReservationParams struct {
	ReservationID string
	UserID        string
	Start         time.Time
	End           time.Time
	Note          *string
}

// ReservationRepositoryFilter narrows reservation listings.
type ReservationRepositoryFilter struct {
	UserID     string
	ResourceID string
	Statuses   []ReservationStatus
	EndsAfter  *time.Time
}

// FreeSlot is an interval on a resource with at least one seat left.
type FreeSlot struct {
	ResourceID        string
	Start             time.Time
	End               time.Time
	RemainingCapacity int
}

// Occupancy maps resource ID to hour of day to the number of reservations
// overlapping that hour.
type Occupancy map[string]map[int]int

// UsageSession records a user's physical presence at a resource.
type UsageSession struct {
	ID         string
	UserID     string
	ResourceID string
	EnteredAt  time.Time
	ExitedAt   *time.Time
	Score      *int
	Note       *string
}

// Open reports whether the session has not been stopped yet.
func (s UsageSession) Open() bool {
	return s.ExitedAt == nil
}

// StopSessionParams captures the input for StopSession.
type StopSessionParams struct {
	SessionID string
	UserID    string
	Score     int
	Note      *string
}

// SessionRepositoryFilter narrows session listings.
type SessionRepositoryFilter struct {
	UserID   string
	OpenOnly bool
}

// UserSummary aggregates a user's reservation and session history.
type UserSummary struct {
	UserID             string
	TotalReservations  int
	ActiveReservations int
	TotalSessions      int
	TotalHours         float64
	AverageScore       float64
}
