package persistence

import "time"

// Reservation statuses as stored.
const (
	ReservationActive    = "active"
	ReservationCancelled = "cancelled"
	ReservationCompleted = "completed"
)

// Resource represents a bookable study space.
type Resource struct {
	ID          string
	Name        string
	Location    string
	Capacity    int
	Type        string
	PowerOutlet bool
	QuietZone   bool
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reservation represents a booking of a resource for the half-open range [Start, End).
type Reservation struct {
	ID         string
	UserID     string
	ResourceID string
	Start      time.Time
	End        time.Time
	Status     string
	Note       *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UsageSession represents a member's physical presence at a resource.
type UsageSession struct {
	ID         string
	UserID     string
	ResourceID string
	EnteredAt  time.Time
	ExitedAt   *time.Time
	Score      *int
	Note       *string
}

// Open reports whether the session has not been stopped.
func (s UsageSession) Open() bool {
	return s.ExitedAt == nil
}
