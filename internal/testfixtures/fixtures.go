package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/studyspace/internal/application"
	"github.com/example/studyspace/internal/persistence"
	"github.com/example/studyspace/internal/scheduler"
)

var (
	resourceCounter    uint64
	reservationCounter uint64
	sessionCounter     uint64
)

// referenceTime is a Monday morning before the default day window opens.
var referenceTime = time.Date(2026, time.March, 2, 7, 30, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns hour:minute on the reference day.
func At(hour, minute int) time.Time {
	y, m, d := referenceTime.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC)
}

// --------------------------- Resource fixtures ---------------------------

// ResourceFixture represents a deterministic study space.
type ResourceFixture struct {
	ID          string
	Name        string
	Location    string
	Capacity    int
	Type        string
	PowerOutlet bool
	QuietZone   bool
	Active      bool
}

// ResourceOption configures the generated resource fixture.
type ResourceOption func(*ResourceFixture)

// NewResourceFixture returns an active single-seat resource with optional overrides.
func NewResourceFixture(opts ...ResourceOption) ResourceFixture {
	idx := atomic.AddUint64(&resourceCounter, 1)
	fixture := ResourceFixture{
		ID:       fmt.Sprintf("resource-%03d", idx),
		Name:     fmt.Sprintf("Room %03d", idx),
		Location: "Library",
		Capacity: 1,
		Type:     "desk",
		Active:   true,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithResourceID overrides the resource ID.
func WithResourceID(id string) ResourceOption {
	return func(f *ResourceFixture) {
		f.ID = id
	}
}

// WithResourceName overrides the display name.
func WithResourceName(name string) ResourceOption {
	return func(f *ResourceFixture) {
		f.Name = name
	}
}

// WithResourceCapacity overrides the number of seats.
func WithResourceCapacity(capacity int) ResourceOption {
	return func(f *ResourceFixture) {
		f.Capacity = capacity
	}
}

// WithResourceType overrides the resource type.
func WithResourceType(kind string) ResourceOption {
	return func(f *ResourceFixture) {
		f.Type = kind
	}
}

// WithResourceAmenities sets the amenity flags.
func WithResourceAmenities(powerOutlet, quietZone bool) ResourceOption {
	return func(f *ResourceFixture) {
		f.PowerOutlet = powerOutlet
		f.QuietZone = quietZone
	}
}

// WithResourceInactive marks the resource as withdrawn from booking.
func WithResourceInactive() ResourceOption {
	return func(f *ResourceFixture) {
		f.Active = false
	}
}

// Application converts the fixture into the application model.
func (f ResourceFixture) Application() application.Resource {
	return application.Resource{
		ID:          f.ID,
		Name:        f.Name,
		Location:    f.Location,
		Capacity:    f.Capacity,
		Type:        f.Type,
		PowerOutlet: f.PowerOutlet,
		QuietZone:   f.QuietZone,
		Active:      f.Active,
	}
}

// Persistence converts the fixture into the persistence record.
func (f ResourceFixture) Persistence() persistence.Resource {
	return persistence.Resource{
		ID:          f.ID,
		Name:        f.Name,
		Location:    f.Location,
		Capacity:    f.Capacity,
		Type:        f.Type,
		PowerOutlet: f.PowerOutlet,
		QuietZone:   f.QuietZone,
		Active:      f.Active,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
}

// -------------------------- Reservation fixtures -------------------------

// ReservationFixture represents a deterministic reservation.
type ReservationFixture struct {
	ID         string
	UserID     string
	ResourceID string
	Start      time.Time
	End        time.Time
	Status     application.ReservationStatus
	Note       *string
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns an active one-hour reservation at 09:00 on the
// reference day with optional overrides.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	fixture := ReservationFixture{
		ID:         fmt.Sprintf("reservation-%03d", idx),
		UserID:     "user-001",
		ResourceID: "resource-001",
		Start:      At(9, 0),
		End:        At(10, 0),
		Status:     application.ReservationActive,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationUser overrides the owner.
func WithReservationUser(userID string) ReservationOption {
	return func(f *ReservationFixture) {
		f.UserID = userID
	}
}

// WithReservationResource overrides the reserved resource.
func WithReservationResource(resourceID string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ResourceID = resourceID
	}
}

// WithReservationWindow overrides the interval.
func WithReservationWindow(start, end time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.Start = start
		f.End = end
	}
}

// WithReservationStatus overrides the lifecycle state.
func WithReservationStatus(status application.ReservationStatus) ReservationOption {
	return func(f *ReservationFixture) {
		f.Status = status
	}
}

// WithReservationNote attaches a note.
func WithReservationNote(note string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Note = &note
	}
}

// Application converts the fixture into the application model.
func (f ReservationFixture) Application() application.Reservation {
	return application.Reservation{
		ID:         f.ID,
		UserID:     f.UserID,
		ResourceID: f.ResourceID,
		Start:      f.Start,
		End:        f.End,
		Status:     f.Status,
		Note:       copyStringPtr(f.Note),
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
}

// Persistence converts the fixture into the persistence record.
func (f ReservationFixture) Persistence() persistence.Reservation {
	return persistence.Reservation{
		ID:         f.ID,
		UserID:     f.UserID,
		ResourceID: f.ResourceID,
		Start:      f.Start,
		End:        f.End,
		Status:     string(f.Status),
		Note:       copyStringPtr(f.Note),
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
}

// CreateParams converts the fixture into CreateReservation input.
func (f ReservationFixture) CreateParams() application.CreateReservationParams {
	return application.CreateReservationParams{
		UserID:     f.UserID,
		ResourceID: f.ResourceID,
		Start:      f.Start,
		End:        f.End,
		Note:       copyStringPtr(f.Note),
	}
}

// Interval converts the fixture into the scheduling core's view.
func (f ReservationFixture) Interval() scheduler.Interval {
	return scheduler.Interval{
		ID:         f.ID,
		UserID:     f.UserID,
		ResourceID: f.ResourceID,
		Start:      f.Start,
		End:        f.End,
		Status:     scheduler.Status(f.Status),
	}
}

// ---------------------------- Session fixtures ---------------------------

// SessionFixture represents a deterministic usage session.
type SessionFixture struct {
	ID         string
	UserID     string
	ResourceID string
	EnteredAt  time.Time
	ExitedAt   *time.Time
	Score      *int
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns an open session entered at the reference time.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:         fmt.Sprintf("session-%03d", idx),
		UserID:     "user-001",
		ResourceID: "resource-001",
		EnteredAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionUser overrides the owner.
func WithSessionUser(userID string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = userID
	}
}

// WithSessionResource overrides the resource.
func WithSessionResource(resourceID string) SessionOption {
	return func(f *SessionFixture) {
		f.ResourceID = resourceID
	}
}

// WithSessionClosed stamps an exit time and score.
func WithSessionClosed(exitedAt time.Time, score int) SessionOption {
	return func(f *SessionFixture) {
		f.ExitedAt = &exitedAt
		f.Score = &score
	}
}

// Application converts the fixture into the application model.
func (f SessionFixture) Application() application.UsageSession {
	return application.UsageSession{
		ID:         f.ID,
		UserID:     f.UserID,
		ResourceID: f.ResourceID,
		EnteredAt:  f.EnteredAt,
		ExitedAt:   copyTimePtr(f.ExitedAt),
		Score:      copyIntPtr(f.Score),
	}
}

// Persistence converts the fixture into the persistence record.
func (f SessionFixture) Persistence() persistence.UsageSession {
	return persistence.UsageSession{
		ID:         f.ID,
		UserID:     f.UserID,
		ResourceID: f.ResourceID,
		EnteredAt:  f.EnteredAt,
		ExitedAt:   copyTimePtr(f.ExitedAt),
		Score:      copyIntPtr(f.Score),
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func copyIntPtr(src *int) *int {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}
