// Package memory provides an in-process persistence layer with the same
// conditional-write semantics as the SQLite store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/studyspace/internal/persistence"
)

// Storage keeps all records in maps guarded by a single mutex.
type Storage struct {
	mu           sync.RWMutex
	resources    map[string]persistence.Resource
	reservations map[string]persistence.Reservation
	sessions     map[string]persistence.UsageSession
}

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{
		resources:    make(map[string]persistence.Resource),
		reservations: make(map[string]persistence.Reservation),
		sessions:     make(map[string]persistence.UsageSession),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- ResourceRepository implementation ---

// UpsertResource creates or replaces a resource.
func (s *Storage) UpsertResource(ctx context.Context, resource persistence.Resource) error {
	if resource.ID == "" || resource.Capacity < 1 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.resources[resource.ID]; ok && !existing.CreatedAt.IsZero() {
		resource.CreatedAt = existing.CreatedAt
	}
	s.resources[resource.ID] = resource
	return nil
}

// GetResource retrieves a resource by ID.
func (s *Storage) GetResource(ctx context.Context, id string) (persistence.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resource, ok := s.resources[id]
	if !ok {
		return persistence.Resource{}, persistence.ErrNotFound
	}
	return resource, nil
}

// ListResources returns resources ordered by name, then ID.
func (s *Storage) ListResources(ctx context.Context, filter persistence.ResourceFilter) ([]persistence.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var wanted map[string]struct{}
	if len(filter.IDs) > 0 {
		wanted = make(map[string]struct{}, len(filter.IDs))
		for _, id := range filter.IDs {
			wanted[id] = struct{}{}
		}
	}

	resources := make([]persistence.Resource, 0, len(s.resources))
	for _, resource := range s.resources {
		if filter.ActiveOnly && !resource.Active {
			continue
		}
		if wanted != nil {
			if _, ok := wanted[resource.ID]; !ok {
				continue
			}
		}
		resources = append(resources, resource)
	}

	sort.Slice(resources, func(i, j int) bool {
		if resources[i].Name == resources[j].Name {
			return resources[i].ID < resources[j].ID
		}
		return resources[i].Name < resources[j].Name
	})
	return resources, nil
}

// --- ReservationRepository implementation ---

// CreateReservation stores a reservation if it still passes the admission gate.
func (s *Storage) CreateReservation(ctx context.Context, reservation persistence.Reservation, capacity int) error {
	if err := validateReservation(reservation); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[reservation.ID]; ok {
		return fmt.Errorf("%w: reservation %s", persistence.ErrDuplicate, reservation.ID)
	}
	if _, ok := s.resources[reservation.ResourceID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if reservation.Status == persistence.ReservationActive {
		if err := s.admitLocked(reservation, capacity); err != nil {
			return err
		}
	}

	s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

// UpdateReservation moves an active reservation if the new interval passes the
// admission gate with the original excluded.
func (s *Storage) UpdateReservation(ctx context.Context, reservation persistence.Reservation, capacity int) error {
	if err := validateReservation(reservation); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.reservations[reservation.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	reservation.UserID = existing.UserID
	reservation.ResourceID = existing.ResourceID
	reservation.CreatedAt = existing.CreatedAt
	if reservation.Status == persistence.ReservationActive {
		if err := s.admitLocked(reservation, capacity); err != nil {
			return err
		}
	}

	s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

// GetReservation retrieves a reservation by ID.
func (s *Storage) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return cloneReservation(reservation), nil
}

// SetReservationStatus changes the lifecycle status of a reservation.
func (s *Storage) SetReservationStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	if !validStatus(status) {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.ErrNotFound
	}
	reservation.Status = status
	reservation.UpdatedAt = updatedAt
	s.reservations[id] = reservation
	return nil
}

// ListReservations returns matching reservations ordered by start, then ID.
func (s *Storage) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listReservationsLocked(filter), nil
}

func (s *Storage) listReservationsLocked(filter persistence.ReservationFilter) []persistence.Reservation {
	var out []persistence.Reservation
	for _, reservation := range s.reservations {
		if persistence.MatchReservation(reservation, filter) {
			out = append(out, cloneReservation(reservation))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func (s *Storage) admitLocked(reservation persistence.Reservation, capacity int) error {
	start, end := reservation.Start, reservation.End
	active := []string{persistence.ReservationActive}

	userRows := s.listReservationsLocked(persistence.ReservationFilter{
		UserID: reservation.UserID, Statuses: active, EndsAfter: &start, StartsBefore: &end,
	})
	resourceRows := s.listReservationsLocked(persistence.ReservationFilter{
		ResourceID: reservation.ResourceID, Statuses: active, EndsAfter: &start, StartsBefore: &end,
	})
	return persistence.CheckAdmission(reservation, userRows, resourceRows, capacity)
}

// --- SessionRepository implementation ---

// CreateSession stores a new open session unless the user already has one.
func (s *Storage) CreateSession(ctx context.Context, session persistence.UsageSession) error {
	if session.ID == "" || session.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return persistence.ErrDuplicate
	}
	if _, ok := s.resources[session.ResourceID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if session.Open() {
		for _, existing := range s.sessions {
			if existing.UserID == session.UserID && existing.Open() {
				return persistence.ErrOpenSession
			}
		}
	}

	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// GetSession retrieves a session by ID.
func (s *Storage) GetSession(ctx context.Context, id string) (persistence.UsageSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return persistence.UsageSession{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// GetOpenSession returns the user's open session.
func (s *Storage) GetOpenSession(ctx context.Context, userID string) (persistence.UsageSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.UserID == userID && session.Open() {
			return cloneSession(session), nil
		}
	}
	return persistence.UsageSession{}, persistence.ErrNotFound
}

// CloseSession stamps the exit of an open session along with its score and note.
func (s *Storage) CloseSession(ctx context.Context, session persistence.UsageSession) error {
	if session.ExitedAt == nil {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[session.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if !existing.Open() {
		return persistence.ErrSessionClosed
	}
	existing.ExitedAt = session.ExitedAt
	existing.Score = session.Score
	existing.Note = session.Note
	s.sessions[session.ID] = cloneSession(existing)
	return nil
}

// ListSessions returns matching sessions, most recent entry first.
func (s *Storage) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.UsageSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.UsageSession
	for _, session := range s.sessions {
		if filter.UserID != "" && session.UserID != filter.UserID {
			continue
		}
		if filter.OpenOnly && !session.Open() {
			continue
		}
		out = append(out, cloneSession(session))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnteredAt.Equal(out[j].EnteredAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].EnteredAt.After(out[j].EnteredAt)
	})
	return out, nil
}

// --- Helpers ---

func validateReservation(r persistence.Reservation) error {
	if r.ID == "" || r.UserID == "" || r.ResourceID == "" {
		return persistence.ErrConstraintViolation
	}
	if !r.Start.Before(r.End) || !validStatus(r.Status) {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func validStatus(status string) bool {
	switch status {
	case persistence.ReservationActive, persistence.ReservationCancelled, persistence.ReservationCompleted:
		return true
	}
	return false
}

func cloneReservation(r persistence.Reservation) persistence.Reservation {
	if r.Note != nil {
		note := *r.Note
		r.Note = &note
	}
	return r
}

func cloneSession(session persistence.UsageSession) persistence.UsageSession {
	if session.ExitedAt != nil {
		exited := *session.ExitedAt
		session.ExitedAt = &exited
	}
	if session.Score != nil {
		score := *session.Score
		session.Score = &score
	}
	if session.Note != nil {
		note := *session.Note
		session.Note = &note
	}
	return session
}
