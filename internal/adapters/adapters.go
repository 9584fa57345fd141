// Package adapters translates between persistence records and application
// models so the services stay independent of the storage backend.
package adapters

import (
	"context"
	"time"

	"github.com/example/studyspace/internal/application"
	"github.com/example/studyspace/internal/persistence"
)

var (
	_ application.ResourceRepository    = (*ResourceRepository)(nil)
	_ application.ReservationRepository = (*ReservationRepository)(nil)
	_ application.SessionRepository     = (*SessionRepository)(nil)
)

// Store is the union of the persistence repositories a backend provides.
type Store interface {
	persistence.ResourceRepository
	persistence.ReservationRepository
	persistence.SessionRepository
}

// Repositories groups the application ports built over one Store.
type Repositories struct {
	Resources    *ResourceRepository
	Reservations *ReservationRepository
	Sessions     *SessionRepository
}

// New builds every application port over store. now stamps catalog writes.
func New(store Store, now func() time.Time) Repositories {
	return Repositories{
		Resources:    NewResourceRepository(store, now),
		Reservations: NewReservationRepository(store),
		Sessions:     NewSessionRepository(store),
	}
}

// ResourceRepository implements application.ResourceRepository.
type ResourceRepository struct {
	repo persistence.ResourceRepository
	now  func() time.Time
}

// NewResourceRepository wraps a persistence resource repository.
func NewResourceRepository(repo persistence.ResourceRepository, now func() time.Time) *ResourceRepository {
	if now == nil {
		now = time.Now
	}
	return &ResourceRepository{repo: repo, now: now}
}

func (a *ResourceRepository) UpsertResource(ctx context.Context, resource application.Resource) (application.Resource, error) {
	stamp := a.now()
	model := toPersistenceResource(resource)
	model.CreatedAt, model.UpdatedAt = stamp, stamp
	if existing, err := a.repo.GetResource(ctx, resource.ID); err == nil {
		model.CreatedAt = existing.CreatedAt
	}
	if err := a.repo.UpsertResource(ctx, model); err != nil {
		return application.Resource{}, err
	}
	return resource, nil
}

func (a *ResourceRepository) GetResource(ctx context.Context, id string) (application.Resource, error) {
	model, err := a.repo.GetResource(ctx, id)
	if err != nil {
		return application.Resource{}, err
	}
	return toApplicationResource(model), nil
}

func (a *ResourceRepository) ListResources(ctx context.Context, activeOnly bool) ([]application.Resource, error) {
	models, err := a.repo.ListResources(ctx, persistence.ResourceFilter{ActiveOnly: activeOnly})
	if err != nil {
		return nil, err
	}
	resources := make([]application.Resource, 0, len(models))
	for _, model := range models {
		resources = append(resources, toApplicationResource(model))
	}
	return resources, nil
}

// ReservationRepository implements application.ReservationRepository.
type ReservationRepository struct {
	repo persistence.ReservationRepository
}

// NewReservationRepository wraps a persistence reservation repository.
func NewReservationRepository(repo persistence.ReservationRepository) *ReservationRepository {
	return &ReservationRepository{repo: repo}
}

func (a *ReservationRepository) CreateReservation(ctx context.Context, reservation application.Reservation, capacity int) (application.Reservation, error) {
	if err := a.repo.CreateReservation(ctx, toPersistenceReservation(reservation), capacity); err != nil {
		return application.Reservation{}, err
	}
	return a.GetReservation(ctx, reservation.ID)
}

func (a *ReservationRepository) UpdateReservation(ctx context.Context, reservation application.Reservation, capacity int) (application.Reservation, error) {
	if err := a.repo.UpdateReservation(ctx, toPersistenceReservation(reservation), capacity); err != nil {
		return application.Reservation{}, err
	}
	return a.GetReservation(ctx, reservation.ID)
}

func (a *ReservationRepository) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	model, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(model), nil
}

func (a *ReservationRepository) SetReservationStatus(ctx context.Context, id string, status application.ReservationStatus, updatedAt time.Time) error {
	return a.repo.SetReservationStatus(ctx, id, string(status), updatedAt)
}

func (a *ReservationRepository) ListReservations(ctx context.Context, filter application.ReservationRepositoryFilter) ([]application.Reservation, error) {
	persistedFilter := persistence.ReservationFilter{
		UserID:     filter.UserID,
		ResourceID: filter.ResourceID,
		EndsAfter:  filter.EndsAfter,
	}
	for _, status := range filter.Statuses {
		persistedFilter.Statuses = append(persistedFilter.Statuses, string(status))
	}
	models, err := a.repo.ListReservations(ctx, persistedFilter)
	if err != nil {
		return nil, err
	}
	reservations := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		reservations = append(reservations, toApplicationReservation(model))
	}
	return reservations, nil
}

// SessionRepository implements application.SessionRepository.
type SessionRepository struct {
	repo persistence.SessionRepository
}

// NewSessionRepository wraps a persistence session repository.
func NewSessionRepository(repo persistence.SessionRepository) *SessionRepository {
	return &SessionRepository{repo: repo}
}

func (a *SessionRepository) CreateSession(ctx context.Context, session application.UsageSession) (application.UsageSession, error) {
	if err := a.repo.CreateSession(ctx, toPersistenceSession(session)); err != nil {
		return application.UsageSession{}, err
	}
	return a.GetSession(ctx, session.ID)
}

func (a *SessionRepository) GetSession(ctx context.Context, id string) (application.UsageSession, error) {
	model, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return application.UsageSession{}, err
	}
	return toApplicationSession(model), nil
}

func (a *SessionRepository) GetOpenSession(ctx context.Context, userID string) (application.UsageSession, error) {
	model, err := a.repo.GetOpenSession(ctx, userID)
	if err != nil {
		return application.UsageSession{}, err
	}
	return toApplicationSession(model), nil
}

func (a *SessionRepository) CloseSession(ctx context.Context, session application.UsageSession) (application.UsageSession, error) {
	if err := a.repo.CloseSession(ctx, toPersistenceSession(session)); err != nil {
		return application.UsageSession{}, err
	}
	return a.GetSession(ctx, session.ID)
}

func (a *SessionRepository) ListSessions(ctx context.Context, filter application.SessionRepositoryFilter) ([]application.UsageSession, error) {
	models, err := a.repo.ListSessions(ctx, persistence.SessionFilter{UserID: filter.UserID, OpenOnly: filter.OpenOnly})
	if err != nil {
		return nil, err
	}
	sessions := make([]application.UsageSession, 0, len(models))
	for _, model := range models {
		sessions = append(sessions, toApplicationSession(model))
	}
	return sessions, nil
}

func toApplicationResource(model persistence.Resource) application.Resource {
	return application.Resource{
		ID:          model.ID,
		Name:        model.Name,
		Location:    model.Location,
		Capacity:    model.Capacity,
		Type:        model.Type,
		PowerOutlet: model.PowerOutlet,
		QuietZone:   model.QuietZone,
		Active:      model.Active,
	}
}

func toPersistenceResource(resource application.Resource) persistence.Resource {
	return persistence.Resource{
		ID:          resource.ID,
		Name:        resource.Name,
		Location:    resource.Location,
		Capacity:    resource.Capacity,
		Type:        resource.Type,
		PowerOutlet: resource.PowerOutlet,
		QuietZone:   resource.QuietZone,
		Active:      resource.Active,
	}
}

func toApplicationReservation(model persistence.Reservation) application.Reservation {
	return application.Reservation{
		ID:         model.ID,
		UserID:     model.UserID,
		ResourceID: model.ResourceID,
		Start:      model.Start,
		End:        model.End,
		Status:     application.ReservationStatus(model.Status),
		Note:       cloneString(model.Note),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toPersistenceReservation(reservation application.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:         reservation.ID,
		UserID:     reservation.UserID,
		ResourceID: reservation.ResourceID,
		Start:      reservation.Start,
		End:        reservation.End,
		Status:     string(reservation.Status),
		Note:       cloneString(reservation.Note),
		CreatedAt:  reservation.CreatedAt,
		UpdatedAt:  reservation.UpdatedAt,
	}
}

func toApplicationSession(model persistence.UsageSession) application.UsageSession {
	return application.UsageSession{
		ID:         model.ID,
		UserID:     model.UserID,
		ResourceID: model.ResourceID,
		EnteredAt:  model.EnteredAt,
		ExitedAt:   cloneTime(model.ExitedAt),
		Score:      cloneInt(model.Score),
		Note:       cloneString(model.Note),
	}
}

func toPersistenceSession(session application.UsageSession) persistence.UsageSession {
	return persistence.UsageSession{
		ID:         session.ID,
		UserID:     session.UserID,
		ResourceID: session.ResourceID,
		EnteredAt:  session.EnteredAt,
		ExitedAt:   cloneTime(session.ExitedAt),
		Score:      cloneInt(session.Score),
		Note:       cloneString(session.Note),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
