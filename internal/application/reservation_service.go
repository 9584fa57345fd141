package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/example/studyspace/internal/persistence"
	"github.com/example/studyspace/internal/scheduler"
)

// ResourceCatalog exposes resource lookups.
type ResourceCatalog interface {
	GetResource(ctx context.Context, id string) (Resource, error)
	ListActiveResources(ctx context.Context) ([]Resource, error)
}

// ReservationRepository captures the persistence interactions needed by the
// service. CreateReservation and UpdateReservation are conditional writes that
// re-run the admission gate against stored data.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation, capacity int) (Reservation, error)
	UpdateReservation(ctx context.Context, reservation Reservation, capacity int) (Reservation, error)
	GetReservation(ctx context.Context, id string) (Reservation, error)
	SetReservationStatus(ctx context.Context, id string, status ReservationStatus, updatedAt time.Time) error
	ListReservations(ctx context.Context, filter ReservationRepositoryFilter) ([]Reservation, error)
}

// ReservationService admits, moves, and cancels reservations and answers
// availability and occupancy queries from the interval index.
type ReservationService struct {
	catalog      ResourceCatalog
	reservations ReservationRepository
	index        *scheduler.Index
	locks        *admissionLocks
	policy       Policy
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
	metrics      *serviceMetrics
}

// NewReservationService wires dependencies for reservation operations.
func NewReservationService(catalog ResourceCatalog, reservations ReservationRepository, policy Policy, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(catalog, reservations, policy, idGenerator, now, nil)
}

// NewReservationServiceWithLogger wires dependencies with a specific logger.
// The index starts empty; call Rebuild before serving traffic.
func NewReservationServiceWithLogger(catalog ResourceCatalog, reservations ReservationRepository, policy Policy, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		catalog:      catalog,
		reservations: reservations,
		index:        scheduler.NewIndex(),
		locks:        newAdmissionLocks(),
		policy:       policy.normalized(),
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
		metrics:      newServiceMetrics(),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// Policy returns the rules the service enforces.
func (s *ReservationService) Policy() Policy {
	return s.policy
}

// Rebuild reloads the interval index from the store's active reservations.
func (s *ReservationService) Rebuild(ctx context.Context) (err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	logger := s.loggerWith(ctx, "Rebuild")

	active, err := s.reservations.ListReservations(ctx, ReservationRepositoryFilter{
		Statuses: []ReservationStatus{ReservationActive},
	})
	if err != nil {
		err = mapReservationRepoError(err)
		logger.ErrorContext(ctx, "failed to rebuild index", "error", err, "error_kind", ErrorKind(err))
		return
	}
	s.index.Load(scheduler.IntervalsOf(active, toInterval))
	logger.InfoContext(ctx, "index rebuilt", "reservations", len(active))
	return nil
}

// CreateReservation admits a new reservation when the user is free and the
// resource has a seat left for the whole interval.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	started := time.Now()
	logger := s.loggerWith(ctx, "CreateReservation",
		"user_id", params.UserID,
		"resource_id", params.ResourceID,
	)
	defer func() {
		s.metrics.admission(ctx, "create", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation created")
	}()

	now := s.now()
	vErr := &ValidationError{Kind: ErrInvalidWindow}
	requireField(vErr, "user_id", params.UserID)
	requireField(vErr, "resource_id", params.ResourceID)
	vErr.merge(s.validateWindow(params.Start, params.End, now))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	resource, err := s.activeResource(ctx, params.ResourceID)
	if err != nil {
		return
	}

	unlock := s.locks.lock(params.UserID, resource.ID)
	defer unlock()

	candidate := Reservation{
		ID:         s.idGenerator(),
		UserID:     params.UserID,
		ResourceID: resource.ID,
		Start:      params.Start,
		End:        params.End,
		Status:     ReservationActive,
		Note:       trimNote(params.Note),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err = s.checkIndex(candidate, "", resource.Capacity); err != nil {
		return
	}

	reservation, err = s.persist(ctx, func() (Reservation, error) {
		return s.reservations.CreateReservation(ctx, candidate, resource.Capacity)
	})
	if err != nil {
		err = s.handleStoreRejection(ctx, candidate, "", resource.Capacity, err)
		return
	}

	s.index.Insert(toInterval(reservation))
	return reservation, nil
}

// UpdateReservation moves an active reservation to a new interval on the same
// resource. The reservation never conflicts with its own previous interval.
func (s *ReservationService) UpdateReservation(ctx context.Context, params UpdateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	started := time.Now()
	logger := s.loggerWith(ctx, "UpdateReservation",
		"user_id", params.UserID,
		"reservation_id", params.ReservationID,
	)
	defer func() {
		s.metrics.admission(ctx, "update", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to update reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation updated")
	}()

	current, err := s.ownedReservation(ctx, params.ReservationID, params.UserID)
	if err != nil {
		return
	}

	now := s.now()
	vErr := s.validateWindow(params.Start, params.End, now)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	resource, err := s.activeResource(ctx, current.ResourceID)
	if err != nil {
		return
	}

	unlock := s.locks.lock(current.UserID, current.ResourceID)
	defer unlock()

	// Re-read under the lock; the reservation may have been cancelled meanwhile.
	if current, err = s.ownedReservation(ctx, params.ReservationID, params.UserID); err != nil {
		return
	}
	if current.Status != ReservationActive {
		vErr := &ValidationError{Kind: ErrInvalidWindow}
		vErr.add("status", fmt.Sprintf("%s reservations cannot be changed", current.Status))
		err = vErr
		return
	}

	moved := current
	moved.Start = params.Start
	moved.End = params.End
	if params.Note != nil {
		moved.Note = trimNote(params.Note)
	}
	moved.UpdatedAt = now

	if err = s.checkIndex(moved, moved.ID, resource.Capacity); err != nil {
		return
	}

	reservation, err = s.persist(ctx, func() (Reservation, error) {
		return s.reservations.UpdateReservation(ctx, moved, resource.Capacity)
	})
	if err != nil {
		err = s.handleStoreRejection(ctx, moved, moved.ID, resource.Capacity, err)
		return
	}

	s.index.Replace(toInterval(reservation))
	return reservation, nil
}

// CancelReservation withdraws one of the user's reservations whatever its
// state; the admission gate is not consulted. Cancelling an already cancelled
// reservation succeeds without changes.
func (s *ReservationService) CancelReservation(ctx context.Context, reservationID, userID string) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	started := time.Now()
	logger := s.loggerWith(ctx, "CancelReservation",
		"user_id", userID,
		"reservation_id", reservationID,
	)
	defer func() {
		s.metrics.admission(ctx, "cancel", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation cancelled")
	}()

	current, err := s.ownedReservation(ctx, reservationID, userID)
	if err != nil {
		return
	}

	unlock := s.locks.lock(current.UserID, current.ResourceID)
	defer unlock()

	if current, err = s.ownedReservation(ctx, reservationID, userID); err != nil {
		return
	}
	if current.Status == ReservationCancelled {
		return current, nil
	}

	now := s.now()
	if err = s.reservations.SetReservationStatus(ctx, current.ID, ReservationCancelled, now); err != nil {
		err = mapReservationRepoError(err)
		return
	}
	s.index.MarkCancelled(current.ID)

	current.Status = ReservationCancelled
	current.UpdatedAt = now
	return current, nil
}

// ListUserReservations returns the user's reservations, newest first. An empty
// status lists every state.
func (s *ReservationService) ListUserReservations(ctx context.Context, userID string, status ReservationStatus) (reservations []Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListUserReservations", "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list reservations", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	vErr := &ValidationError{}
	requireField(vErr, "user_id", userID)
	if status != "" && !status.Valid() {
		vErr.add("status", "status must be active, cancelled, or completed")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	filter := ReservationRepositoryFilter{UserID: userID}
	if status != "" {
		filter.Statuses = []ReservationStatus{status}
	}
	reservations, err = s.reservations.ListReservations(ctx, filter)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	sort.SliceStable(reservations, func(i, j int) bool {
		if reservations[i].Start.Equal(reservations[j].Start) {
			return reservations[i].ID > reservations[j].ID
		}
		return reservations[i].Start.After(reservations[j].Start)
	})
	return reservations, nil
}

// ListFreeSlots returns the stretches of the day window on date where the
// resource can take a reservation of durationMinutes.
func (s *ReservationService) ListFreeSlots(ctx context.Context, resourceID string, date time.Time, durationMinutes int) (slots []FreeSlot, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListFreeSlots", "resource_id", resourceID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list free slots", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	duration, err := s.validateSuggestionDuration(durationMinutes)
	if err != nil {
		return
	}

	resource, err := s.activeResource(ctx, resourceID)
	if err != nil {
		return
	}

	return s.freeSlots(resource, date, duration), nil
}

// ListFreeSlotsBatch runs ListFreeSlots for several resources and merges the
// results ordered by start, then resource ID. No IDs means every active resource.
func (s *ReservationService) ListFreeSlotsBatch(ctx context.Context, resourceIDs []string, date time.Time, durationMinutes int) (slots []FreeSlot, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListFreeSlotsBatch", "resources", len(resourceIDs))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list free slots", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	duration, err := s.validateSuggestionDuration(durationMinutes)
	if err != nil {
		return
	}

	resources, err := s.resolveResources(ctx, resourceIDs)
	if err != nil {
		return
	}

	results := make([][]FreeSlot, len(resources))
	var group errgroup.Group
	group.SetLimit(8)
	for i, resource := range resources {
		group.Go(func() error {
			results[i] = s.freeSlots(resource, date, duration)
			return nil
		})
	}
	if err = group.Wait(); err != nil {
		return
	}

	for _, found := range results {
		slots = append(slots, found...)
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Start.Equal(slots[j].Start) {
			return slots[i].ResourceID < slots[j].ResourceID
		}
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots, nil
}

// GetHourlyOccupancy counts, for every resource and hour of the day window,
// the active reservations overlapping that hour. No IDs means every active resource.
func (s *ReservationService) GetHourlyOccupancy(ctx context.Context, resourceIDs []string, date time.Time) (occupancy Occupancy, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "GetHourlyOccupancy", "resources", len(resourceIDs))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute occupancy", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	resources, err := s.resolveResources(ctx, resourceIDs)
	if err != nil {
		return
	}

	window := s.policy.DayWindow.On(date)
	occupancy = make(Occupancy, len(resources))
	for _, resource := range resources {
		intervals := s.index.ActiveOn(resource.ID, window.Start, window.End)
		occupancy[resource.ID] = scheduler.HourlyOccupancy(intervals, window)
	}
	return occupancy, nil
}

// CompleteElapsed marks active reservations whose end has passed as completed
// and returns how many changed.
func (s *ReservationService) CompleteElapsed(ctx context.Context) (completed int, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CompleteElapsed")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete elapsed reservations", "error", err, "error_kind", ErrorKind(err), "completed", completed)
			return
		}
		if completed > 0 {
			logger.InfoContext(ctx, "elapsed reservations completed", "completed", completed)
		}
	}()

	now := s.now()
	for _, interval := range s.index.Elapsed(now) {
		if err = ctx.Err(); err != nil {
			return
		}
		var done bool
		done, err = s.completeOne(ctx, interval, now)
		if err != nil {
			return
		}
		if done {
			completed++
		}
	}
	return completed, nil
}

func (s *ReservationService) completeOne(ctx context.Context, interval scheduler.Interval, now time.Time) (bool, error) {
	unlock := s.locks.lock(interval.UserID, interval.ResourceID)
	defer unlock()

	current, err := s.reservations.GetReservation(ctx, interval.ID)
	if err != nil {
		if errors.Is(mapReservationRepoError(err), ErrNotFound) {
			s.index.MarkCancelled(interval.ID)
			return false, nil
		}
		return false, mapReservationRepoError(err)
	}
	if current.Status != ReservationActive || current.End.After(now) {
		// Moved or cancelled since the index snapshot.
		s.index.Replace(toInterval(current))
		return false, nil
	}
	if err := s.reservations.SetReservationStatus(ctx, current.ID, ReservationCompleted, now); err != nil {
		return false, mapReservationRepoError(err)
	}
	s.index.MarkCompleted(current.ID)
	return true, nil
}

func (s *ReservationService) freeSlots(resource Resource, date time.Time, duration time.Duration) []FreeSlot {
	window := s.policy.window(date, s.now())
	if window.Empty() {
		return nil
	}
	intervals := s.index.ActiveOn(resource.ID, window.Start, window.End)
	found := scheduler.FreeSlots(resource.ID, resource.Capacity, intervals, window, duration)
	slots := make([]FreeSlot, 0, len(found))
	for _, slot := range found {
		slots = append(slots, FreeSlot{
			ResourceID:        slot.ResourceID,
			Start:             slot.Start,
			End:               slot.End,
			RemainingCapacity: slot.RemainingCapacity,
		})
	}
	return slots
}

// checkIndex runs the admission gate against the index: user overlap first,
// then peak concurrency against capacity.
func (s *ReservationService) checkIndex(candidate Reservation, replacesID string, capacity int) error {
	conflict := scheduler.CheckAdmission(
		scheduler.Candidate{
			UserID:     candidate.UserID,
			ResourceID: candidate.ResourceID,
			Start:      candidate.Start,
			End:        candidate.End,
			ReplacesID: replacesID,
		},
		s.index.OverlapsForUser(candidate.UserID, candidate.Start, candidate.End, replacesID),
		s.index.ActiveOn(candidate.ResourceID, candidate.Start, candidate.End),
		capacity,
	)
	return toConflictError(conflict)
}

// persist runs a conditional write, retrying with exponential backoff while
// the store reports a lost race.
func (s *ReservationService) persist(ctx context.Context, write func() (Reservation, error)) (Reservation, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.policy.RetryInitialInterval
	policy.MaxInterval = 20 * s.policy.RetryInitialInterval
	policy.MaxElapsedTime = 0

	attempt := 0
	reservation, err := backoff.RetryWithData(func() (Reservation, error) {
		attempt++
		reservation, err := write()
		if err == nil {
			return reservation, nil
		}
		if errors.Is(err, persistence.ErrConflict) {
			s.loggerWith(ctx, "persist").DebugContext(ctx, "store contended, retrying", "attempt", attempt, "error", err)
			return Reservation{}, err
		}
		return Reservation{}, backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.policy.AdmissionRetries)), ctx))
	if err != nil && errors.Is(err, persistence.ErrConflict) {
		return Reservation{}, fmt.Errorf("%w: store contended after %d attempts: %v", ErrUnavailable, attempt, err)
	}
	return reservation, err
}

// handleStoreRejection maps a failed conditional write. When the store rejects
// an interval the index had admitted, the index is stale: the affected
// resources are reloaded and the gate re-run to name the conflicting reservations.
func (s *ReservationService) handleStoreRejection(ctx context.Context, candidate Reservation, replacesID string, capacity int, err error) error {
	mapped := mapReservationRepoError(err)
	if !errors.Is(mapped, ErrCapacityExceeded) && !errors.Is(mapped, ErrUserDoubleBooked) {
		return mapped
	}

	logger := s.loggerWith(ctx, "refresh", "resource_id", candidate.ResourceID, "user_id", candidate.UserID)
	if refreshErr := s.refresh(ctx, candidate); refreshErr != nil {
		logger.WarnContext(ctx, "failed to refresh index after store rejection", "error", refreshErr)
		return mapped
	}
	logger.InfoContext(ctx, "index refreshed after store rejection", "error_kind", ErrorKind(mapped))

	if conflict := s.checkIndex(candidate, replacesID, capacity); conflict != nil {
		return conflict
	}
	return mapped
}

// refresh reloads the candidate's resource and every resource on which the
// user holds active reservations.
func (s *ReservationService) refresh(ctx context.Context, candidate Reservation) error {
	userRows, err := s.reservations.ListReservations(ctx, ReservationRepositoryFilter{
		UserID:   candidate.UserID,
		Statuses: []ReservationStatus{ReservationActive},
	})
	if err != nil {
		return err
	}
	resourceIDs := map[string]struct{}{candidate.ResourceID: {}}
	for _, row := range userRows {
		resourceIDs[row.ResourceID] = struct{}{}
	}
	for resourceID := range resourceIDs {
		rows, err := s.reservations.ListReservations(ctx, ReservationRepositoryFilter{
			ResourceID: resourceID,
			Statuses:   []ReservationStatus{ReservationActive},
		})
		if err != nil {
			return err
		}
		s.index.ReloadResource(resourceID, scheduler.IntervalsOf(rows, toInterval))
	}
	return nil
}

func (s *ReservationService) ownedReservation(ctx context.Context, reservationID, userID string) (Reservation, error) {
	if strings.TrimSpace(reservationID) == "" {
		return Reservation{}, ErrNotFound
	}
	reservation, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, mapReservationRepoError(err)
	}
	if reservation.UserID != userID {
		return Reservation{}, ErrNotOwner
	}
	return reservation, nil
}

func (s *ReservationService) activeResource(ctx context.Context, resourceID string) (Resource, error) {
	return activeResource(ctx, s.catalog, resourceID)
}

// resolveResources returns the named resources, or every active resource when
// ids is empty. Unknown or inactive IDs yield ErrNotFound.
func (s *ReservationService) resolveResources(ctx context.Context, ids []string) ([]Resource, error) {
	if len(ids) == 0 {
		resources, err := s.catalog.ListActiveResources(ctx)
		if err != nil {
			return nil, mapResourceRepoError(err)
		}
		return resources, nil
	}
	seen := make(map[string]struct{}, len(ids))
	resources := make([]Resource, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		resource, err := s.activeResource(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", id, err)
		}
		resources = append(resources, resource)
	}
	return resources, nil
}

func (s *ReservationService) validateWindow(start, end, now time.Time) *ValidationError {
	vErr := &ValidationError{Kind: ErrInvalidWindow}
	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	if vErr.HasErrors() {
		return vErr
	}
	if !start.Before(end) {
		vErr.add("end", "end must be after start")
	} else if end.Sub(start) > s.policy.MaxDuration {
		vErr.add("end", fmt.Sprintf("reservations may last at most %s", s.policy.MaxDuration))
	}
	if start.Before(now) {
		vErr.add("start", "start must not be in the past")
	}
	return vErr
}

func (s *ReservationService) validateSuggestionDuration(minutes int) (time.Duration, error) {
	duration := time.Duration(minutes) * time.Minute
	if minutes <= 0 || duration > s.policy.MaxDuration {
		vErr := &ValidationError{Kind: ErrInvalidWindow}
		vErr.add("duration", fmt.Sprintf("duration must be between 1 and %d minutes", int(s.policy.MaxDuration/time.Minute)))
		return 0, vErr
	}
	return duration, nil
}

func activeResource(ctx context.Context, catalog ResourceCatalog, resourceID string) (Resource, error) {
	if strings.TrimSpace(resourceID) == "" {
		return Resource{}, ErrNotFound
	}
	resource, err := catalog.GetResource(ctx, resourceID)
	if err != nil {
		return Resource{}, mapResourceRepoError(err)
	}
	if !resource.Active {
		return Resource{}, ErrNotFound
	}
	return resource, nil
}

func requireField(vErr *ValidationError, field, value string) {
	if strings.TrimSpace(value) == "" {
		vErr.add(field, field+" is required")
	}
}

func trimNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toInterval(r Reservation) scheduler.Interval {
	return scheduler.Interval{
		ID:         r.ID,
		UserID:     r.UserID,
		ResourceID: r.ResourceID,
		Start:      r.Start,
		End:        r.End,
		Status:     scheduler.Status(r.Status),
	}
}

func toConflictError(conflict *scheduler.Conflict) error {
	if conflict == nil {
		return nil
	}
	switch conflict.Type {
	case scheduler.ConflictTypeUser:
		return &ConflictError{Kind: ErrUserDoubleBooked, ReservationIDs: conflict.WithIntervalIDs}
	default:
		return &ConflictError{
			Kind:           ErrCapacityExceeded,
			ReservationIDs: conflict.WithIntervalIDs,
			Capacity:       conflict.Capacity,
			Peak:           conflict.Peak,
		}
	}
}

func mapReservationRepoError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrUnavailable, ErrUserDoubleBooked, ErrCapacityExceeded, ErrInvalidWindow} {
		if errors.Is(err, known) {
			return err
		}
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrUserOverlap):
		return &ConflictError{Kind: ErrUserDoubleBooked}
	case errors.Is(err, persistence.ErrCapacityExceeded):
		return &ConflictError{Kind: ErrCapacityExceeded}
	case errors.Is(err, persistence.ErrConflict):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{Kind: ErrInvalidWindow}
		vErr.add("end", "end must be after start")
		return vErr
	}
	return err
}
