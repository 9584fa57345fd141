package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/studyspace/internal/persistence"
)

var testDay = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type catalogStub struct {
	resources map[string]Resource
	err       error
}

func (c *catalogStub) GetResource(ctx context.Context, id string) (Resource, error) {
	if c.err != nil {
		return Resource{}, c.err
	}
	resource, ok := c.resources[id]
	if !ok {
		return Resource{}, persistence.ErrNotFound
	}
	return resource, nil
}

func (c *catalogStub) ListActiveResources(ctx context.Context) ([]Resource, error) {
	var out []Resource
	for _, resource := range c.resources {
		if resource.Active {
			out = append(out, resource)
		}
	}
	return out, c.err
}

type reservationRepoStub struct {
	mu sync.Mutex

	createErrs []error
	createCall int
	created    []Reservation

	updateErr error

	rows map[string]Reservation

	statusErr error
	listErr   error
}

func (r *reservationRepoStub) CreateReservation(ctx context.Context, reservation Reservation, capacity int) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCall++
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return Reservation{}, err
		}
	}
	r.created = append(r.created, reservation)
	if r.rows == nil {
		r.rows = map[string]Reservation{}
	}
	r.rows[reservation.ID] = reservation
	return reservation, nil
}

func (r *reservationRepoStub) UpdateReservation(ctx context.Context, reservation Reservation, capacity int) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return Reservation{}, r.updateErr
	}
	r.rows[reservation.ID] = reservation
	return reservation, nil
}

func (r *reservationRepoStub) GetReservation(ctx context.Context, id string) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation, ok := r.rows[id]
	if !ok {
		return Reservation{}, persistence.ErrNotFound
	}
	return reservation, nil
}

func (r *reservationRepoStub) SetReservationStatus(ctx context.Context, id string, status ReservationStatus, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statusErr != nil {
		return r.statusErr
	}
	reservation, ok := r.rows[id]
	if !ok {
		return persistence.ErrNotFound
	}
	reservation.Status = status
	reservation.UpdatedAt = updatedAt
	r.rows[id] = reservation
	return nil
}

func (r *reservationRepoStub) ListReservations(ctx context.Context, filter ReservationRepositoryFilter) ([]Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []Reservation
	for _, reservation := range r.rows {
		if filter.UserID != "" && reservation.UserID != filter.UserID {
			continue
		}
		if filter.ResourceID != "" && reservation.ResourceID != filter.ResourceID {
			continue
		}
		if len(filter.Statuses) > 0 && reservation.Status != filter.Statuses[0] {
			continue
		}
		out = append(out, reservation)
	}
	return out, nil
}

func newStubService(catalog *catalogStub, repo *reservationRepoStub, now time.Time) *ReservationService {
	policy := DefaultPolicy()
	policy.AdmissionRetries = 3
	policy.RetryInitialInterval = time.Millisecond
	counter := 0
	var mu sync.Mutex
	ids := func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return fmt.Sprintf("r%d", counter)
	}
	return NewReservationServiceWithLogger(catalog, repo, policy, ids, func() time.Time { return now },
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func labCatalog() *catalogStub {
	return &catalogStub{resources: map[string]Resource{
		"lab-a":  {ID: "lab-a", Name: "Lab A", Capacity: 2, Active: true},
		"lab-b":  {ID: "lab-b", Name: "Lab B", Capacity: 1, Active: true},
		"closed": {ID: "closed", Name: "Closed", Capacity: 4},
	}}
}

func TestReservationService_NilReceiver(t *testing.T) {
	t.Parallel()

	var svc *ReservationService
	if _, err := svc.CreateReservation(context.Background(), CreateReservationParams{}); err == nil {
		t.Fatalf("expected error from nil service")
	}
}

func TestReservationService_CreateValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newStubService(labCatalog(), &reservationRepoStub{}, at(8, 0))

	cases := []struct {
		name   string
		params CreateReservationParams
		field  string
		kind   error
	}{
		{"end before start", CreateReservationParams{UserID: "u", ResourceID: "lab-a", Start: at(10, 0), End: at(9, 0)}, "end", ErrInvalidWindow},
		{"zero length", CreateReservationParams{UserID: "u", ResourceID: "lab-a", Start: at(10, 0), End: at(10, 0)}, "end", ErrInvalidWindow},
		{"too long", CreateReservationParams{UserID: "u", ResourceID: "lab-a", Start: at(9, 0), End: at(13, 1)}, "end", ErrInvalidWindow},
		{"in the past", CreateReservationParams{UserID: "u", ResourceID: "lab-a", Start: at(7, 0), End: at(9, 0)}, "start", ErrInvalidWindow},
		{"missing user", CreateReservationParams{ResourceID: "lab-a", Start: at(9, 0), End: at(10, 0)}, "user_id", ErrInvalidWindow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateReservation(ctx, tc.params)
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.FieldErrors[tc.field] == "" {
				t.Fatalf("expected field error on %q, got %v", tc.field, err)
			}
		})
	}

	t.Run("exactly the maximum is accepted", func(t *testing.T) {
		if _, err := svc.CreateReservation(ctx, CreateReservationParams{UserID: "max", ResourceID: "lab-a", Start: at(9, 0), End: at(13, 0)}); err != nil {
			t.Fatalf("expected 4h reservation to be admitted, got %v", err)
		}
	})

	t.Run("unknown and inactive resources", func(t *testing.T) {
		for _, id := range []string{"missing", "closed"} {
			_, err := svc.CreateReservation(ctx, CreateReservationParams{UserID: "u", ResourceID: id, Start: at(15, 0), End: at(16, 0)})
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound for %s, got %v", id, err)
			}
		}
	})
}

func TestReservationService_RetriesLostRaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("succeeds after transient conflicts", func(t *testing.T) {
		repo := &reservationRepoStub{createErrs: []error{persistence.ErrConflict, persistence.ErrConflict}}
		svc := newStubService(labCatalog(), repo, at(8, 0))

		reservation, err := svc.CreateReservation(ctx, CreateReservationParams{UserID: "u1", ResourceID: "lab-a", Start: at(9, 0), End: at(10, 0)})
		if err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if repo.createCall != 3 {
			t.Fatalf("expected 3 attempts, got %d", repo.createCall)
		}
		if svc.index.CountOverlapping("lab-a", at(9, 0), at(10, 0)) != 1 || reservation.ID == "" {
			t.Fatalf("expected admitted reservation in index")
		}
	})

	t.Run("exhaustion surfaces unavailable", func(t *testing.T) {
		errs := make([]error, 10)
		for i := range errs {
			errs[i] = fmt.Errorf("%w: database is locked", persistence.ErrConflict)
		}
		repo := &reservationRepoStub{createErrs: errs}
		svc := newStubService(labCatalog(), repo, at(8, 0))

		_, err := svc.CreateReservation(ctx, CreateReservationParams{UserID: "u1", ResourceID: "lab-a", Start: at(9, 0), End: at(10, 0)})
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
		if repo.createCall != 4 {
			t.Fatalf("expected 1 attempt plus 3 retries, got %d", repo.createCall)
		}
		if svc.index.Len() != 0 {
			t.Fatalf("rejected reservation must not reach the index")
		}
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		repo := &reservationRepoStub{createErrs: []error{persistence.ErrForeignKeyViolation}}
		svc := newStubService(labCatalog(), repo, at(8, 0))

		_, err := svc.CreateReservation(ctx, CreateReservationParams{UserID: "u1", ResourceID: "lab-a", Start: at(9, 0), End: at(10, 0)})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if repo.createCall != 1 {
			t.Fatalf("expected a single attempt, got %d", repo.createCall)
		}
	})
}

func TestReservationService_StoreRejectionRefreshesIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Another process admitted r-other on lab-b; this instance's index has
	// not seen it yet.
	repo := &reservationRepoStub{
		rows: map[string]Reservation{
			"r-other": {ID: "r-other", UserID: "elsewhere", ResourceID: "lab-b", Start: at(9, 0), End: at(10, 0), Status: ReservationActive},
		},
		createErrs: []error{fmt.Errorf("%w: 1 of 1 in use", persistence.ErrCapacityExceeded)},
	}
	svc := newStubService(labCatalog(), repo, at(8, 0))

	_, err := svc.CreateReservation(ctx, CreateReservationParams{UserID: "u1", ResourceID: "lab-b", Start: at(9, 30), End: at(10, 30)})
	var conflict *ConflictError
	if !errors.As(err, &conflict) || !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected capacity conflict, got %v", err)
	}
	if len(conflict.ReservationIDs) != 1 || conflict.ReservationIDs[0] != "r-other" {
		t.Fatalf("expected refreshed index to name r-other, got %v", conflict.ReservationIDs)
	}
	if svc.index.CountOverlapping("lab-b", at(9, 0), at(10, 0)) != 1 {
		t.Fatalf("expected index to hold the reservation after refresh")
	}

	// The next attempt is rejected by the index without touching the store.
	calls := repo.createCall
	if _, err := svc.CreateReservation(ctx, CreateReservationParams{UserID: "u2", ResourceID: "lab-b", Start: at(9, 0), End: at(9, 30)}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected capacity rejection, got %v", err)
	}
	if repo.createCall != calls {
		t.Fatalf("expected the index to reject before the store")
	}
}

func TestReservationService_CancelAndOwnership(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := &reservationRepoStub{}
	svc := newStubService(labCatalog(), repo, at(8, 0))

	created, err := svc.CreateReservation(ctx, CreateReservationParams{UserID: "owner", ResourceID: "lab-b", Start: at(9, 0), End: at(10, 0)})
	if err != nil {
		t.Fatalf("CreateReservation returned error: %v", err)
	}

	if _, err := svc.CancelReservation(ctx, created.ID, "intruder"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := svc.CancelReservation(ctx, "missing", "owner"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for i := 0; i < 2; i++ {
		cancelled, err := svc.CancelReservation(ctx, created.ID, "owner")
		if err != nil {
			t.Fatalf("cancel %d returned error: %v", i, err)
		}
		if cancelled.Status != ReservationCancelled {
			t.Fatalf("expected cancelled status, got %s", cancelled.Status)
		}
	}
	if svc.index.Len() != 0 {
		t.Fatalf("expected cancelled reservation to leave the index")
	}

	if _, err := svc.UpdateReservation(ctx, UpdateReservationParams{ReservationID: created.ID, UserID: "owner", Start: at(11, 0), End: at(12, 0)}); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected cancelled reservation to be immovable, got %v", err)
	}
}

func TestMapReservationRepoError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   error
		want error
	}{
		{persistence.ErrNotFound, ErrNotFound},
		{persistence.ErrForeignKeyViolation, ErrNotFound},
		{persistence.ErrUserOverlap, ErrUserDoubleBooked},
		{persistence.ErrCapacityExceeded, ErrCapacityExceeded},
		{persistence.ErrConflict, ErrUnavailable},
		{persistence.ErrConstraintViolation, ErrInvalidWindow},
		{ErrNotFound, ErrNotFound},
	}
	for _, tc := range cases {
		if got := mapReservationRepoError(tc.in); !errors.Is(got, tc.want) {
			t.Fatalf("mapReservationRepoError(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if mapReservationRepoError(nil) != nil {
		t.Fatalf("expected nil to map to nil")
	}
}

func TestPolicyWindow(t *testing.T) {
	t.Parallel()
	policy := DefaultPolicy()

	cases := []struct {
		name      string
		date      time.Time
		now       time.Time
		wantStart time.Time
		empty     bool
	}{
		{"future day keeps opening time", testDay.AddDate(0, 0, 1), at(12, 0), at(8, 0).AddDate(0, 0, 1), false},
		{"today clips to now rounded up", testDay, at(10, 14).Add(20 * time.Second), at(10, 15), false},
		{"today on the minute", testDay, at(10, 14), at(10, 14), false},
		{"past day is empty", testDay.AddDate(0, 0, -1), at(9, 0), time.Time{}, true},
		{"after closing is empty", testDay, at(22, 30), time.Time{}, true},
	}
	for _, tc := range cases {
		window := policy.window(tc.date, tc.now)
		if window.Empty() != tc.empty {
			t.Fatalf("%s: expected empty=%v, got window %v", tc.name, tc.empty, window)
		}
		if !tc.empty && !window.Start.Equal(tc.wantStart) {
			t.Fatalf("%s: expected start %v, got %v", tc.name, tc.wantStart, window.Start)
		}
	}
}

func TestKeyedMutex(t *testing.T) {
	t.Parallel()

	locks := newKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("same")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("expected serialised increments, got %d", counter)
	}
	if len(locks.locks) != 0 {
		t.Fatalf("expected released keys to be forgotten, %d remain", len(locks.locks))
	}
}
