package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/example/studyspace/internal/adapters"
	"github.com/example/studyspace/internal/application"
	"github.com/example/studyspace/internal/persistence/memory"
)

// Harness wires every application service over one store with a shared
// controllable clock.
type Harness struct {
	*ServiceFactory

	Store        adapters.Store
	Repositories adapters.Repositories
	Resources    *application.ResourceService
	Reservations *application.ReservationService
	Sessions     *application.SessionService
}

// NewMemoryHarness builds a harness over the in-memory store.
func NewMemoryHarness(tb testing.TB, opts ...ServiceFactoryOption) *Harness {
	tb.Helper()
	return NewHarness(tb, memory.Open(), opts...)
}

// NewSQLiteHarness builds a harness over a migrated temporary SQLite store.
func NewSQLiteHarness(tb testing.TB, opts ...ServiceFactoryOption) *Harness {
	tb.Helper()
	return NewHarness(tb, NewSQLiteStore(tb), opts...)
}

// NewHarness builds a harness over store. Logs are discarded.
func NewHarness(tb testing.TB, store adapters.Store, opts ...ServiceFactoryOption) *Harness {
	tb.Helper()

	factory := NewServiceFactory(opts...)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repos := adapters.New(store, factory.Clock.NowFunc())
	resources := application.NewResourceServiceWithLogger(repos.Resources, logger)

	return &Harness{
		ServiceFactory: factory,
		Store:          store,
		Repositories:   repos,
		Resources:      resources,
		Reservations: factory.NewReservationService(ReservationServiceDeps{
			Catalog:      resources,
			Reservations: repos.Reservations,
			Logger:       logger,
		}),
		Sessions: factory.NewSessionService(SessionServiceDeps{
			Catalog:      resources,
			Sessions:     repos.Sessions,
			Reservations: repos.Reservations,
			Logger:       logger,
		}),
	}
}

// SeedResources stores the fixtures in the catalog.
func (h *Harness) SeedResources(tb testing.TB, fixtures ...ResourceFixture) {
	tb.Helper()
	resources := make([]application.Resource, 0, len(fixtures))
	for _, fixture := range fixtures {
		resources = append(resources, fixture.Application())
	}
	if _, err := h.Resources.UpsertResources(context.Background(), resources); err != nil {
		tb.Fatalf("failed to seed resources: %v", err)
	}
}
