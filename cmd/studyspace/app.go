package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/studyspace/internal/adapters"
	"github.com/example/studyspace/internal/application"
	"github.com/example/studyspace/internal/catalog"
	"github.com/example/studyspace/internal/config"
	"github.com/example/studyspace/internal/persistence/memory"
	"github.com/example/studyspace/internal/persistence/sqlite"
	"github.com/example/studyspace/internal/persistence/sqlite/migration"
)

// app wires the store and services selected by the configuration.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  adapters.Store
	close  func() error

	resources    *application.ResourceService
	reservations *application.ReservationService
	sessions     *application.SessionService
}

// openApp opens and migrates the configured store, then builds the services.
// The reservation index is not loaded; call rebuild before admitting.
func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	now := time.Now
	idGenerator := uuid.NewString
	repos := adapters.New(store, now)
	policy := cfg.Policy()

	resources := application.NewResourceServiceWithLogger(repos.Resources, logger)
	return &app{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		close:        closeStore,
		resources:    resources,
		reservations: application.NewReservationServiceWithLogger(resources, repos.Reservations, policy, idGenerator, now, logger),
		sessions:     application.NewSessionServiceWithLogger(resources, repos.Sessions, repos.Reservations, policy, idGenerator, now, logger),
	}, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (adapters.Store, func() error, error) {
	if cfg.Store == config.StoreMemory {
		logger.WarnContext(ctx, "using in-memory store; data is lost on exit")
		return memory.Open(), func() error { return nil }, nil
	}

	store, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	applied, err := store.Migrate(ctx)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.InfoContext(ctx, "storage ready", "dsn", cfg.SQLiteDSN, "migrations_applied", applied)
	return store, store.Close, nil
}

// seed loads the catalog file into the store and returns how many resources
// were written.
func (a *app) seed(ctx context.Context, path string) (int, error) {
	resources, err := catalog.LoadFile(path)
	if err != nil {
		return 0, err
	}
	return a.resources.UpsertResources(ctx, resources)
}

func (a *app) shutdown() {
	if err := a.close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}
