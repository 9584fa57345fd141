package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studyspace/internal/application"
	"github.com/example/studyspace/internal/persistence"
	"github.com/example/studyspace/internal/persistence/memory"
)

func TestRepositories_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	created := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	repos := New(memory.Open(), func() time.Time { return created })

	_, err := repos.Resources.UpsertResource(ctx, application.Resource{ID: "lab-a", Name: "Lab A", Capacity: 2, QuietZone: true, Active: true})
	require.NoError(t, err)

	resources, err := repos.Resources.ListResources(ctx, true)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.True(t, resources[0].QuietZone)

	note := "group study"
	start := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	stored, err := repos.Reservations.CreateReservation(ctx, application.Reservation{
		ID: "r1", UserID: "u1", ResourceID: "lab-a",
		Start: start, End: start.Add(time.Hour),
		Status: application.ReservationActive, Note: &note,
		CreatedAt: created, UpdatedAt: created,
	}, 2)
	require.NoError(t, err)
	require.NotNil(t, stored.Note)
	assert.Equal(t, "group study", *stored.Note)

	require.NoError(t, repos.Reservations.SetReservationStatus(ctx, "r1", application.ReservationCancelled, created))
	list, err := repos.Reservations.ListReservations(ctx, application.ReservationRepositoryFilter{
		UserID:   "u1",
		Statuses: []application.ReservationStatus{application.ReservationCancelled},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, application.ReservationCancelled, list[0].Status)

	session, err := repos.Sessions.CreateSession(ctx, application.UsageSession{ID: "s1", UserID: "u1", ResourceID: "lab-a", EnteredAt: start})
	require.NoError(t, err)
	assert.True(t, session.Open())

	exited, score := start.Add(time.Hour), 8
	session.ExitedAt, session.Score = &exited, &score
	closed, err := repos.Sessions.CloseSession(ctx, session)
	require.NoError(t, err)
	assert.False(t, closed.Open())
	assert.Equal(t, 8, *closed.Score)
}

func TestRepositories_PassPersistenceErrorsThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repos := New(memory.Open(), nil)

	_, err := repos.Reservations.GetReservation(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	_, err = repos.Sessions.GetOpenSession(ctx, "nobody")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}
