package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studyspace/internal/testfixtures"
)

const testDate = "2026-03-02"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAPI(t *testing.T) (*testfixtures.Harness, http.Handler) {
	t.Helper()
	h := testfixtures.NewMemoryHarness(t)
	h.SeedResources(t,
		testfixtures.NewResourceFixture(testfixtures.WithResourceID("lab-a"), testfixtures.WithResourceName("Lab A"), testfixtures.WithResourceCapacity(2), testfixtures.WithResourceType("lab")),
		testfixtures.NewResourceFixture(testfixtures.WithResourceID("lab-b"), testfixtures.WithResourceName("Lab B"), testfixtures.WithResourceAmenities(true, true)),
	)

	logger := discardLogger()
	reservations := NewReservationHandler(h.Reservations, nil, logger)
	reservations.now = h.Clock.NowFunc()

	router := NewRouter(RouterConfig{
		Resources:    NewResourceHandler(h.Resources, logger),
		Reservations: reservations,
		Sessions:     NewSessionHandler(h.Sessions, logger),
		Middleware:   []func(http.Handler) http.Handler{RequestLogger(logger), RequireUser(logger)},
	})
	return h, router
}

func call(t *testing.T, handler http.Handler, method, target, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			reader = bytes.NewBufferString(raw)
		} else {
			payload, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(payload)
		}
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func booking(resourceID, start, end string) map[string]string {
	return map[string]string{
		"resource_id": resourceID,
		"start":       testDate + "T" + start + ":00Z",
		"end":         testDate + "T" + end + ":00Z",
	}
}

func TestReservationHandlers(t *testing.T) {
	t.Parallel()

	t.Run("admits until capacity and names the conflicts", func(t *testing.T) {
		t.Parallel()
		_, api := newTestAPI(t)

		first := call(t, api, http.MethodPost, "/reservations", "u1", booking("lab-a", "09:00", "10:00"))
		require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
		created := decode[reservationResponse](t, first)
		assert.Equal(t, "active", created.Reservation.Status)

		second := call(t, api, http.MethodPost, "/reservations", "u2", booking("lab-a", "09:30", "10:30"))
		require.Equal(t, http.StatusCreated, second.Code)

		third := call(t, api, http.MethodPost, "/reservations", "u3", booking("lab-a", "09:45", "10:15"))
		require.Equal(t, http.StatusConflict, third.Code)
		body := decode[errorResponse](t, third)
		assert.Equal(t, "CAPACITY_EXCEEDED", body.ErrorCode)
		assert.Len(t, body.Conflicts, 2)
	})

	t.Run("rejects double booking across resources", func(t *testing.T) {
		t.Parallel()
		_, api := newTestAPI(t)

		require.Equal(t, http.StatusCreated, call(t, api, http.MethodPost, "/reservations", "u1", booking("lab-a", "14:00", "15:00")).Code)
		rec := call(t, api, http.MethodPost, "/reservations", "u1", booking("lab-b", "14:30", "15:30"))
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "USER_DOUBLE_BOOKED", decode[errorResponse](t, rec).ErrorCode)
	})

	t.Run("maps validation failures", func(t *testing.T) {
		t.Parallel()
		_, api := newTestAPI(t)

		rec := call(t, api, http.MethodPost, "/reservations", "u1", booking("lab-a", "11:00", "10:00"))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decode[errorResponse](t, rec)
		assert.Equal(t, "INVALID_WINDOW", body.ErrorCode)
		assert.NotEmpty(t, body.Errors)

		rec = call(t, api, http.MethodPost, "/reservations", "u1", `{"resource_id":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = call(t, api, http.MethodPost, "/reservations", "u1", booking("nowhere", "09:00", "10:00"))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = call(t, api, http.MethodGet, "/reservations?status=pending", "u1", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects fractional-second bounds", func(t *testing.T) {
		t.Parallel()
		_, api := newTestAPI(t)

		req := booking("lab-a", "09:00", "10:00")
		req["start"] = testDate + "T09:00:00.250Z"
		rec := call(t, api, http.MethodPost, "/reservations", "u1", req)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		body := decode[errorResponse](t, rec)
		assert.Equal(t, "BAD_REQUEST", body.ErrorCode)
		assert.Contains(t, body.Errors, "start")
		assert.NotContains(t, body.Errors, "end")

		req = booking("lab-a", "09:00", "10:00")
		req["start"] = testDate + "T09:00:00.000Z"
		created := call(t, api, http.MethodPost, "/reservations", "u1", req)
		require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
		id := decode[reservationResponse](t, created).Reservation.ID

		move := booking("lab-a", "11:00", "12:00")
		move["end"] = testDate + "T12:00:00.5Z"
		rec = call(t, api, http.MethodPut, "/reservations/"+id, "u1", move)
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Contains(t, decode[errorResponse](t, rec).Errors, "end")
	})

	t.Run("update and cancel enforce ownership", func(t *testing.T) {
		t.Parallel()
		_, api := newTestAPI(t)

		created := decode[reservationResponse](t, call(t, api, http.MethodPost, "/reservations", "u1", booking("lab-b", "09:00", "10:00")))
		path := "/reservations/" + created.Reservation.ID

		assert.Equal(t, http.StatusForbidden, call(t, api, http.MethodDelete, path, "u2", nil).Code)
		assert.Equal(t, http.StatusNotFound, call(t, api, http.MethodDelete, "/reservations/missing", "u1", nil).Code)

		moved := call(t, api, http.MethodPut, path, "u1", booking("lab-b", "10:00", "11:00"))
		require.Equal(t, http.StatusOK, moved.Code, moved.Body.String())
		assert.Equal(t, testDate+"T10:00:00Z", decode[reservationResponse](t, moved).Reservation.Start)

		for i := 0; i < 2; i++ {
			rec := call(t, api, http.MethodDelete, path, "u1", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "cancelled", decode[reservationResponse](t, rec).Reservation.Status)
		}

		list := decode[listReservationsResponse](t, call(t, api, http.MethodGet, "/reservations?status=cancelled", "u1", nil))
		assert.Len(t, list.Reservations, 1)
		assert.Equal(t, http.StatusMethodNotAllowed, call(t, api, http.MethodPatch, path, "u1", nil).Code)
	})

	t.Run("free slots default to two hours", func(t *testing.T) {
		t.Parallel()
		_, api := newTestAPI(t)

		require.Equal(t, http.StatusCreated, call(t, api, http.MethodPost, "/reservations", "u1", booking("lab-b", "09:00", "10:30")).Code)

		rec := call(t, api, http.MethodGet, "/free-slots?resource=lab-b&date="+testDate, "u1", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode[freeSlotsResponse](t, rec)
		assert.Equal(t, DefaultSuggestionMinutes, body.DurationMinutes)
		require.Len(t, body.Slots, 1)
		assert.Equal(t, testDate+"T10:30:00Z", body.Slots[0].Start)

		batch := decode[freeSlotsResponse](t, call(t, api, http.MethodGet, "/free-slots?resource=lab-a,lab-b&duration=60&date="+testDate, "u1", nil))
		assert.Len(t, batch.Slots, 3)

		assert.Equal(t, http.StatusBadRequest, call(t, api, http.MethodGet, "/free-slots?date=03/02/2026", "u1", nil).Code)
		assert.Equal(t, http.StatusBadRequest, call(t, api, http.MethodGet, "/free-slots?duration=long", "u1", nil).Code)
		assert.Equal(t, http.StatusUnprocessableEntity, call(t, api, http.MethodGet, "/free-slots?resource=lab-a&duration=0", "u1", nil).Code)
	})

	t.Run("occupancy counts per hour", func(t *testing.T) {
		t.Parallel()
		_, api := newTestAPI(t)

		require.Equal(t, http.StatusCreated, call(t, api, http.MethodPost, "/reservations", "u1", booking("lab-a", "09:00", "10:00")).Code)
		require.Equal(t, http.StatusCreated, call(t, api, http.MethodPost, "/reservations", "u2", booking("lab-a", "09:30", "11:00")).Code)

		rec := call(t, api, http.MethodGet, "/occupancy?resource=lab-a&date="+testDate, "u1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Occupancy map[string]map[string]int `json:"occupancy"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 2, body.Occupancy["lab-a"]["9"])
		assert.Equal(t, 1, body.Occupancy["lab-a"]["10"])
		assert.Equal(t, 0, body.Occupancy["lab-a"]["11"])
	})
}

func TestSessionHandlers(t *testing.T) {
	t.Parallel()
	h, api := newTestAPI(t)

	started := call(t, api, http.MethodPost, "/sessions", "u1", map[string]string{"resource_id": "lab-a"})
	require.Equal(t, http.StatusCreated, started.Code, started.Body.String())
	session := decode[sessionResponse](t, started).Session

	again := call(t, api, http.MethodPost, "/sessions", "u1", map[string]string{"resource_id": "lab-b"})
	require.Equal(t, http.StatusConflict, again.Code)
	assert.Equal(t, "SESSION_ALREADY_OPEN", decode[errorResponse](t, again).ErrorCode)

	active := call(t, api, http.MethodGet, "/sessions/active", "u1", nil)
	require.Equal(t, http.StatusOK, active.Code)
	assert.Equal(t, session.ID, decode[sessionResponse](t, active).Session.ID)
	assert.Equal(t, http.StatusNotFound, call(t, api, http.MethodGet, "/sessions/active", "u2", nil).Code)

	stopPath := "/sessions/" + session.ID + "/stop"
	bad := call(t, api, http.MethodPost, stopPath, "u1", map[string]int{"score": 0})
	require.Equal(t, http.StatusUnprocessableEntity, bad.Code)
	assert.Equal(t, "INVALID_SCORE", decode[errorResponse](t, bad).ErrorCode)

	assert.Equal(t, http.StatusNotFound, call(t, api, http.MethodPost, stopPath, "u2", map[string]int{"score": 5}).Code)

	h.Clock.Advance(testfixtures.At(9, 0).Sub(testfixtures.At(7, 30)))
	stopped := call(t, api, http.MethodPost, stopPath, "u1", map[string]int{"score": 9})
	require.Equal(t, http.StatusOK, stopped.Code, stopped.Body.String())
	require.NotNil(t, decode[sessionResponse](t, stopped).Session.ExitedAt)

	closed := call(t, api, http.MethodPost, stopPath, "u1", map[string]int{"score": 9})
	assert.Equal(t, http.StatusConflict, closed.Code)
	assert.Equal(t, "SESSION_NOT_OPEN", decode[errorResponse](t, closed).ErrorCode)

	assert.Equal(t, http.StatusNotFound, call(t, api, http.MethodPost, "/sessions/"+session.ID+"/pause", "u1", nil).Code)
	assert.Equal(t, http.StatusNotFound, call(t, api, http.MethodGet, "/sessions/active", "u1", nil).Code)

	list := decode[listSessionsResponse](t, call(t, api, http.MethodGet, "/sessions", "u1", nil))
	assert.Len(t, list.Sessions, 1)

	summary := decode[summaryDTO](t, call(t, api, http.MethodGet, "/me/summary", "u1", nil))
	assert.Equal(t, 1, summary.TotalSessions)
	assert.InDelta(t, 9.0, summary.AverageScore, 1e-9)
	assert.InDelta(t, 1.5, summary.TotalHours, 1e-9)
}

func TestResourceHandlers(t *testing.T) {
	t.Parallel()
	_, api := newTestAPI(t)

	all := decode[listResourcesResponse](t, call(t, api, http.MethodGet, "/resources", "u1", nil))
	assert.Len(t, all.Resources, 2)

	quiet := decode[listResourcesResponse](t, call(t, api, http.MethodGet, "/resources?quiet_zone=true", "u1", nil))
	require.Len(t, quiet.Resources, 1)
	assert.Equal(t, "lab-b", quiet.Resources[0].ID)

	assert.Equal(t, http.StatusBadRequest, call(t, api, http.MethodGet, "/resources?min_capacity=-1", "u1", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, call(t, api, http.MethodPost, "/resources", "u1", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, api, http.MethodGet, "/resources", "", nil).Code)
}
