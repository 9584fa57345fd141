package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studyspace/internal/application"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireUser(t *testing.T) {
	t.Parallel()

	var seen string
	handler := RequireUser(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
		want   string
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "blank header", header: "   ", status: http.StatusUnauthorized},
		{name: "trimmed identity", header: " u-42 ", status: http.StatusNoContent, want: "u-42"},
	}
	for _, tc := range tests {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/resources", nil)
		if tc.header != "" {
			req.Header.Set(UserIDHeader, tc.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, tc.status, rec.Code, tc.name)
		assert.Equal(t, tc.want, seen, tc.name)
		if tc.status == http.StatusUnauthorized {
			assert.Contains(t, rec.Body.String(), `"error_code":"UNAUTHENTICATED"`)
		}
	}
}

func TestRequestLogger_AttachesRequestScopedLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, LoggerFromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions", nil))

	out := buf.String()
	assert.Contains(t, out, `"request_id":1`)
	assert.Contains(t, out, `"path":"/sessions"`)
	assert.Contains(t, out, `"status":418`)
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	t.Run("limits each caller independently", func(t *testing.T) {
		t.Parallel()
		limiter := NewRateLimiter(0.001, 2, discardLogger())
		handler := limiter.Middleware(okHandler())

		hit := func(user, addr string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, "/resources", nil)
			req.RemoteAddr = addr
			if user != "" {
				req.Header.Set(UserIDHeader, user)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			return rec
		}

		assert.Equal(t, http.StatusNoContent, hit("u1", "10.0.0.1:1000").Code)
		assert.Equal(t, http.StatusNoContent, hit("u1", "10.0.0.1:1000").Code)
		limited := hit("u1", "10.0.0.1:1000")
		assert.Equal(t, http.StatusTooManyRequests, limited.Code)
		assert.Equal(t, "1", limited.Header().Get("Retry-After"))
		assert.Contains(t, limited.Body.String(), "RATE_LIMITED")

		assert.Equal(t, http.StatusNoContent, hit("u2", "10.0.0.1:1000").Code)
		assert.Equal(t, http.StatusNoContent, hit("", "[::1]:2000").Code)
	})

	t.Run("disabled when rate is zero", func(t *testing.T) {
		t.Parallel()
		handler := NewRateLimiter(0, 1, nil).Middleware(okHandler())
		for i := 0; i < 5; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusNoContent, rec.Code)
		}
	})

	t.Run("prunes idle callers", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		limiter := NewRateLimiter(1, 1, nil)
		limiter.now = func() time.Time { return now }

		limiter.limiterFor("u1")
		now = now.Add(2 * time.Minute)
		limiter.limiterFor("u2")
		now = now.Add(2 * time.Minute)

		assert.Equal(t, 1, limiter.Prune())
		assert.Len(t, limiter.visitors, 1)
		assert.Contains(t, limiter.visitors, "u2")
	})
}

func TestResponder_HandleServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: &application.ValidationError{Kind: application.ErrInvalidWindow, FieldErrors: map[string]string{"end": "x"}}, status: http.StatusUnprocessableEntity, code: "INVALID_WINDOW"},
		{err: &application.ValidationError{Kind: application.ErrInvalidScore}, status: http.StatusUnprocessableEntity, code: "INVALID_SCORE"},
		{err: &application.ConflictError{Kind: application.ErrUserDoubleBooked, ReservationIDs: []string{"r1"}}, status: http.StatusConflict, code: "USER_DOUBLE_BOOKED"},
		{err: fmt.Errorf("%w: session s1", application.ErrAlreadyOpen), status: http.StatusConflict, code: "SESSION_ALREADY_OPEN"},
		{err: application.ErrNotOpen, status: http.StatusConflict, code: "SESSION_NOT_OPEN"},
		{err: application.ErrNotFound, status: http.StatusNotFound, code: "NOT_FOUND"},
		{err: application.ErrNotOwner, status: http.StatusForbidden, code: "NOT_OWNER"},
		{err: fmt.Errorf("%w: store contended", application.ErrUnavailable), status: http.StatusServiceUnavailable, code: "UNAVAILABLE"},
		{err: &application.ValidationError{FieldErrors: map[string]string{"status": "bad"}}, status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{err: errors.New("disk on fire"), status: http.StatusInternalServerError, code: "INTERNAL"},
	}

	r := newResponder(discardLogger())
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		r.handleServiceError(req.Context(), rec, tc.err)

		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Contains(t, rec.Body.String(), fmt.Sprintf(`"error_code":%q`, tc.code))
		if tc.status == http.StatusServiceUnavailable {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		}
		if tc.status == http.StatusInternalServerError {
			assert.False(t, strings.Contains(rec.Body.String(), "disk on fire"), "internal detail leaked")
		}
	}
}
