package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ValidationError{Kind: ErrInvalidWindow}, "invalid_window"},
		{&ValidationError{Kind: ErrInvalidScore}, "invalid_score"},
		{&ValidationError{FieldErrors: map[string]string{"status": "unknown"}}, "validation"},
		{&ConflictError{Kind: ErrUserDoubleBooked}, "user_double_booked"},
		{&ConflictError{Kind: ErrCapacityExceeded}, "capacity_exceeded"},
		{fmt.Errorf("lookup: %w", ErrNotFound), "not_found"},
		{ErrNotOwner, "not_owner"},
		{ErrAlreadyOpen, "already_open"},
		{ErrNotOpen, "not_open"},
		{ErrUnavailable, "unavailable"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

type recordingHandler struct {
	attrs []slog.Attr
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *recordingHandler) Handle(context.Context, slog.Record) error {
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.attrs = append(h.attrs, attrs...)
	return h
}

func (h *recordingHandler) WithGroup(string) slog.Handler {
	return h
}

func TestServiceLogger_AddsServiceAttributes(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	serviceLogger(context.Background(), slog.New(handler), "ReservationService", "CreateReservation", "user_id", "u1")

	got := map[string]string{}
	for _, attr := range handler.attrs {
		got[attr.Key] = attr.Value.String()
	}
	if got["service"] != "ReservationService" || got["operation"] != "CreateReservation" || got["user_id"] != "u1" {
		t.Fatalf("unexpected attributes: %v", got)
	}
}
