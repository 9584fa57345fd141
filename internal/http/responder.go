package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/studyspace/internal/application"
)

// retryAfterSeconds is advertised when the store is contended.
const retryAfterSeconds = 1

var (
	errBadRequestBody = errors.New("request body is not valid JSON")
	errMissingPathID  = errors.New("identifier is missing from the path")
	errMissingUserID  = errors.New("X-User-ID header is required")
	errRateLimited    = errors.New("too many requests")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError reports a transport-level failure such as a malformed request.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

// handleServiceError maps application errors onto status codes and stable
// error codes.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", errors.New("unknown error"))
		return
	}

	kind := application.ErrorKind(err)
	status, code := statusFor(kind)
	body := errorResponse{ErrorCode: code, Message: err.Error()}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) && len(vErr.FieldErrors) > 0 {
		body.Errors = vErr.FieldErrors
	}
	var conflict *application.ConflictError
	if errors.As(err, &conflict) {
		body.Conflicts = conflict.ReservationIDs
	}

	switch status {
	case http.StatusInternalServerError:
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err)
		body.Message = http.StatusText(status)
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	r.writeJSON(ctx, w, status, body)
}

func statusFor(kind string) (int, string) {
	switch kind {
	case "invalid_window":
		return http.StatusUnprocessableEntity, "INVALID_WINDOW"
	case "invalid_score":
		return http.StatusUnprocessableEntity, "INVALID_SCORE"
	case "user_double_booked":
		return http.StatusConflict, "USER_DOUBLE_BOOKED"
	case "capacity_exceeded":
		return http.StatusConflict, "CAPACITY_EXCEEDED"
	case "already_open":
		return http.StatusConflict, "SESSION_ALREADY_OPEN"
	case "not_open":
		return http.StatusConflict, "SESSION_NOT_OPEN"
	case "not_found":
		return http.StatusNotFound, "NOT_FOUND"
	case "not_owner":
		return http.StatusForbidden, "NOT_OWNER"
	case "unavailable":
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	case "validation":
		return http.StatusBadRequest, "BAD_REQUEST"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []string          `json:"conflicting_reservation_ids,omitempty"`
}
