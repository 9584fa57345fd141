package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/studyspace/internal/application"
)

type sessionService interface {
	StartSession(ctx context.Context, userID, resourceID string) (application.UsageSession, error)
	StopSession(ctx context.Context, params application.StopSessionParams) (application.UsageSession, error)
	ActiveSession(ctx context.Context, userID string) (application.UsageSession, error)
	ListUserSessions(ctx context.Context, userID string) ([]application.UsageSession, error)
	UserSummary(ctx context.Context, userID string) (application.UserSummary, error)
}

// SessionHandler serves usage sessions and the caller's summary.
type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

func (h *SessionHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// Start handles POST /sessions.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	userID, _ := UserIDFromContext(r.Context())

	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Start", "user_id", userID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode session request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Start", "user_id", userID, "resource_id", req.ResourceID)
	session, err := h.service.StartSession(r.Context(), userID, strings.TrimSpace(req.ResourceID))
	if err != nil {
		logger.InfoContext(r.Context(), "session start rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sessionResponse{Session: toSessionDTO(session)})
}

// Stop handles POST /sessions/{id}/stop.
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	sessionID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errMissingPathID)
		return
	}
	userID, _ := UserIDFromContext(r.Context())

	var req stopSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Stop", "user_id", userID, "session_id", sessionID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode stop request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Stop", "user_id", userID, "session_id", sessionID)
	session, err := h.service.StopSession(r.Context(), application.StopSessionParams{
		SessionID: sessionID,
		UserID:    userID,
		Score:     req.Score,
		Note:      req.Note,
	})
	if err != nil {
		logger.InfoContext(r.Context(), "session stop rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// List handles GET /sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	userID, _ := UserIDFromContext(r.Context())

	sessions, err := h.service.ListUserSessions(r.Context(), userID)
	if err != nil {
		h.log(r.Context(), "List", "user_id", userID).InfoContext(r.Context(), "session list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]sessionDTO, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, toSessionDTO(session))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: out})
}

// Active handles GET /sessions/active; 404 when the caller has no open session.
func (h *SessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	userID, _ := UserIDFromContext(r.Context())

	session, err := h.service.ActiveSession(r.Context(), userID)
	if err != nil {
		h.log(r.Context(), "Active", "user_id", userID).DebugContext(r.Context(), "no open session", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// Summary handles GET /me/summary.
func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	userID, _ := UserIDFromContext(r.Context())

	summary, err := h.service.UserSummary(r.Context(), userID)
	if err != nil {
		h.log(r.Context(), "Summary", "user_id", userID).InfoContext(r.Context(), "summary failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, summaryDTO{
		UserID:             summary.UserID,
		TotalReservations:  summary.TotalReservations,
		ActiveReservations: summary.ActiveReservations,
		TotalSessions:      summary.TotalSessions,
		TotalHours:         summary.TotalHours,
		AverageScore:       summary.AverageScore,
	})
}

type startSessionRequest struct {
	ResourceID string `json:"resource_id"`
}

type stopSessionRequest struct {
	Score int     `json:"score"`
	Note  *string `json:"note"`
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type listSessionsResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}

type sessionDTO struct {
	ID         string  `json:"id"`
	ResourceID string  `json:"resource_id"`
	EnteredAt  string  `json:"entered_at"`
	ExitedAt   *string `json:"exited_at,omitempty"`
	Score      *int    `json:"score,omitempty"`
	Note       *string `json:"note,omitempty"`
}

func toSessionDTO(session application.UsageSession) sessionDTO {
	dto := sessionDTO{
		ID:         session.ID,
		ResourceID: session.ResourceID,
		EnteredAt:  session.EnteredAt.Format(time.RFC3339),
		Score:      session.Score,
		Note:       session.Note,
	}
	if session.ExitedAt != nil {
		exited := session.ExitedAt.Format(time.RFC3339)
		dto.ExitedAt = &exited
	}
	return dto
}

type summaryDTO struct {
	UserID             string  `json:"user_id"`
	TotalReservations  int     `json:"total_reservations"`
	ActiveReservations int     `json:"active_reservations"`
	TotalSessions      int     `json:"total_sessions"`
	TotalHours         float64 `json:"total_hours"`
	AverageScore       float64 `json:"average_score"`
}
