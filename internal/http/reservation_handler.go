package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/studyspace/internal/application"
)

// DefaultSuggestionMinutes is used when a free-slot query omits duration.
const DefaultSuggestionMinutes = 120

const dateLayout = "2006-01-02"

type reservationService interface {
	CreateReservation(ctx context.Context, params application.CreateReservationParams) (application.Reservation, error)
	UpdateReservation(ctx context.Context, params application.UpdateReservationParams) (application.Reservation, error)
	CancelReservation(ctx context.Context, reservationID, userID string) (application.Reservation, error)
	ListUserReservations(ctx context.Context, userID string, status application.ReservationStatus) ([]application.Reservation, error)
	ListFreeSlots(ctx context.Context, resourceID string, date time.Time, durationMinutes int) ([]application.FreeSlot, error)
	ListFreeSlotsBatch(ctx context.Context, resourceIDs []string, date time.Time, durationMinutes int) ([]application.FreeSlot, error)
	GetHourlyOccupancy(ctx context.Context, resourceIDs []string, date time.Time) (application.Occupancy, error)
}

// ReservationHandler serves reservations, free-slot suggestions and occupancy.
type ReservationHandler struct {
	service   reservationService
	location  *time.Location
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

// NewReservationHandler builds the handler. Dates in query strings are
// interpreted in location.
func NewReservationHandler(service reservationService, location *time.Location, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &ReservationHandler{
		service:   service,
		location:  location,
		now:       time.Now,
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// Create handles POST /reservations.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	userID, _ := UserIDFromContext(r.Context())

	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "user_id", userID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}
	if err := req.validatePrecision(); err != nil {
		h.log(r.Context(), "Create", "user_id", userID, "error_kind", application.ErrorKind(err)).InfoContext(r.Context(), "sub-second reservation bounds rejected")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "user_id", userID, "resource_id", req.ResourceID)
	reservation, err := h.service.CreateReservation(r.Context(), application.CreateReservationParams{
		UserID:     userID,
		ResourceID: strings.TrimSpace(req.ResourceID),
		Start:      req.Start,
		End:        req.End,
		Note:       req.Note,
	})
	if err != nil {
		logger.InfoContext(r.Context(), "reservation rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation)})
}

// Update handles PUT /reservations/{id}.
func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	reservationID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errMissingPathID)
		return
	}
	userID, _ := UserIDFromContext(r.Context())

	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "user_id", userID, "reservation_id", reservationID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode reservation update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}
	if err := req.validatePrecision(); err != nil {
		h.log(r.Context(), "Update", "user_id", userID, "error_kind", application.ErrorKind(err)).InfoContext(r.Context(), "sub-second reservation bounds rejected")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Update", "user_id", userID, "reservation_id", reservationID)
	reservation, err := h.service.UpdateReservation(r.Context(), application.UpdateReservationParams{
		ReservationID: reservationID,
		UserID:        userID,
		Start:         req.Start,
		End:           req.End,
		Note:          req.Note,
	})
	if err != nil {
		logger.InfoContext(r.Context(), "reservation update rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

// Cancel handles DELETE /reservations/{id}.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	reservationID, ok := PathIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errMissingPathID)
		return
	}
	userID, _ := UserIDFromContext(r.Context())

	logger := h.log(r.Context(), "Cancel", "user_id", userID, "reservation_id", reservationID)
	reservation, err := h.service.CancelReservation(r.Context(), reservationID, userID)
	if err != nil {
		logger.InfoContext(r.Context(), "reservation cancel rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

// List handles GET /reservations?status=.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	userID, _ := UserIDFromContext(r.Context())
	status := application.ReservationStatus(strings.TrimSpace(r.URL.Query().Get("status")))

	logger := h.log(r.Context(), "List", "user_id", userID)
	reservations, err := h.service.ListUserReservations(r.Context(), userID, status)
	if err != nil {
		logger.InfoContext(r.Context(), "reservation list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]reservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		out = append(out, toReservationDTO(reservation))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: out})
}

// FreeSlots handles GET /free-slots?resource=&date=&duration=. A single
// resource is validated individually; none or several fan out over the batch.
func (h *ReservationHandler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	values := r.URL.Query()

	date, err := h.parseDate(values.Get("date"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}
	duration := DefaultSuggestionMinutes
	if raw := strings.TrimSpace(values.Get("duration")); raw != "" {
		if duration, err = strconv.Atoi(raw); err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errors.New("duration must be an integer number of minutes"))
			return
		}
	}
	resourceIDs := splitList(values["resource"])

	logger := h.log(r.Context(), "FreeSlots", "date", date.Format(dateLayout), "duration_minutes", duration)
	var slots []application.FreeSlot
	if len(resourceIDs) == 1 {
		slots, err = h.service.ListFreeSlots(r.Context(), resourceIDs[0], date, duration)
	} else {
		slots, err = h.service.ListFreeSlotsBatch(r.Context(), resourceIDs, date, duration)
	}
	if err != nil {
		logger.InfoContext(r.Context(), "free slot query failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]freeSlotDTO, 0, len(slots))
	for _, slot := range slots {
		out = append(out, freeSlotDTO{
			ResourceID:        slot.ResourceID,
			Start:             slot.Start.In(h.location).Format(time.RFC3339),
			End:               slot.End.In(h.location).Format(time.RFC3339),
			RemainingCapacity: slot.RemainingCapacity,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, freeSlotsResponse{
		Date:            date.Format(dateLayout),
		DurationMinutes: duration,
		Slots:           out,
	})
}

// Occupancy handles GET /occupancy?resource=&date=.
func (h *ReservationHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	values := r.URL.Query()

	date, err := h.parseDate(values.Get("date"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}

	occupancy, err := h.service.GetHourlyOccupancy(r.Context(), splitList(values["resource"]), date)
	if err != nil {
		h.log(r.Context(), "Occupancy").InfoContext(r.Context(), "occupancy query failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, occupancyResponse{Date: date.Format(dateLayout), Occupancy: occupancy})
}

// parseDate reads YYYY-MM-DD in the handler's location; empty means today.
func (h *ReservationHandler) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		now := h.now().In(h.location)
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, h.location), nil
	}
	date, err := time.ParseInLocation(dateLayout, raw, h.location)
	if err != nil {
		return time.Time{}, errors.New("date must use the YYYY-MM-DD layout")
	}
	return date, nil
}

// splitList accepts repeated and comma separated query values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

type reservationRequest struct {
	ResourceID string    `json:"resource_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Note       *string   `json:"note"`
}

// validatePrecision rejects bounds with fractional seconds; reservations are
// stored at one-second resolution.
func (req reservationRequest) validatePrecision() error {
	fields := map[string]string{}
	if req.Start.Nanosecond() != 0 {
		fields["start"] = "start must be a whole second"
	}
	if req.End.Nanosecond() != 0 {
		fields["end"] = "end must be a whole second"
	}
	if len(fields) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: fields}
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type reservationDTO struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	ResourceID string  `json:"resource_id"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Status     string  `json:"status"`
	Note       *string `json:"note,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

func toReservationDTO(reservation application.Reservation) reservationDTO {
	return reservationDTO{
		ID:         reservation.ID,
		UserID:     reservation.UserID,
		ResourceID: reservation.ResourceID,
		Start:      reservation.Start.Format(time.RFC3339),
		End:        reservation.End.Format(time.RFC3339),
		Status:     string(reservation.Status),
		Note:       reservation.Note,
		CreatedAt:  reservation.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  reservation.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type freeSlotsResponse struct {
	Date            string        `json:"date"`
	DurationMinutes int           `json:"duration_minutes"`
	Slots           []freeSlotDTO `json:"slots"`
}

type freeSlotDTO struct {
	ResourceID        string `json:"resource_id"`
	Start             string `json:"start"`
	End               string `json:"end"`
	RemainingCapacity int    `json:"remaining_capacity"`
}

type occupancyResponse struct {
	Date      string                `json:"date"`
	Occupancy application.Occupancy `json:"occupancy"`
}
