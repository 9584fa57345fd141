package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/studyspace/internal/application"
)

type resourceService interface {
	ListResources(ctx context.Context, query application.ResourceQuery) ([]application.Resource, error)
}

// ResourceHandler serves the study space catalog.
type ResourceHandler struct {
	service   resourceService
	responder responder
	logger    *slog.Logger
}

func NewResourceHandler(service resourceService, logger *slog.Logger) *ResourceHandler {
	base := defaultLogger(logger)
	return &ResourceHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ResourceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ResourceHandler", operation, attrs...)
}

// List handles GET /resources?type=&power_outlet=&quiet_zone=&min_capacity=.
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query, err := parseResourceQuery(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}

	logger := h.log(r.Context(), "List")
	resources, err := h.service.ListResources(r.Context(), query)
	if err != nil {
		logger.ErrorContext(r.Context(), "resource list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(resources)).DebugContext(r.Context(), "resources listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listResourcesResponse{Resources: toResourceDTOs(resources)})
}

func parseResourceQuery(r *http.Request) (application.ResourceQuery, error) {
	values := r.URL.Query()
	query := application.ResourceQuery{Type: strings.TrimSpace(values.Get("type"))}

	var err error
	if query.PowerOutlet, err = parseBoolParam(values.Get("power_outlet")); err != nil {
		return query, errors.New("power_outlet must be true or false")
	}
	if query.QuietZone, err = parseBoolParam(values.Get("quiet_zone")); err != nil {
		return query, errors.New("quiet_zone must be true or false")
	}
	if raw := strings.TrimSpace(values.Get("min_capacity")); raw != "" {
		if query.MinCapacity, err = strconv.Atoi(raw); err != nil || query.MinCapacity < 0 {
			return query, errors.New("min_capacity must be a non-negative integer")
		}
	}
	return query, nil
}

func parseBoolParam(raw string) (bool, error) {
	if strings.TrimSpace(raw) == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

type listResourcesResponse struct {
	Resources []resourceDTO `json:"resources"`
}

type resourceDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Location    string `json:"location,omitempty"`
	Capacity    int    `json:"capacity"`
	Type        string `json:"type,omitempty"`
	PowerOutlet bool   `json:"power_outlet"`
	QuietZone   bool   `json:"quiet_zone"`
}

func toResourceDTOs(resources []application.Resource) []resourceDTO {
	out := make([]resourceDTO, 0, len(resources))
	for _, resource := range resources {
		out = append(out, resourceDTO{
			ID:          resource.ID,
			Name:        resource.Name,
			Location:    resource.Location,
			Capacity:    resource.Capacity,
			Type:        resource.Type,
			PowerOutlet: resource.PowerOutlet,
			QuietZone:   resource.QuietZone,
		})
	}
	return out
}
