package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/example/studyspace/internal/persistence"
)

// ResourceRepository captures the persistence operations needed by the service.
type ResourceRepository interface {
	UpsertResource(ctx context.Context, resource Resource) (Resource, error)
	GetResource(ctx context.Context, id string) (Resource, error)
	ListResources(ctx context.Context, activeOnly bool) ([]Resource, error)
}

// ResourceQuery narrows ListResources by amenities. Zero values match everything.
type ResourceQuery struct {
	Type        string
	PowerOutlet bool
	QuietZone   bool
	MinCapacity int
}

// ResourceService serves the resource catalog. It satisfies ResourceCatalog.
type ResourceService struct {
	resources ResourceRepository
	logger    *slog.Logger
}

// NewResourceService constructs a resource service.
func NewResourceService(resources ResourceRepository) *ResourceService {
	return NewResourceServiceWithLogger(resources, nil)
}

// NewResourceServiceWithLogger constructs a resource service with a specified logger.
func NewResourceServiceWithLogger(resources ResourceRepository, logger *slog.Logger) *ResourceService {
	return &ResourceService{resources: resources, logger: defaultLogger(logger)}
}

func (s *ResourceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ResourceService", operation, attrs...)
}

// GetResource returns a resource by ID, active or not.
func (s *ResourceService) GetResource(ctx context.Context, id string) (Resource, error) {
	if s == nil {
		return Resource{}, fmt.Errorf("ResourceService is nil")
	}
	resource, err := s.resources.GetResource(ctx, id)
	if err != nil {
		return Resource{}, mapResourceRepoError(err)
	}
	return resource, nil
}

// ListActiveResources returns every active resource ordered by name.
func (s *ResourceService) ListActiveResources(ctx context.Context) ([]Resource, error) {
	return s.ListResources(ctx, ResourceQuery{})
}

// ListResources returns the active resources matching the query, ordered by name.
func (s *ResourceService) ListResources(ctx context.Context, query ResourceQuery) (resources []Resource, err error) {
	if s == nil {
		err = fmt.Errorf("ResourceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListResources")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list resources", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(resources)).DebugContext(ctx, "resources listed")
	}()

	var raw []Resource
	raw, err = s.resources.ListResources(ctx, true)
	if err != nil {
		err = mapResourceRepoError(err)
		return
	}

	resources = make([]Resource, 0, len(raw))
	for _, resource := range raw {
		if query.matches(resource) {
			resources = append(resources, resource)
		}
	}
	sort.Slice(resources, func(i, j int) bool {
		if strings.EqualFold(resources[i].Name, resources[j].Name) {
			return resources[i].ID < resources[j].ID
		}
		return strings.ToLower(resources[i].Name) < strings.ToLower(resources[j].Name)
	})
	return resources, nil
}

// UpsertResources validates and stores catalog entries, returning how many were written.
func (s *ResourceService) UpsertResources(ctx context.Context, resources []Resource) (written int, err error) {
	if s == nil {
		err = fmt.Errorf("ResourceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpsertResources", "count", len(resources))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to store resources", "error", err, "error_kind", ErrorKind(err), "written", written)
			return
		}
		logger.InfoContext(ctx, "resources stored", "written", written)
	}()

	vErr := &ValidationError{}
	seen := make(map[string]struct{}, len(resources))
	for i, resource := range resources {
		prefix := fmt.Sprintf("resources[%d]", i)
		vErr.merge(validateResource(prefix, resource))
		if _, dup := seen[resource.ID]; dup {
			vErr.add(prefix+".id", "duplicate id")
		}
		seen[resource.ID] = struct{}{}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	for _, resource := range resources {
		resource.ID = strings.TrimSpace(resource.ID)
		resource.Name = strings.TrimSpace(resource.Name)
		resource.Location = strings.TrimSpace(resource.Location)
		if _, err = s.resources.UpsertResource(ctx, resource); err != nil {
			err = mapResourceRepoError(err)
			return
		}
		written++
	}
	return written, nil
}

func (q ResourceQuery) matches(resource Resource) bool {
	if q.Type != "" && !strings.EqualFold(q.Type, resource.Type) {
		return false
	}
	if q.PowerOutlet && !resource.PowerOutlet {
		return false
	}
	if q.QuietZone && !resource.QuietZone {
		return false
	}
	return resource.Capacity >= q.MinCapacity
}

func validateResource(prefix string, resource Resource) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(resource.ID) == "" {
		vErr.add(prefix+".id", "id is required")
	}
	if strings.TrimSpace(resource.Name) == "" {
		vErr.add(prefix+".name", "name is required")
	}
	if resource.Capacity < 1 {
		vErr.add(prefix+".capacity", "capacity must be at least 1")
	}
	return vErr
}

func mapResourceRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("capacity", "capacity must be at least 1")
		return vErr
	}
	if errors.Is(err, persistence.ErrConflict) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
