package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/studyspace/internal/persistence"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ResourceRepository implements persistence.ResourceRepository using SQLite
type ResourceRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewResourceRepository creates a new SQLite resource repository
func NewResourceRepository(pool *ConnectionPool) *ResourceRepository {
	return &ResourceRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const resourceColumns = `id, name, location, capacity, type, power_outlet, quiet_zone, active, created_at, updated_at`

// UpsertResource inserts a resource or replaces its mutable fields, keeping created_at.
func (r *ResourceRepository) UpsertResource(ctx context.Context, resource persistence.Resource) error {
	if resource.ID == "" || resource.Capacity < 1 {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = now
	}
	if resource.UpdatedAt.IsZero() {
		resource.UpdatedAt = now
	}

	query := `
		INSERT INTO resources (` + resourceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			location = excluded.location,
			capacity = excluded.capacity,
			type = excluded.type,
			power_outlet = excluded.power_outlet,
			quiet_zone = excluded.quiet_zone,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	_, err := r.helper.Exec(ctx, query,
		resource.ID,
		resource.Name,
		resource.Location,
		resource.Capacity,
		resource.Type,
		boolToInt(resource.PowerOutlet),
		boolToInt(resource.QuietZone),
		boolToInt(resource.Active),
		formatTime(resource.CreatedAt),
		formatTime(resource.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetResource retrieves a resource by ID
func (r *ResourceRepository) GetResource(ctx context.Context, id string) (persistence.Resource, error) {
	if id == "" {
		return persistence.Resource{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	resource, err := scanResource(row)
	if err != nil {
		return persistence.Resource{}, r.mapper.MapError(err)
	}
	return resource, nil
}

// ListResources returns resources ordered by name then ID
func (r *ResourceRepository) ListResources(ctx context.Context, filter persistence.ResourceFilter) ([]persistence.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources`
	var conditions []string
	var args []any

	if filter.ActiveOnly {
		conditions = append(conditions, "active = 1")
	}
	if len(filter.IDs) > 0 {
		placeholders := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		conditions = append(conditions, fmt.Sprintf("id IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var resources []persistence.Resource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return resources, nil
}

func scanResource(row rowScanner) (persistence.Resource, error) {
	var resource persistence.Resource
	var powerOutlet, quietZone, active int
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&resource.ID,
		&resource.Name,
		&resource.Location,
		&resource.Capacity,
		&resource.Type,
		&powerOutlet,
		&quietZone,
		&active,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Resource{}, err
	}

	resource.PowerOutlet = powerOutlet != 0
	resource.QuietZone = quietZone != 0
	resource.Active = active != 0

	if resource.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.Resource{}, err
	}
	if resource.UpdatedAt, err = parseTime("updated_at", updatedAtStr); err != nil {
		return persistence.Resource{}, err
	}
	return resource, nil
}
