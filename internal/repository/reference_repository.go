package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/activmap/activmap-api/internal/models"
)

// ErrDuplicateKey signals a natural-key unique constraint violation.
var ErrDuplicateKey = errors.New("duplicate key")

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// ReferenceRepository resolves Location, Tag, and Organization rows by
// natural key. Resolution is insert-or-reread against the unique
// constraints, so it stays correct under concurrent callers.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs the repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// ResolveLocation returns the canonical location row for the triple,
// creating it when absent. All-blank input is a valid no-op returning nil.
func (r *ReferenceRepository) ResolveLocation(ctx context.Context, city, state, country string) (*models.Location, error) {
	return resolveLocation(ctx, r.db, city, state, country)
}

// ResolveTag returns the canonical tag row for the name, creating it when
// absent. The name is trimmed; an empty result is a validation error.
func (r *ReferenceRepository) ResolveTag(ctx context.Context, name string) (*models.Tag, error) {
	return resolveTag(ctx, r.db, name)
}

// ResolveOrganization behaves like ResolveTag for organizations.
func (r *ReferenceRepository) ResolveOrganization(ctx context.Context, name string) (*models.Organization, error) {
	return resolveOrganization(ctx, r.db, name)
}

// GetCategory fetches a category by id.
func (r *ReferenceRepository) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	const query = `SELECT id, name FROM categories WHERE id = $1`
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateCategory inserts a new category. Duplicate names surface as
// ErrDuplicateKey.
func (r *ReferenceRepository) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	category := models.Category{ID: uuid.NewString(), Name: strings.TrimSpace(name)}
	const query = `INSERT INTO categories (id, name) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, category.ID, category.Name); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &category, nil
}

// ListCategories returns all categories ordered by name.
func (r *ReferenceRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	const query = `SELECT id, name FROM categories ORDER BY name`
	var categories []models.Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// CreateLocation inserts a new city/state/country combination. The exact
// combination is unique; an existing one surfaces as ErrDuplicateKey.
func (r *ReferenceRepository) CreateLocation(ctx context.Context, city, state, country string) (*models.Location, error) {
	location := models.Location{
		ID:      uuid.NewString(),
		City:    strings.TrimSpace(city),
		State:   strings.TrimSpace(state),
		Country: strings.TrimSpace(country),
	}
	const query = `INSERT INTO locations (id, city, state, country) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, location.ID, location.City, location.State, location.Country); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("create location: %w", err)
	}
	return &location, nil
}

// ListCities returns the distinct non-empty city values in the directory.
func (r *ReferenceRepository) ListCities(ctx context.Context) ([]string, error) {
	return r.listLocationValues(ctx, "city")
}

// ListStates returns the distinct non-empty state values in the directory.
func (r *ReferenceRepository) ListStates(ctx context.Context) ([]string, error) {
	return r.listLocationValues(ctx, "state")
}

// ListCountries returns the distinct non-empty country values in the directory.
func (r *ReferenceRepository) ListCountries(ctx context.Context) ([]string, error) {
	return r.listLocationValues(ctx, "country")
}

func (r *ReferenceRepository) listLocationValues(ctx context.Context, column string) ([]string, error) {
	// column is always one of the fixed callers above, never user input.
	query := fmt.Sprintf(`SELECT DISTINCT %s FROM locations WHERE %s <> '' ORDER BY %s`, column, column, column)
	var values []string
	if err := r.db.SelectContext(ctx, &values, query); err != nil {
		return nil, fmt.Errorf("list location %s values: %w", column, err)
	}
	return values, nil
}

// GetTag fetches a tag by id.
func (r *ReferenceRepository) GetTag(ctx context.Context, id string) (*models.Tag, error) {
	const query = `SELECT id, name FROM tags WHERE id = $1`
	var tag models.Tag
	if err := r.db.GetContext(ctx, &tag, query, id); err != nil {
		return nil, err
	}
	return &tag, nil
}

// DeleteTag removes a tag and its marker associations in one transaction
// and returns the ids of the markers that carried it, so callers can audit
// each affected marker. A missing tag is sql.ErrNoRows.
func (r *ReferenceRepository) DeleteTag(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tag delete tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck
		}
	}()

	var markerIDs []string
	if err = tx.SelectContext(ctx, &markerIDs,
		`SELECT marker_id FROM marker_tags WHERE tag_id = $1`, id); err != nil {
		return nil, fmt.Errorf("load tagged markers: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM marker_tags WHERE tag_id = $1`, id); err != nil {
		return nil, fmt.Errorf("unlink tag: %w", err)
	}

	var result sql.Result
	if result, err = tx.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete tag: %w", err)
	}
	var rows int64
	if rows, err = result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("check tag delete rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tag delete tx: %w", err)
	}
	return markerIDs, nil
}

// ListTags returns all tags ordered by name.
func (r *ReferenceRepository) ListTags(ctx context.Context) ([]models.Tag, error) {
	const query = `SELECT id, name FROM tags ORDER BY name`
	var tags []models.Tag
	if err := r.db.SelectContext(ctx, &tags, query); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// ListOrganizations returns all organizations ordered by name.
func (r *ReferenceRepository) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	const query = `SELECT id, name FROM organizations ORDER BY name`
	var orgs []models.Organization
	if err := r.db.SelectContext(ctx, &orgs, query); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}

// The resolve helpers run against either the pool or an open transaction
// so marker submission can normalize references inside its own tx.

func resolveLocation(ctx context.Context, ext sqlx.ExtContext, city, state, country string) (*models.Location, error) {
	city = strings.TrimSpace(city)
	state = strings.TrimSpace(state)
	country = strings.TrimSpace(country)
	if city == "" && state == "" && country == "" {
		return nil, nil
	}

	const insert = `INSERT INTO locations (id, city, state, country)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (city, state, country) DO NOTHING`
	if _, err := ext.ExecContext(ctx, insert, uuid.NewString(), city, state, country); err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}

	const query = `SELECT id, city, state, country FROM locations
	WHERE city = $1 AND state = $2 AND country = $3`
	var location models.Location
	if err := sqlx.GetContext(ctx, ext, &location, query, city, state, country); err != nil {
		return nil, fmt.Errorf("load location: %w", err)
	}
	return &location, nil
}

func resolveTag(ctx context.Context, ext sqlx.ExtContext, name string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tag name is empty")
	}

	const insert = `INSERT INTO tags (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`
	if _, err := ext.ExecContext(ctx, insert, uuid.NewString(), name); err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}

	const query = `SELECT id, name FROM tags WHERE name = $1`
	var tag models.Tag
	if err := sqlx.GetContext(ctx, ext, &tag, query, name); err != nil {
		return nil, fmt.Errorf("load tag: %w", err)
	}
	return &tag, nil
}

func resolveOrganization(ctx context.Context, ext sqlx.ExtContext, name string) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("organization name is empty")
	}

	const insert = `INSERT INTO organizations (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`
	if _, err := ext.ExecContext(ctx, insert, uuid.NewString(), name); err != nil {
		return nil, fmt.Errorf("insert organization: %w", err)
	}

	const query = `SELECT id, name FROM organizations WHERE name = $1`
	var org models.Organization
	if err := sqlx.GetContext(ctx, ext, &org, query, name); err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}
	return &org, nil
}
