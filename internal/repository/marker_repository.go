package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/activmap/activmap-api/internal/dto"
	"github.com/activmap/activmap-api/internal/models"
)

// MarkerRepository persists marker rows, their associations, and the
// soft-delete ledger.
type MarkerRepository struct {
	db *sqlx.DB
}

// NewMarkerRepository constructs the repository.
func NewMarkerRepository(db *sqlx.DB) *MarkerRepository {
	return &MarkerRepository{db: db}
}

// LocationInput is the loosely-structured location triple from a submission.
type LocationInput struct {
	City    string
	State   string
	Country string
}

// Create persists the marker plus its normalized location, tag, and
// organization associations as one transaction. Either everything commits
// or nothing does.
func (r *MarkerRepository) Create(ctx context.Context, marker *models.Marker, loc LocationInput, tagNames, orgNames []string) error {
	if marker.ID == "" {
		marker.ID = uuid.NewString()
	}
	if marker.Status == "" {
		marker.Status = models.MarkerStatusPending
	}
	now := time.Now().UTC()
	if marker.CreatedAt.IsZero() {
		marker.CreatedAt = now
	}
	marker.UpdatedAt = now
	if len(marker.PreviousData) == 0 {
		marker.PreviousData = json.RawMessage(`{}`)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin marker tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck
		}
	}()

	location, err := resolveLocation(ctx, tx, loc.City, loc.State, loc.Country)
	if err != nil {
		return err
	}
	if location != nil {
		marker.LocationID = &location.ID
		marker.Location = location
	}

	const insert = `INSERT INTO markers
	(id, title, description, category_id, location_id, latitude, longitude,
	 event_date, event_end_date, is_recurrent, recurrence_frequency, recurrence_interval,
	 recurrence_end_date, timezone, status, submitted_by, language, previous_data,
	 created_at, updated_at)
	VALUES (:id, :title, :description, :category_id, :location_id, :latitude, :longitude,
	 :event_date, :event_end_date, :is_recurrent, :recurrence_frequency, :recurrence_interval,
	 :recurrence_end_date, :timezone, :status, :submitted_by, :language, :previous_data,
	 :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, marker); err != nil {
		return fmt.Errorf("insert marker: %w", err)
	}

	for _, name := range tagNames {
		var tag *models.Tag
		tag, err = resolveTag(ctx, tx, name)
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO marker_tags (marker_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			marker.ID, tag.ID); err != nil {
			return fmt.Errorf("link tag: %w", err)
		}
		marker.Tags = appendTag(marker.Tags, *tag)
	}

	for _, name := range orgNames {
		var org *models.Organization
		org, err = resolveOrganization(ctx, tx, name)
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO marker_organizations (marker_id, organization_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			marker.ID, org.ID); err != nil {
			return fmt.Errorf("link organization: %w", err)
		}
		marker.Organizations = appendOrganization(marker.Organizations, *org)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit marker tx: %w", err)
	}
	return nil
}

func appendTag(tags []models.Tag, tag models.Tag) []models.Tag {
	for _, existing := range tags {
		if existing.ID == tag.ID {
			return tags
		}
	}
	return append(tags, tag)
}

func appendOrganization(orgs []models.Organization, org models.Organization) []models.Organization {
	for _, existing := range orgs {
		if existing.ID == org.ID {
			return orgs
		}
	}
	return append(orgs, org)
}

// GetByID fetches a marker row by identifier.
func (r *MarkerRepository) GetByID(ctx context.Context, id string) (*models.Marker, error) {
	const query = `SELECT id, title, description, category_id, location_id, latitude, longitude,
	 event_date, event_end_date, is_recurrent, recurrence_frequency, recurrence_interval,
	 recurrence_end_date, timezone, status, submitted_by, edited_by, approved_by,
	 approval_date, language, previous_data, created_at, updated_at
	FROM markers WHERE id = $1`
	var marker models.Marker
	if err := r.db.GetContext(ctx, &marker, query, id); err != nil {
		return nil, err
	}
	return &marker, nil
}

// UpdateStatusParams groups the columns a moderation decision touches.
type UpdateStatusParams struct {
	ID           string
	Status       models.MarkerStatus
	ApprovedBy   *string
	ApprovalDate *time.Time
}

// UpdateStatus applies a moderation decision. The update is guarded on the
// current status being pending; zero rows affected means the marker was
// already moderated (or raced another moderator) and surfaces as
// sql.ErrNoRows.
func (r *MarkerRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams) error {
	query := fmt.Sprintf(`UPDATE markers
	SET status = :status, approved_by = :approved_by, approval_date = :approval_date, updated_at = :updated_at
	WHERE id = :id AND status = '%s'`, models.MarkerStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":            params.ID,
		"status":        params.Status,
		"approved_by":   params.ApprovedBy,
		"approval_date": params.ApprovalDate,
		"updated_at":    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("update marker status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check marker status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateFieldsParams lists the editable columns. Nil pointers leave the
// column untouched; the set is a deliberate allow-list.
type UpdateFieldsParams struct {
	ID                  string
	Title               *string
	Description         *string
	CategoryID          *string
	Latitude            *float64
	Longitude           *float64
	EventDate           *time.Time
	EventEndDate        *time.Time
	IsRecurrent         *bool
	RecurrenceFrequency *string
	RecurrenceInterval  *int
	RecurrenceEndDate   *time.Time
	Timezone            *string
	Language            *string
	EditedBy            *string
	PreviousData        json.RawMessage
}

// UpdateFields applies an edit together with the previous-state snapshot.
func (r *MarkerRepository) UpdateFields(ctx context.Context, params UpdateFieldsParams) error {
	setParts := []string{"updated_at = :updated_at", "edited_by = :edited_by", "previous_data = :previous_data"}
	args := map[string]interface{}{
		"id":            params.ID,
		"updated_at":    time.Now().UTC(),
		"edited_by":     params.EditedBy,
		"previous_data": []byte(params.PreviousData),
	}

	add := func(column string, value interface{}) {
		setParts = append(setParts, fmt.Sprintf("%s = :%s", column, column))
		args[column] = value
	}
	if params.Title != nil {
		add("title", *params.Title)
	}
	if params.Description != nil {
		add("description", *params.Description)
	}
	if params.CategoryID != nil {
		add("category_id", *params.CategoryID)
	}
	if params.Latitude != nil {
		add("latitude", *params.Latitude)
	}
	if params.Longitude != nil {
		add("longitude", *params.Longitude)
	}
	if params.EventDate != nil {
		add("event_date", *params.EventDate)
	}
	if params.EventEndDate != nil {
		add("event_end_date", *params.EventEndDate)
	}
	if params.IsRecurrent != nil {
		add("is_recurrent", *params.IsRecurrent)
	}
	if params.RecurrenceFrequency != nil {
		add("recurrence_frequency", *params.RecurrenceFrequency)
	}
	if params.RecurrenceInterval != nil {
		add("recurrence_interval", *params.RecurrenceInterval)
	}
	if params.RecurrenceEndDate != nil {
		add("recurrence_end_date", *params.RecurrenceEndDate)
	}
	if params.Timezone != nil {
		add("timezone", *params.Timezone)
	}
	if params.Language != nil {
		add("language", *params.Language)
	}

	query := fmt.Sprintf("UPDATE markers SET %s WHERE id = :id", strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update marker fields: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check marker update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete inserts the marker into the deleted-markers ledger. A second
// delete violates the ledger primary key and surfaces as ErrDuplicateKey;
// the marker row itself is never touched.
func (r *MarkerRepository) SoftDelete(ctx context.Context, markerID string) error {
	const query = `INSERT INTO deleted_markers (id, deleted_at) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, markerID, time.Now().UTC()); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("soft delete marker: %w", err)
	}
	return nil
}

// Restore removes the ledger row. Restoring a marker that was never
// deleted is sql.ErrNoRows, not a silent success.
func (r *MarkerRepository) Restore(ctx context.Context, markerID string) error {
	const query = `DELETE FROM deleted_markers WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, markerID)
	if err != nil {
		return fmt.Errorf("restore marker: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check restore rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type activeMarkerRow struct {
	ID          string              `db:"id"`
	Title       string              `db:"title"`
	Description string              `db:"description"`
	Latitude    float64             `db:"latitude"`
	Longitude   float64             `db:"longitude"`
	Status      models.MarkerStatus `db:"status"`
	Category    *string             `db:"category"`
	City        *string             `db:"city"`
	State       *string             `db:"state"`
	Country     *string             `db:"country"`
	Tags        pq.StringArray      `db:"tags"`
	SubmittedBy *string             `db:"submitted_by"`
	EventDate   *time.Time          `db:"event_date"`
}

// ListActive returns marker summaries from the active view: markers with
// no deleted-markers ledger entry. Every listing path goes through here,
// never the raw table.
func (r *MarkerRepository) ListActive(ctx context.Context, filter models.MarkerFilter) ([]dto.MarkerSummary, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT m.id, m.title, m.description, m.latitude, m.longitude, m.status,
	 c.name AS category, l.city, l.state, l.country,
	 COALESCE(array_agg(t.name ORDER BY t.name) FILTER (WHERE t.name IS NOT NULL), '{}') AS tags,
	 m.submitted_by, m.event_date
	FROM markers m
	LEFT JOIN deleted_markers d ON d.id = m.id
	LEFT JOIN categories c ON c.id = m.category_id
	LEFT JOIN locations l ON l.id = m.location_id
	LEFT JOIN marker_tags mt ON mt.marker_id = m.id
	LEFT JOIN tags t ON t.id = mt.tag_id
	WHERE d.id IS NULL`)

	if filter.Status != nil {
		args = append(args, *filter.Status)
		builder.WriteString(fmt.Sprintf(" AND m.status = $%d", len(args)))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		builder.WriteString(fmt.Sprintf(" AND m.category_id = $%d", len(args)))
	}
	if filter.SubmittedBy != "" {
		args = append(args, filter.SubmittedBy)
		builder.WriteString(fmt.Sprintf(" AND m.submitted_by = $%d", len(args)))
	}

	builder.WriteString(` GROUP BY m.id, c.name, l.city, l.state, l.country ORDER BY m.created_at DESC`)

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var rows []activeMarkerRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list active markers: %w", err)
	}

	summaries := make([]dto.MarkerSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, dto.MarkerSummary{
			ID:          row.ID,
			Title:       row.Title,
			Description: row.Description,
			Latitude:    row.Latitude,
			Longitude:   row.Longitude,
			Status:      row.Status,
			Category:    row.Category,
			City:        row.City,
			State:       row.State,
			Country:     row.Country,
			Tags:        []string(row.Tags),
			SubmittedBy: row.SubmittedBy,
			EventDate:   row.EventDate,
		})
	}
	return summaries, nil
}

// IsDeleted reports whether the marker has a ledger entry.
func (r *MarkerRepository) IsDeleted(ctx context.Context, markerID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM deleted_markers WHERE id = $1)`
	var deleted bool
	if err := r.db.GetContext(ctx, &deleted, query, markerID); err != nil {
		return false, fmt.Errorf("check deleted marker: %w", err)
	}
	return deleted, nil
}
