package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/activmap/activmap-api/internal/models"
)

// ContentRepository persists the lightweight per-marker content: comments
// and translations.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository constructs the repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// AddComment inserts a comment for a marker.
func (r *ContentRepository) AddComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO comments (id, marker_id, user_id, text, photo_link, report_type, created_at)
	VALUES (:id, :marker_id, :user_id, :text, :photo_link, :report_type, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

// ListComments returns a marker's comments, oldest first.
func (r *ContentRepository) ListComments(ctx context.Context, markerID string) ([]models.Comment, error) {
	const query = `SELECT id, marker_id, user_id, text, photo_link, report_type, created_at
	FROM comments WHERE marker_id = $1 ORDER BY created_at ASC`
	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query, markerID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// AddTranslation inserts a localized title/description for a marker.
func (r *ContentRepository) AddTranslation(ctx context.Context, translation *models.MarkerTranslation) error {
	if translation.ID == "" {
		translation.ID = uuid.NewString()
	}
	const query = `INSERT INTO marker_translations (id, marker_id, language, title, description)
	VALUES (:id, :marker_id, :language, :title, :description)`
	if _, err := r.db.NamedExecContext(ctx, query, translation); err != nil {
		return fmt.Errorf("add translation: %w", err)
	}
	return nil
}

// ListTranslations returns a marker's translations.
func (r *ContentRepository) ListTranslations(ctx context.Context, markerID string) ([]models.MarkerTranslation, error) {
	const query = `SELECT id, marker_id, language, title, description
	FROM marker_translations WHERE marker_id = $1 ORDER BY language`
	var translations []models.MarkerTranslation
	if err := r.db.SelectContext(ctx, &translations, query, markerID); err != nil {
		return nil, fmt.Errorf("list translations: %w", err)
	}
	return translations, nil
}
