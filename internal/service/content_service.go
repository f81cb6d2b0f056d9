package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/activmap/activmap-api/internal/dto"
	"github.com/activmap/activmap-api/internal/models"
	appErrors "github.com/activmap/activmap-api/pkg/errors"
)

type contentStore interface {
	AddComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, markerID string) ([]models.Comment, error)
	AddTranslation(ctx context.Context, translation *models.MarkerTranslation) error
	ListTranslations(ctx context.Context, markerID string) ([]models.MarkerTranslation, error)
}

type markerLookup interface {
	GetByID(ctx context.Context, id string) (*models.Marker, error)
}

// ContentService manages per-marker comments and translations.
type ContentService struct {
	content contentStore
	markers markerLookup
	logger  *zap.Logger
}

// NewContentService constructs the service.
func NewContentService(content contentStore, markers markerLookup, logger *zap.Logger) *ContentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentService{content: content, markers: markers, logger: logger}
}

func (s *ContentService) markerExists(ctx context.Context, markerID string) error {
	if _, err := s.markers.GetByID(ctx, markerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load marker")
	}
	return nil
}

// AddComment attaches visitor feedback to an existing marker.
func (s *ContentService) AddComment(ctx context.Context, markerID string, req dto.AddCommentRequest, userID *string) (*models.Comment, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment text is required")
	}
	if err := s.markerExists(ctx, markerID); err != nil {
		return nil, err
	}
	comment := &models.Comment{MarkerID: markerID, UserID: userID, Text: text}
	if link := strings.TrimSpace(req.PhotoLink); link != "" {
		comment.PhotoLink = &link
	}
	if report := strings.TrimSpace(req.ReportType); report != "" {
		comment.ReportType = &report
	}
	if err := s.content.AddComment(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to add comment")
	}
	return comment, nil
}

// ListComments returns a marker's comments, oldest first.
func (s *ContentService) ListComments(ctx context.Context, markerID string) ([]models.Comment, error) {
	comments, err := s.content.ListComments(ctx, markerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list comments")
	}
	return comments, nil
}

// AddTranslation stores a localized title/description for a marker.
func (s *ContentService) AddTranslation(ctx context.Context, markerID string, req dto.AddTranslationRequest) (*models.MarkerTranslation, error) {
	if err := s.markerExists(ctx, markerID); err != nil {
		return nil, err
	}
	translation := &models.MarkerTranslation{
		MarkerID:    markerID,
		Language:    strings.TrimSpace(req.Language),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
	}
	if translation.Language == "" || translation.Title == "" || translation.Description == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "language, title, and description are required")
	}
	if err := s.content.AddTranslation(ctx, translation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to add translation")
	}
	return translation, nil
}

// ListTranslations returns a marker's translations.
func (s *ContentService) ListTranslations(ctx context.Context, markerID string) ([]models.MarkerTranslation, error) {
	translations, err := s.content.ListTranslations(ctx, markerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list translations")
	}
	return translations, nil
}
