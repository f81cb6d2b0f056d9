package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/activmap/activmap-api/internal/dto"
	"github.com/activmap/activmap-api/internal/models"
	appErrors "github.com/activmap/activmap-api/pkg/errors"
)

type contentStoreStub struct {
	comments     []*models.Comment
	translations []*models.MarkerTranslation
}

func (c *contentStoreStub) AddComment(ctx context.Context, comment *models.Comment) error {
	c.comments = append(c.comments, comment)
	return nil
}

func (c *contentStoreStub) ListComments(ctx context.Context, markerID string) ([]models.Comment, error) {
	result := make([]models.Comment, 0, len(c.comments))
	for _, comment := range c.comments {
		if comment.MarkerID == markerID {
			result = append(result, *comment)
		}
	}
	return result, nil
}

func (c *contentStoreStub) AddTranslation(ctx context.Context, translation *models.MarkerTranslation) error {
	c.translations = append(c.translations, translation)
	return nil
}

func (c *contentStoreStub) ListTranslations(ctx context.Context, markerID string) ([]models.MarkerTranslation, error) {
	result := make([]models.MarkerTranslation, 0, len(c.translations))
	for _, translation := range c.translations {
		if translation.MarkerID == markerID {
			result = append(result, *translation)
		}
	}
	return result, nil
}

type markerLookupStub struct {
	ids map[string]bool
}

func (m *markerLookupStub) GetByID(ctx context.Context, id string) (*models.Marker, error) {
	if m.ids[id] {
		return &models.Marker{ID: id}, nil
	}
	return nil, sql.ErrNoRows
}

func TestContentServiceAddComment(t *testing.T) {
	store := &contentStoreStub{}
	svc := NewContentService(store, &markerLookupStub{ids: map[string]bool{"marker-1": true}}, nil)

	comment, err := svc.AddComment(context.Background(), "marker-1", dto.AddCommentRequest{Text: "  great event  "}, nil)
	require.NoError(t, err)
	require.Equal(t, "great event", comment.Text)
	require.Nil(t, comment.UserID)
	require.Len(t, store.comments, 1)
}

func TestContentServiceAddCommentUnknownMarker(t *testing.T) {
	svc := NewContentService(&contentStoreStub{}, &markerLookupStub{ids: map[string]bool{}}, nil)
	_, err := svc.AddComment(context.Background(), "marker-x", dto.AddCommentRequest{Text: "hello"}, nil)
	require.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestContentServiceAddTranslationValidation(t *testing.T) {
	svc := NewContentService(&contentStoreStub{}, &markerLookupStub{ids: map[string]bool{"marker-1": true}}, nil)
	_, err := svc.AddTranslation(context.Background(), "marker-1", dto.AddTranslationRequest{Language: "de"})
	require.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))

	translation, err := svc.AddTranslation(context.Background(), "marker-1", dto.AddTranslationRequest{
		Language:    "de",
		Title:       "Klimamarsch",
		Description: "Marsch für Klimagerechtigkeit",
	})
	require.NoError(t, err)
	require.Equal(t, "de", translation.Language)
}
