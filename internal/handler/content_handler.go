package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/activmap/activmap-api/internal/dto"
	"github.com/activmap/activmap-api/internal/models"
	appErrors "github.com/activmap/activmap-api/pkg/errors"
	"github.com/activmap/activmap-api/pkg/response"
)

type contentService interface {
	AddComment(ctx context.Context, markerID string, req dto.AddCommentRequest, userID *string) (*models.Comment, error)
	ListComments(ctx context.Context, markerID string) ([]models.Comment, error)
	AddTranslation(ctx context.Context, markerID string, req dto.AddTranslationRequest) (*models.MarkerTranslation, error)
	ListTranslations(ctx context.Context, markerID string) ([]models.MarkerTranslation, error)
}

// ContentHandler exposes per-marker comments and translations.
type ContentHandler struct {
	service contentService
}

// NewContentHandler constructs the handler.
func NewContentHandler(service contentService) *ContentHandler {
	return &ContentHandler{service: service}
}

// AddComment attaches visitor feedback to a marker. Anonymous comments
// are allowed.
func (h *ContentHandler) AddComment(c *gin.Context) {
	var req dto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "comment text is required"))
		return
	}
	var userID *string
	if claims := claimsFromContext(c); claims != nil {
		userID = &claims.UserID
	}
	comment, err := h.service.AddComment(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, comment, nil)
}

// ListComments returns a marker's comments.
func (h *ContentHandler) ListComments(c *gin.Context) {
	comments, err := h.service.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comments, nil)
}

// AddTranslation stores a localized title and description.
func (h *ContentHandler) AddTranslation(c *gin.Context) {
	var req dto.AddTranslationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "language, title, and description are required"))
		return
	}
	translation, err := h.service.AddTranslation(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, translation, nil)
}

// ListTranslations returns a marker's translations.
func (h *ContentHandler) ListTranslations(c *gin.Context) {
	translations, err := h.service.ListTranslations(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, translations, nil)
}
