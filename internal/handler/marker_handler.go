package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/activmap/activmap-api/internal/dto"
	"github.com/activmap/activmap-api/internal/models"
	appErrors "github.com/activmap/activmap-api/pkg/errors"
	"github.com/activmap/activmap-api/pkg/response"
)

type markerService interface {
	Submit(ctx context.Context, req dto.SubmitMarkerRequest, callerID *string) (*models.Marker, error)
	Moderate(ctx context.Context, markerID string, action models.ModerationAction, actorID string) (*models.Marker, error)
	Edit(ctx context.Context, markerID string, req dto.EditMarkerRequest, actorID string) (*models.Marker, error)
	SoftDelete(ctx context.Context, markerID string, actorID *string) error
	Restore(ctx context.Context, markerID string, actorID *string) error
	ListApproved(ctx context.Context) ([]dto.MarkerSummary, error)
	List(ctx context.Context, query dto.MarkerQuery) ([]dto.MarkerSummary, error)
	AuditHistory(ctx context.Context, markerID string) ([]models.MarkerAuditLog, error)
}

// MarkerHandler exposes REST endpoints for the marker lifecycle.
type MarkerHandler struct {
	service markerService
}

// NewMarkerHandler constructs the handler.
func NewMarkerHandler(service markerService) *MarkerHandler {
	return &MarkerHandler{service: service}
}

// Submit accepts a public marker submission. Authentication is optional;
// anonymous submissions carry no submitter.
func (h *MarkerHandler) Submit(c *gin.Context) {
	var req dto.SubmitMarkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid marker payload"))
		return
	}
	var callerID *string
	if claims := claimsFromContext(c); claims != nil {
		callerID = &claims.UserID
	}
	marker, err := h.service.Submit(c.Request.Context(), req, callerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, marker, nil)
}

// ListApproved serves the public map listing.
func (h *MarkerHandler) ListApproved(c *gin.Context) {
	markers, err := h.service.ListApproved(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, markers, nil)
}

// List returns active markers for moderators with optional filters.
func (h *MarkerHandler) List(c *gin.Context) {
	query := dto.MarkerQuery{
		Category: strings.TrimSpace(c.Query("category")),
	}
	if rawStatus := strings.ToLower(strings.TrimSpace(c.Query("status"))); rawStatus != "" {
		status := models.MarkerStatus(rawStatus)
		switch status {
		case models.MarkerStatusPending, models.MarkerStatusApproved, models.MarkerStatusRejected:
			query.Status = &status
		default:
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
			return
		}
	}
	if rawLimit := c.Query("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a non-negative integer"))
			return
		}
		query.Limit = limit
	}
	if rawOffset := c.Query("offset"); rawOffset != "" {
		offset, err := strconv.Atoi(rawOffset)
		if err != nil || offset < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "offset must be a non-negative integer"))
			return
		}
		query.Offset = offset
	}
	markers, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, markers, nil)
}

// Moderate applies an approve/reject decision to a pending marker.
func (h *MarkerHandler) Moderate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ModerateMarkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "action must be approve or reject"))
		return
	}
	marker, err := h.service.Moderate(c.Request.Context(), c.Param("id"), req.Action, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marker, nil)
}

// Edit updates a marker's editable fields.
func (h *MarkerHandler) Edit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.EditMarkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid edit payload"))
		return
	}
	marker, err := h.service.Edit(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marker, nil)
}

// Delete soft-deletes a marker.
func (h *MarkerHandler) Delete(c *gin.Context) {
	var actorID *string
	if claims := claimsFromContext(c); claims != nil {
		actorID = &claims.UserID
	}
	if err := h.service.SoftDelete(c.Request.Context(), c.Param("id"), actorID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Restore brings a soft-deleted marker back.
func (h *MarkerHandler) Restore(c *gin.Context) {
	var actorID *string
	if claims := claimsFromContext(c); claims != nil {
		actorID = &claims.UserID
	}
	if err := h.service.Restore(c.Request.Context(), c.Param("id"), actorID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AuditLogs returns a marker's audit trail.
func (h *MarkerHandler) AuditLogs(c *gin.Context) {
	entries, err := h.service.AuditHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
