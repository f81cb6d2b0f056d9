package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/activmap/activmap-api/internal/dto"
	"github.com/activmap/activmap-api/internal/models"
	appErrors "github.com/activmap/activmap-api/pkg/errors"
	"github.com/activmap/activmap-api/pkg/response"
)

type directoryService interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, name string) (*models.Category, error)
	ListTags(ctx context.Context) ([]models.Tag, error)
	CreateTag(ctx context.Context, name string) (*models.Tag, error)
	DeleteTag(ctx context.Context, tagID, actorID string) error
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	CreateOrganization(ctx context.Context, name string) (*models.Organization, error)
	CreateLocation(ctx context.Context, city, state, country string) (*models.Location, error)
	ListCities(ctx context.Context) ([]string, error)
	ListStates(ctx context.Context) ([]string, error)
	ListCountries(ctx context.Context) ([]string, error)
}

// DirectoryHandler exposes the category, tag, and organization directories.
type DirectoryHandler struct {
	service directoryService
}

// NewDirectoryHandler constructs the handler.
func NewDirectoryHandler(service directoryService) *DirectoryHandler {
	return &DirectoryHandler{service: service}
}

func bindName(c *gin.Context) (string, bool) {
	var req dto.CreateNamedEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "name is required"))
		return "", false
	}
	return req.Name, true
}

// ListCategories returns all categories.
func (h *DirectoryHandler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// CreateCategory adds a category.
func (h *DirectoryHandler) CreateCategory(c *gin.Context) {
	name, ok := bindName(c)
	if !ok {
		return
	}
	category, err := h.service.CreateCategory(c.Request.Context(), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, category, nil)
}

// ListTags returns all tags.
func (h *DirectoryHandler) ListTags(c *gin.Context) {
	tags, err := h.service.ListTags(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tags, nil)
}

// CreateTag resolves a tag, creating it when absent.
func (h *DirectoryHandler) CreateTag(c *gin.Context) {
	name, ok := bindName(c)
	if !ok {
		return
	}
	tag, err := h.service.CreateTag(c.Request.Context(), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, tag, nil)
}

// DeleteTag removes a tag from the directory and all markers.
func (h *DirectoryHandler) DeleteTag(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeleteTag(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListCities returns the distinct city names in the location directory.
func (h *DirectoryHandler) ListCities(c *gin.Context) {
	cities, err := h.service.ListCities(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cities, nil)
}

// AddCity registers a location keyed by its city.
func (h *DirectoryHandler) AddCity(c *gin.Context) {
	h.addLocation(c, func(req dto.CreateLocationRequest) string { return req.City }, "city is required")
}

// ListStates returns the distinct state names in the location directory.
func (h *DirectoryHandler) ListStates(c *gin.Context) {
	states, err := h.service.ListStates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, states, nil)
}

// AddState registers a location keyed by its state.
func (h *DirectoryHandler) AddState(c *gin.Context) {
	h.addLocation(c, func(req dto.CreateLocationRequest) string { return req.State }, "state is required")
}

// ListCountries returns the distinct country names in the location directory.
func (h *DirectoryHandler) ListCountries(c *gin.Context) {
	countries, err := h.service.ListCountries(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, countries, nil)
}

// AddCountry registers a location keyed by its country.
func (h *DirectoryHandler) AddCountry(c *gin.Context) {
	h.addLocation(c, func(req dto.CreateLocationRequest) string { return req.Country }, "country is required")
}

func (h *DirectoryHandler) addLocation(c *gin.Context, required func(dto.CreateLocationRequest) string, missing string) {
	var req dto.CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid location payload"))
		return
	}
	if strings.TrimSpace(required(req)) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, missing))
		return
	}
	location, err := h.service.CreateLocation(c.Request.Context(), req.City, req.State, req.Country)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, location, nil)
}

// ListOrganizations returns all organizations.
func (h *DirectoryHandler) ListOrganizations(c *gin.Context) {
	orgs, err := h.service.ListOrganizations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orgs, nil)
}

// CreateOrganization resolves an organization, creating it when absent.
func (h *DirectoryHandler) CreateOrganization(c *gin.Context) {
	name, ok := bindName(c)
	if !ok {
		return
	}
	org, err := h.service.CreateOrganization(c.Request.Context(), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, org, nil)
}
