package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/activmap/activmap-api/internal/models"
	"github.com/activmap/activmap-api/internal/repository"
	appErrors "github.com/activmap/activmap-api/pkg/errors"
)

type referenceStore interface {
	CreateCategory(ctx context.Context, name string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	ResolveTag(ctx context.Context, name string) (*models.Tag, error)
	GetTag(ctx context.Context, id string) (*models.Tag, error)
	DeleteTag(ctx context.Context, id string) ([]string, error)
	ListTags(ctx context.Context) ([]models.Tag, error)
	ResolveOrganization(ctx context.Context, name string) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
	CreateLocation(ctx context.Context, city, state, country string) (*models.Location, error)
	ListCities(ctx context.Context) ([]string, error)
	ListStates(ctx context.Context) ([]string, error)
	ListCountries(ctx context.Context) ([]string, error)
}

// DirectoryService exposes the reference-entity directories: categories,
// tags, organizations, and location components.
type DirectoryService struct {
	refs   referenceStore
	audit  auditStore
	logger *zap.Logger
}

// NewDirectoryService constructs the service.
func NewDirectoryService(refs referenceStore, audit auditStore, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{refs: refs, audit: audit, logger: logger}
}

// ListCategories returns all categories.
func (s *DirectoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.refs.ListCategories(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list categories")
	}
	return categories, nil
}

// CreateCategory adds a new category. Category names are unique; a
// duplicate is a conflict rather than a silent merge.
func (s *DirectoryService) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	category, err := s.refs.CreateCategory(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "category already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create category")
	}
	return category, nil
}

// ListTags returns all tags.
func (s *DirectoryService) ListTags(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.refs.ListTags(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list tags")
	}
	return tags, nil
}

// CreateTag resolves the tag by name, creating it when absent. Repeated
// creates of the same name return the same canonical row.
func (s *DirectoryService) CreateTag(ctx context.Context, name string) (*models.Tag, error) {
	tag, err := s.refs.ResolveTag(ctx, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create tag")
	}
	return tag, nil
}

// DeleteTag removes a tag everywhere and audits each marker that carried
// it, so the disappearance is traceable per marker.
func (s *DirectoryService) DeleteTag(ctx context.Context, tagID, actorID string) error {
	tag, err := s.refs.GetTag(ctx, tagID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "tag not found")
		}
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load tag")
	}

	markerIDs, err := s.refs.DeleteTag(ctx, tagID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "tag not found")
		}
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete tag")
	}

	if s.audit == nil {
		return nil
	}
	info, _ := json.Marshal(map[string]string{"tag": tag.Name})
	for _, markerID := range markerIDs {
		entry := &models.MarkerAuditLog{
			MarkerID:       markerID,
			Action:         models.AuditActionTagDeleted,
			UserID:         &actorID,
			AdditionalInfo: info,
		}
		if err := s.audit.Append(ctx, entry); err != nil {
			s.logger.Error("failed to audit tag deletion",
				zap.String("marker_id", markerID),
				zap.String("tag", tag.Name),
				zap.Error(err))
		}
	}
	return nil
}

// ListOrganizations returns all organizations.
func (s *DirectoryService) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	orgs, err := s.refs.ListOrganizations(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list organizations")
	}
	return orgs, nil
}

// CreateOrganization resolves the organization by name, creating it when
// absent.
func (s *DirectoryService) CreateOrganization(ctx context.Context, name string) (*models.Organization, error) {
	org, err := s.refs.ResolveOrganization(ctx, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create organization")
	}
	return org, nil
}

// CreateLocation registers a city/state/country combination. The exact
// combination is unique; registering it twice is a conflict, unlike tag
// and organization creation which resolve to the canonical row.
func (s *DirectoryService) CreateLocation(ctx context.Context, city, state, country string) (*models.Location, error) {
	if strings.TrimSpace(city) == "" && strings.TrimSpace(state) == "" && strings.TrimSpace(country) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one location component is required")
	}
	location, err := s.refs.CreateLocation(ctx, city, state, country)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "location already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create location")
	}
	return location, nil
}

// ListCities returns the distinct city names in the location directory.
func (s *DirectoryService) ListCities(ctx context.Context) ([]string, error) {
	cities, err := s.refs.ListCities(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list cities")
	}
	return cities, nil
}

// ListStates returns the distinct state names in the location directory.
func (s *DirectoryService) ListStates(ctx context.Context) ([]string, error) {
	states, err := s.refs.ListStates(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list states")
	}
	return states, nil
}

// ListCountries returns the distinct country names in the location directory.
func (s *DirectoryService) ListCountries(ctx context.Context) ([]string, error) {
	countries, err := s.refs.ListCountries(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list countries")
	}
	return countries, nil
}
