package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/activmap/activmap-api/internal/models"
	"github.com/activmap/activmap-api/internal/repository"
	appErrors "github.com/activmap/activmap-api/pkg/errors"
)

type referenceStoreStub struct {
	categories map[string]*models.Category
	tags       map[string]*models.Tag
	orgs       map[string]*models.Organization
	tagged     map[string][]string
	locations  map[string]*models.Location
	cities     []string
}

func newReferenceStoreStub() *referenceStoreStub {
	return &referenceStoreStub{
		categories: make(map[string]*models.Category),
		tags:       make(map[string]*models.Tag),
		orgs:       make(map[string]*models.Organization),
		tagged:     make(map[string][]string),
		locations:  make(map[string]*models.Location),
	}
}

func (r *referenceStoreStub) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	if _, ok := r.categories[name]; ok {
		return nil, repository.ErrDuplicateKey
	}
	category := &models.Category{ID: uuid.NewString(), Name: name}
	r.categories[name] = category
	return category, nil
}

func (r *referenceStoreStub) ListCategories(ctx context.Context) ([]models.Category, error) {
	result := make([]models.Category, 0, len(r.categories))
	for _, category := range r.categories {
		result = append(result, *category)
	}
	return result, nil
}

func (r *referenceStoreStub) ResolveTag(ctx context.Context, name string) (*models.Tag, error) {
	if tag, ok := r.tags[name]; ok {
		return tag, nil
	}
	tag := &models.Tag{ID: uuid.NewString(), Name: name}
	r.tags[name] = tag
	return tag, nil
}

func (r *referenceStoreStub) GetTag(ctx context.Context, id string) (*models.Tag, error) {
	for _, tag := range r.tags {
		if tag.ID == id {
			return tag, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *referenceStoreStub) DeleteTag(ctx context.Context, id string) ([]string, error) {
	for name, tag := range r.tags {
		if tag.ID == id {
			delete(r.tags, name)
			return r.tagged[id], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *referenceStoreStub) ListTags(ctx context.Context) ([]models.Tag, error) {
	result := make([]models.Tag, 0, len(r.tags))
	for _, tag := range r.tags {
		result = append(result, *tag)
	}
	return result, nil
}

func (r *referenceStoreStub) ResolveOrganization(ctx context.Context, name string) (*models.Organization, error) {
	if org, ok := r.orgs[name]; ok {
		return org, nil
	}
	org := &models.Organization{ID: uuid.NewString(), Name: name}
	r.orgs[name] = org
	return org, nil
}

func (r *referenceStoreStub) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	result := make([]models.Organization, 0, len(r.orgs))
	for _, org := range r.orgs {
		result = append(result, *org)
	}
	return result, nil
}

func (r *referenceStoreStub) CreateLocation(ctx context.Context, city, state, country string) (*models.Location, error) {
	key := city + "|" + state + "|" + country
	if _, ok := r.locations[key]; ok {
		return nil, repository.ErrDuplicateKey
	}
	location := &models.Location{ID: uuid.NewString(), City: city, State: state, Country: country}
	r.locations[key] = location
	return location, nil
}

func (r *referenceStoreStub) ListCities(ctx context.Context) ([]string, error) {
	return r.cities, nil
}

func (r *referenceStoreStub) ListStates(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (r *referenceStoreStub) ListCountries(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestDirectoryServiceCreateCategoryDuplicate(t *testing.T) {
	svc := NewDirectoryService(newReferenceStoreStub(), &auditRecorderStub{}, nil)

	_, err := svc.CreateCategory(context.Background(), "Protest")
	require.NoError(t, err)

	_, err = svc.CreateCategory(context.Background(), "Protest")
	require.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestDirectoryServiceDeleteTagAuditsMarkers(t *testing.T) {
	refs := newReferenceStoreStub()
	audit := &auditRecorderStub{}
	svc := NewDirectoryService(refs, audit, nil)

	tag, err := svc.CreateTag(context.Background(), "Climate")
	require.NoError(t, err)
	refs.tagged[tag.ID] = []string{"marker-1", "marker-2"}

	require.NoError(t, svc.DeleteTag(context.Background(), tag.ID, "admin-1"))
	require.Len(t, audit.entries, 2)
	require.Equal(t, models.AuditActionTagDeleted, audit.entries[0].Action)
	require.Equal(t, "marker-1", audit.entries[0].MarkerID)
	require.Equal(t, "admin-1", *audit.entries[0].UserID)

	err = svc.DeleteTag(context.Background(), tag.ID, "admin-1")
	require.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestDirectoryServiceCreateLocationDuplicate(t *testing.T) {
	svc := NewDirectoryService(newReferenceStoreStub(), &auditRecorderStub{}, nil)

	_, err := svc.CreateLocation(context.Background(), "Berlin", "", "Germany")
	require.NoError(t, err)

	_, err = svc.CreateLocation(context.Background(), "Berlin", "", "Germany")
	require.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestDirectoryServiceCreateLocationBlank(t *testing.T) {
	svc := NewDirectoryService(newReferenceStoreStub(), &auditRecorderStub{}, nil)

	_, err := svc.CreateLocation(context.Background(), "  ", "", "")
	require.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestDirectoryServiceListCities(t *testing.T) {
	refs := newReferenceStoreStub()
	refs.cities = []string{"Berlin", "Hamburg"}
	svc := NewDirectoryService(refs, &auditRecorderStub{}, nil)

	cities, err := svc.ListCities(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Berlin", "Hamburg"}, cities)
}

func TestDirectoryServiceCreateTagIdempotent(t *testing.T) {
	svc := NewDirectoryService(newReferenceStoreStub(), &auditRecorderStub{}, nil)

	first, err := svc.CreateTag(context.Background(), "Climate")
	require.NoError(t, err)
	second, err := svc.CreateTag(context.Background(), "Climate")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}
