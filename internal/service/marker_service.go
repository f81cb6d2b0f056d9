package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/activmap/activmap-api/internal/dto"
	"github.com/activmap/activmap-api/internal/models"
	"github.com/activmap/activmap-api/internal/repository"
	appErrors "github.com/activmap/activmap-api/pkg/errors"
	"github.com/activmap/activmap-api/pkg/jobs"
)

// MarkerListCacheKey stores the public approved-marker listing.
const MarkerListCacheKey = "markers:approved"

// JobTypeMarkerCacheRefresh invalidates the public listing after a
// moderation, edit, delete, or restore.
const JobTypeMarkerCacheRefresh = "marker_cache_refresh"

type markerStore interface {
	Create(ctx context.Context, marker *models.Marker, loc repository.LocationInput, tagNames, orgNames []string) error
	GetByID(ctx context.Context, id string) (*models.Marker, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams) error
	UpdateFields(ctx context.Context, params repository.UpdateFieldsParams) error
	SoftDelete(ctx context.Context, markerID string) error
	Restore(ctx context.Context, markerID string) error
	ListActive(ctx context.Context, filter models.MarkerFilter) ([]dto.MarkerSummary, error)
	IsDeleted(ctx context.Context, markerID string) (bool, error)
}

type categoryStore interface {
	GetCategory(ctx context.Context, id string) (*models.Category, error)
}

type auditStore interface {
	Append(ctx context.Context, entry *models.MarkerAuditLog) error
	History(ctx context.Context, markerID string) ([]models.MarkerAuditLog, error)
}

type listingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// MarkerService drives submission, moderation, editing, soft deletion, and
// the public listing of markers.
type MarkerService struct {
	markers    markerStore
	categories categoryStore
	audit      auditStore
	validator  *validator.Validate
	cache      listingCache
	cacheTTL   time.Duration
	defaultLng string
	queue      *jobs.Queue
	logger     *zap.Logger
	metrics    *MetricsService
}

// MarkerServiceOption configures the service.
type MarkerServiceOption func(*MarkerService)

// WithListingCache enables the cached public listing.
func WithListingCache(cache listingCache, ttl time.Duration) MarkerServiceOption {
	return func(s *MarkerService) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithRefreshQueue wires the background queue used to invalidate the
// listing cache after state changes.
func WithRefreshQueue(queue *jobs.Queue) MarkerServiceOption {
	return func(s *MarkerService) {
		s.queue = queue
	}
}

// WithDefaultLanguage overrides the language assigned to submissions that
// omit one.
func WithDefaultLanguage(lang string) MarkerServiceOption {
	return func(s *MarkerService) {
		if lang != "" {
			s.defaultLng = lang
		}
	}
}

// WithMarkerMetrics attaches moderation counters.
func WithMarkerMetrics(metrics *MetricsService) MarkerServiceOption {
	return func(s *MarkerService) {
		s.metrics = metrics
	}
}

// NewMarkerService constructs the service.
func NewMarkerService(markers markerStore, categories categoryStore, audit auditStore, validate *validator.Validate, logger *zap.Logger, opts ...MarkerServiceOption) *MarkerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &MarkerService{
		markers:    markers,
		categories: categories,
		audit:      audit,
		validator:  validate,
		cacheTTL:   5 * time.Minute,
		defaultLng: "en",
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit validates the payload, normalizes its references, and persists
// the marker with all associations in one atomic unit. Submission itself
// is not audited; only post-submission mutations are.
func (s *MarkerService) Submit(ctx context.Context, req dto.SubmitMarkerRequest, callerID *string) (*models.Marker, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid marker payload")
	}
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" || description == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title and description are required")
	}
	if req.Latitude == nil || req.Longitude == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "latitude and longitude are required")
	}
	lat, lng := *req.Latitude, *req.Longitude
	if !validCoordinate(lat, -90, 90) || !validCoordinate(lng, -180, 180) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "coordinates are out of range")
	}

	categoryID := strings.TrimSpace(req.CategoryID)
	if categoryID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "categoryId is required")
	}
	if _, err := s.categories.GetCategory(ctx, categoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load category")
	}

	eventDate, err := parseEventTime(req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startDate is not a valid timestamp")
	}
	eventEndDate, err := parseEventTime(req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate is not a valid timestamp")
	}
	if eventDate != nil && eventEndDate != nil && eventEndDate.Before(*eventDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate precedes startDate")
	}
	recurrenceEnd, err := parseEventTime(req.RecurrenceEndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recurrenceEndDate is not a valid timestamp")
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = s.defaultLng
	}

	marker := &models.Marker{
		Title:        title,
		Description:  description,
		CategoryID:   &categoryID,
		Latitude:     lat,
		Longitude:    lng,
		EventDate:    eventDate,
		EventEndDate: eventEndDate,
		IsRecurrent:  req.IsRecurrent,
		Status:       models.MarkerStatusPending,
		SubmittedBy:  callerID,
		Language:     language,
	}
	if req.RecurrenceFrequency != "" {
		freq := strings.ToLower(strings.TrimSpace(req.RecurrenceFrequency))
		marker.RecurrenceFrequency = &freq
	}
	if req.RecurrenceInterval > 0 {
		interval := req.RecurrenceInterval
		marker.RecurrenceInterval = &interval
	}
	marker.RecurrenceEndDate = recurrenceEnd
	if tz := strings.TrimSpace(req.Timezone); tz != "" {
		marker.Timezone = &tz
	}

	loc := repository.LocationInput{City: req.City, State: req.State, Country: req.Country}
	if err := s.markers.Create(ctx, marker, loc, cleanNames(req.Tags), cleanNames(req.Organizations)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to submit marker")
	}
	if s.metrics != nil {
		s.metrics.MarkerSubmitted()
	}
	return marker, nil
}

// Moderate applies an approve/reject decision. Only pending markers may be
// moderated; both outcomes are terminal.
func (s *MarkerService) Moderate(ctx context.Context, markerID string, action models.ModerationAction, actorID string) (*models.Marker, error) {
	status, ok := action.ResultingStatus()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be approve or reject")
	}

	marker, err := s.markers.GetByID(ctx, markerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load marker")
	}
	if marker.Status != models.MarkerStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("marker is already %s", marker.Status))
	}

	params := repository.UpdateStatusParams{ID: markerID, Status: status}
	var approvalDate *time.Time
	if status == models.MarkerStatusApproved {
		now := time.Now().UTC()
		approvalDate = &now
		params.ApprovedBy = &actorID
		params.ApprovalDate = approvalDate
	}
	if err := s.markers.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the race with another moderator.
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "marker was already moderated")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to update marker status")
	}

	marker.Status = status
	if status == models.MarkerStatusApproved {
		marker.ApprovedBy = &actorID
		marker.ApprovalDate = approvalDate
	}

	s.emitAudit(ctx, &models.MarkerAuditLog{
		MarkerID: markerID,
		Action:   string(status),
		UserID:   &actorID,
	})
	if s.metrics != nil {
		s.metrics.ModerationDecision(string(action))
	}
	s.enqueueCacheRefresh(ctx)
	return marker, nil
}

// Edit applies allow-listed field changes, snapshots the prior values of
// the changed fields into previous_data, and audits the edit.
func (s *MarkerService) Edit(ctx context.Context, markerID string, req dto.EditMarkerRequest, actorID string) (*models.Marker, error) {
	marker, err := s.markers.GetByID(ctx, markerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load marker")
	}

	params := repository.UpdateFieldsParams{ID: markerID, EditedBy: &actorID}
	previous := map[string]interface{}{}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title cannot be empty")
		}
		params.Title = &title
		previous["title"] = marker.Title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "description cannot be empty")
		}
		params.Description = &description
		previous["description"] = marker.Description
	}
	if req.CategoryID != nil {
		if _, err := s.categories.GetCategory(ctx, *req.CategoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load category")
		}
		params.CategoryID = req.CategoryID
		previous["category_id"] = marker.CategoryID
	}
	if req.Latitude != nil {
		if !validCoordinate(*req.Latitude, -90, 90) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "latitude is out of range")
		}
		params.Latitude = req.Latitude
		previous["latitude"] = marker.Latitude
	}
	if req.Longitude != nil {
		if !validCoordinate(*req.Longitude, -180, 180) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "longitude is out of range")
		}
		params.Longitude = req.Longitude
		previous["longitude"] = marker.Longitude
	}
	if req.StartDate != nil {
		eventDate, err := parseEventTime(*req.StartDate)
		if err != nil || eventDate == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "startDate is not a valid timestamp")
		}
		params.EventDate = eventDate
		previous["event_date"] = marker.EventDate
	}
	if req.EndDate != nil {
		eventEnd, err := parseEventTime(*req.EndDate)
		if err != nil || eventEnd == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "endDate is not a valid timestamp")
		}
		params.EventEndDate = eventEnd
		previous["event_end_date"] = marker.EventEndDate
	}
	// The window stays ordered against the stored values too, so an edit
	// cannot move one endpoint past the other.
	effectiveStart, effectiveEnd := marker.EventDate, marker.EventEndDate
	if params.EventDate != nil {
		effectiveStart = params.EventDate
	}
	if params.EventEndDate != nil {
		effectiveEnd = params.EventEndDate
	}
	if effectiveStart != nil && effectiveEnd != nil && effectiveEnd.Before(*effectiveStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate precedes startDate")
	}
	if req.IsRecurrent != nil {
		params.IsRecurrent = req.IsRecurrent
		previous["is_recurrent"] = marker.IsRecurrent
	}
	if req.RecurrenceFrequency != nil {
		freq := strings.ToLower(strings.TrimSpace(*req.RecurrenceFrequency))
		params.RecurrenceFrequency = &freq
		previous["recurrence_frequency"] = marker.RecurrenceFrequency
	}
	if req.RecurrenceInterval != nil {
		params.RecurrenceInterval = req.RecurrenceInterval
		previous["recurrence_interval"] = marker.RecurrenceInterval
	}
	if req.RecurrenceEndDate != nil {
		recurrenceEnd, err := parseEventTime(*req.RecurrenceEndDate)
		if err != nil || recurrenceEnd == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "recurrenceEndDate is not a valid timestamp")
		}
		params.RecurrenceEndDate = recurrenceEnd
		previous["recurrence_end_date"] = marker.RecurrenceEndDate
	}
	if req.Timezone != nil {
		params.Timezone = req.Timezone
		previous["timezone"] = marker.Timezone
	}
	if req.Language != nil {
		lang := strings.TrimSpace(*req.Language)
		if lang == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "language cannot be empty")
		}
		params.Language = &lang
		previous["language"] = marker.Language
	}

	if len(previous) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no editable fields supplied")
	}

	snapshot, err := json.Marshal(previous)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot previous data")
	}
	params.PreviousData = snapshot

	if err := s.markers.UpdateFields(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to update marker")
	}

	changed := make([]string, 0, len(previous))
	for field := range previous {
		changed = append(changed, field)
	}
	info, _ := json.Marshal(map[string]interface{}{"changed_fields": changed})
	s.emitAudit(ctx, &models.MarkerAuditLog{
		MarkerID:       markerID,
		Action:         models.AuditActionEdited,
		UserID:         &actorID,
		AdditionalInfo: info,
	})
	s.enqueueCacheRefresh(ctx)

	updated, err := s.markers.GetByID(ctx, markerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to reload marker")
	}
	return updated, nil
}

// SoftDelete marks the marker as logically absent. Deleting twice is an
// error to surface, not a no-op; the marker row itself is untouched.
func (s *MarkerService) SoftDelete(ctx context.Context, markerID string, actorID *string) error {
	if _, err := s.markers.GetByID(ctx, markerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load marker")
	}
	if err := s.markers.SoftDelete(ctx, markerID); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return appErrors.ErrAlreadyDeleted
		}
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete marker")
	}
	s.emitAudit(ctx, &models.MarkerAuditLog{
		MarkerID: markerID,
		Action:   models.AuditActionSoftDelete,
		UserID:   actorID,
	})
	s.enqueueCacheRefresh(ctx)
	return nil
}

// Restore removes the soft-delete ledger entry. Restoring a marker that
// was never deleted is not found, not a silent success.
func (s *MarkerService) Restore(ctx context.Context, markerID string, actorID *string) error {
	if err := s.markers.Restore(ctx, markerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "deleted marker not found")
		}
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to restore marker")
	}
	s.emitAudit(ctx, &models.MarkerAuditLog{
		MarkerID: markerID,
		Action:   models.AuditActionRestored,
		UserID:   actorID,
	})
	s.enqueueCacheRefresh(ctx)
	return nil
}

// ListApproved serves the public map: approved, active markers, cached.
func (s *MarkerService) ListApproved(ctx context.Context) ([]dto.MarkerSummary, error) {
	if s.cache != nil {
		var cached []dto.MarkerSummary
		if err := s.cache.Get(ctx, MarkerListCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	approved := models.MarkerStatusApproved
	summaries, err := s.markers.ListActive(ctx, models.MarkerFilter{Status: &approved})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list markers")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, MarkerListCacheKey, summaries, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache marker listing", zap.Error(err))
		}
	}
	return summaries, nil
}

// List returns active markers for moderators, optionally filtered by status.
func (s *MarkerService) List(ctx context.Context, query dto.MarkerQuery) ([]dto.MarkerSummary, error) {
	filter := models.MarkerFilter{
		Status:     query.Status,
		CategoryID: query.Category,
		Limit:      query.Limit,
		Offset:     query.Offset,
	}
	summaries, err := s.markers.ListActive(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list markers")
	}
	return summaries, nil
}

// AuditHistory returns a marker's audit trail in timestamp order. The
// trail remains readable after the marker is soft-deleted.
func (s *MarkerService) AuditHistory(ctx context.Context, markerID string) ([]models.MarkerAuditLog, error) {
	entries, err := s.audit.History(ctx, markerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load audit history")
	}
	return entries, nil
}

func (s *MarkerService) emitAudit(ctx context.Context, entry *models.MarkerAuditLog) {
	if s.audit == nil || entry == nil {
		return
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("failed to persist audit entry",
			zap.String("marker_id", entry.MarkerID),
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}

func (s *MarkerService) enqueueCacheRefresh(ctx context.Context) {
	if s.queue == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: JobTypeMarkerCacheRefresh, Payload: MarkerListCacheKey}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Warn("failed to enqueue cache refresh", zap.Error(err))
	}
}

func validCoordinate(value, min, max float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	return value >= min && value <= max
}

func cleanNames(names []string) []string {
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func parseEventTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", raw)
}
