package dto

import (
	"time"

	"github.com/activmap/activmap-api/internal/models"
)

// SubmitMarkerRequest is the public submission payload. Coordinates use
// pointers so a missing field is distinguishable from zero.
type SubmitMarkerRequest struct {
	Title       string   `json:"title" binding:"required" validate:"required"`
	Description string   `json:"description" binding:"required" validate:"required"`
	CategoryID  string   `json:"categoryId" binding:"required" validate:"required"`
	Latitude    *float64 `json:"latitude" binding:"required" validate:"required"`
	Longitude   *float64 `json:"longitude" binding:"required" validate:"required"`

	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`

	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`

	IsRecurrent         bool   `json:"isRecurrent"`
	RecurrenceFrequency string `json:"recurrenceFrequency"`
	RecurrenceInterval  int    `json:"recurrenceInterval"`
	RecurrenceEndDate   string `json:"recurrenceEndDate"`

	Timezone      string   `json:"timezone"`
	Language      string   `json:"language"`
	Tags          []string `json:"tags"`
	Organizations []string `json:"organizations"`
}

// ModerateMarkerRequest carries the moderator decision.
type ModerateMarkerRequest struct {
	Action models.ModerationAction `json:"action" binding:"required,oneof=approve reject"`
}

// EditMarkerRequest updates a marker. Only the fields listed here are
// editable; nil means "leave unchanged".
type EditMarkerRequest struct {
	Title               *string  `json:"title"`
	Description         *string  `json:"description"`
	CategoryID          *string  `json:"categoryId"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	StartDate           *string  `json:"startDate"`
	EndDate             *string  `json:"endDate"`
	IsRecurrent         *bool    `json:"isRecurrent"`
	RecurrenceFrequency *string  `json:"recurrenceFrequency"`
	RecurrenceInterval  *int     `json:"recurrenceInterval"`
	RecurrenceEndDate   *string  `json:"recurrenceEndDate"`
	Timezone            *string  `json:"timezone"`
	Language            *string  `json:"language"`
}

// MarkerQuery mirrors supported listing filters.
type MarkerQuery struct {
	Status   *models.MarkerStatus
	Category string
	Limit    int
	Offset   int
}

// MarkerSummary is the serialized shape served to the public map.
type MarkerSummary struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Latitude    float64             `json:"latitude"`
	Longitude   float64             `json:"longitude"`
	Status      models.MarkerStatus `json:"status"`
	Category    *string             `json:"category,omitempty"`
	City        *string             `json:"city,omitempty"`
	State       *string             `json:"state,omitempty"`
	Country     *string             `json:"country,omitempty"`
	Tags        []string            `json:"tags"`
	SubmittedBy *string             `json:"submittedBy,omitempty"`
	EventDate   *time.Time          `json:"eventDate,omitempty"`
}

// AddTranslationRequest attaches a localized title/description to a marker.
type AddTranslationRequest struct {
	Language    string `json:"language" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// AddCommentRequest attaches visitor feedback to a marker.
type AddCommentRequest struct {
	Text       string `json:"text" binding:"required"`
	PhotoLink  string `json:"photoLink"`
	ReportType string `json:"reportType"`
}
