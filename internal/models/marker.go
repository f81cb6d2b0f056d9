package models

import (
	"encoding/json"
	"time"
)

// MarkerStatus captures the moderation lifecycle of a submitted marker.
type MarkerStatus string

const (
	MarkerStatusPending  MarkerStatus = "pending"
	MarkerStatusApproved MarkerStatus = "approved"
	MarkerStatusRejected MarkerStatus = "rejected"
)

// ModerationAction is the decision taken by a moderator.
type ModerationAction string

const (
	ModerationActionApprove ModerationAction = "approve"
	ModerationActionReject  ModerationAction = "reject"
)

// ResultingStatus maps a moderation action to the status it produces.
func (a ModerationAction) ResultingStatus() (MarkerStatus, bool) {
	switch a {
	case ModerationActionApprove:
		return MarkerStatusApproved, true
	case ModerationActionReject:
		return MarkerStatusRejected, true
	default:
		return "", false
	}
}

// Marker is a location-tagged event submitted for moderation.
type Marker struct {
	ID                  string          `db:"id" json:"id"`
	Title               string          `db:"title" json:"title"`
	Description         string          `db:"description" json:"description"`
	CategoryID          *string         `db:"category_id" json:"categoryId,omitempty"`
	LocationID          *string         `db:"location_id" json:"locationId,omitempty"`
	Latitude            float64         `db:"latitude" json:"latitude"`
	Longitude           float64         `db:"longitude" json:"longitude"`
	EventDate           *time.Time      `db:"event_date" json:"eventDate,omitempty"`
	EventEndDate        *time.Time      `db:"event_end_date" json:"eventEndDate,omitempty"`
	IsRecurrent         bool            `db:"is_recurrent" json:"isRecurrent"`
	RecurrenceFrequency *string         `db:"recurrence_frequency" json:"recurrenceFrequency,omitempty"`
	RecurrenceInterval  *int            `db:"recurrence_interval" json:"recurrenceInterval,omitempty"`
	RecurrenceEndDate   *time.Time      `db:"recurrence_end_date" json:"recurrenceEndDate,omitempty"`
	Timezone            *string         `db:"timezone" json:"timezone,omitempty"`
	Status              MarkerStatus    `db:"status" json:"status"`
	SubmittedBy         *string         `db:"submitted_by" json:"submittedBy,omitempty"`
	EditedBy            *string         `db:"edited_by" json:"editedBy,omitempty"`
	ApprovedBy          *string         `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovalDate        *time.Time      `db:"approval_date" json:"approvalDate,omitempty"`
	Language            string          `db:"language" json:"language"`
	PreviousData        json.RawMessage `db:"previous_data" json:"previousData,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updatedAt"`

	Tags          []Tag          `db:"-" json:"tags,omitempty"`
	Organizations []Organization `db:"-" json:"organizations,omitempty"`
	Location      *Location      `db:"-" json:"location,omitempty"`
}

// MarkerFilter constrains listing queries over the active-marker view.
type MarkerFilter struct {
	Status      *MarkerStatus
	CategoryID  string
	SubmittedBy string
	Limit       int
	Offset      int
}

// DeletedMarker is the soft-delete ledger row. Its presence is the sole
// source of truth for "this marker is logically absent".
type DeletedMarker struct {
	ID        string    `db:"id" json:"id"`
	DeletedAt time.Time `db:"deleted_at" json:"deletedAt"`
}
