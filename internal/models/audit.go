package models

import (
	"encoding/json"
	"time"
)

// Audit action labels. Moderation entries use the resulting status as the
// label so history reads naturally.
const (
	AuditActionApproved   = string(MarkerStatusApproved)
	AuditActionRejected   = string(MarkerStatusRejected)
	AuditActionEdited     = "edited"
	AuditActionSoftDelete = "soft_deleted"
	AuditActionRestored   = "restored"
	AuditActionTagDeleted = "tag_deleted"
)

// MarkerAuditLog is an immutable record of one state-changing action taken
// against a marker. Entries are never updated or deleted, even after the
// marker itself is soft-deleted.
type MarkerAuditLog struct {
	ID             string          `db:"id" json:"id"`
	MarkerID       string          `db:"marker_id" json:"markerId"`
	Action         string          `db:"action" json:"action"`
	UserID         *string         `db:"user_id" json:"userId,omitempty"`
	Timestamp      time.Time       `db:"timestamp" json:"timestamp"`
	AdditionalInfo json.RawMessage `db:"additional_info" json:"additionalInfo,omitempty"`
}
