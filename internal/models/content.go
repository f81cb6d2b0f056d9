package models

import "time"

// Comment is visitor feedback attached to a marker.
type Comment struct {
	ID         string    `db:"id" json:"id"`
	MarkerID   string    `db:"marker_id" json:"markerId"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	Text       string    `db:"text" json:"text"`
	PhotoLink  *string   `db:"photo_link" json:"photoLink,omitempty"`
	ReportType *string   `db:"report_type" json:"reportType,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// MarkerTranslation stores a localized title/description pair for a marker.
type MarkerTranslation struct {
	ID          string `db:"id" json:"id"`
	MarkerID    string `db:"marker_id" json:"markerId"`
	Language    string `db:"language" json:"language"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
}
