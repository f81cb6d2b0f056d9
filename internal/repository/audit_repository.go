package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/activmap/activmap-api/internal/models"
)

// AuditRepository is the append-only marker audit trail. Entries are never
// updated or deleted and carry no cascade from the markers table, so the
// trail outlives the marker's visible lifecycle.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit entry. It carries no business validation.
func (r *AuditRepository) Append(ctx context.Context, entry *models.MarkerAuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO marker_audit_log (id, marker_id, action, user_id, timestamp, additional_info)
	VALUES (:id, :marker_id, :action, :user_id, :timestamp, :additional_info)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// History returns the marker's audit entries in timestamp-ascending order.
func (r *AuditRepository) History(ctx context.Context, markerID string) ([]models.MarkerAuditLog, error) {
	const query = `SELECT id, marker_id, action, user_id, timestamp, additional_info
	FROM marker_audit_log WHERE marker_id = $1 ORDER BY timestamp ASC, id ASC`
	var entries []models.MarkerAuditLog
	if err := r.db.SelectContext(ctx, &entries, query, markerID); err != nil {
		return nil, fmt.Errorf("load audit history: %w", err)
	}
	return entries, nil
}
