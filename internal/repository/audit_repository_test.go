package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/activmap/activmap-api/internal/models"
)

func newAuditRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAuditRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO marker_audit_log")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	actor := "mod-1"
	entry := &models.MarkerAuditLog{
		MarkerID: "marker-1",
		Action:   models.AuditActionApproved,
		UserID:   &actor,
	}
	require.NoError(t, repo.Append(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.Timestamp.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryHistoryOrdered(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	earlier := time.Now().Add(-time.Hour)
	later := time.Now()
	rows := sqlmock.NewRows([]string{"id", "marker_id", "action", "user_id", "timestamp", "additional_info"}).
		AddRow("log-1", "marker-1", "approved", "mod-1", earlier, []byte(`{}`)).
		AddRow("log-2", "marker-1", "soft_deleted", "mod-2", later, []byte(`{}`))
	mock.ExpectQuery(regexp.QuoteMeta("FROM marker_audit_log WHERE marker_id")).
		WithArgs("marker-1").
		WillReturnRows(rows)

	entries, err := repo.History(context.Background(), "marker-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "approved", entries[0].Action)
	require.Equal(t, "soft_deleted", entries[1].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}
