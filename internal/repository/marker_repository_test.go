package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/activmap/activmap-api/internal/models"
)

func newMarkerRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMarkerRepositoryCreateNormalizesReferences(t *testing.T) {
	db, mock, cleanup := newMarkerRepoMock(t)
	defer cleanup()

	repo := NewMarkerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO locations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, city, state, country FROM locations")).
		WithArgs("Berlin", "", "Germany").
		WillReturnRows(sqlmock.NewRows([]string{"id", "city", "state", "country"}).
			AddRow("loc-1", "Berlin", "", "Germany"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO markers")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// The payload repeats "Pride"; both passes resolve to the same row and
	// the association insert is conflict-tolerant.
	for i := 0; i < 2; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tags")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM tags WHERE name")).
			WithArgs("Pride").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("tag-1", "Pride"))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO marker_tags")).
			WithArgs(sqlmock.AnyArg(), "tag-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO organizations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM organizations WHERE name")).
		WithArgs("Amnesty").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("org-1", "Amnesty"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO marker_organizations")).
		WithArgs(sqlmock.AnyArg(), "org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	marker := &models.Marker{
		Title:       "Climate march",
		Description: "March for climate justice",
		Latitude:    52.52,
		Longitude:   13.405,
		Language:    "en",
	}
	err := repo.Create(context.Background(), marker,
		LocationInput{City: "Berlin", Country: "Germany"},
		[]string{"Pride", "Pride"}, []string{"Amnesty"})
	require.NoError(t, err)
	require.NotEmpty(t, marker.ID)
	require.Equal(t, models.MarkerStatusPending, marker.Status)
	require.NotNil(t, marker.LocationID)
	require.Equal(t, "loc-1", *marker.LocationID)
	require.Len(t, marker.Tags, 1)
	require.Len(t, marker.Organizations, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkerRepositoryCreateRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newMarkerRepoMock(t)
	defer cleanup()

	repo := NewMarkerRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO markers")).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	marker := &models.Marker{Title: "t", Description: "d", Latitude: 1, Longitude: 2, Language: "en"}
	err := repo.Create(context.Background(), marker, LocationInput{}, nil, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkerRepositoryUpdateStatusGuarded(t *testing.T) {
	db, mock, cleanup := newMarkerRepoMock(t)
	defer cleanup()

	repo := NewMarkerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE markers")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	approver := "mod-1"
	now := time.Now().UTC()
	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:           "marker-1",
		Status:       models.MarkerStatusApproved,
		ApprovedBy:   &approver,
		ApprovalDate: &now,
	})
	require.NoError(t, err)

	// Zero rows means the marker was no longer pending.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE markers")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:     "marker-1",
		Status: models.MarkerStatusRejected,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkerRepositorySoftDeleteTwice(t *testing.T) {
	db, mock, cleanup := newMarkerRepoMock(t)
	defer cleanup()

	repo := NewMarkerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deleted_markers")).
		WithArgs("marker-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SoftDelete(context.Background(), "marker-1"))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deleted_markers")).
		WithArgs("marker-1", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})
	err := repo.SoftDelete(context.Background(), "marker-1")
	require.ErrorIs(t, err, ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkerRepositoryRestore(t *testing.T) {
	db, mock, cleanup := newMarkerRepoMock(t)
	defer cleanup()

	repo := NewMarkerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM deleted_markers")).
		WithArgs("marker-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Restore(context.Background(), "marker-1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM deleted_markers")).
		WithArgs("marker-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Restore(context.Background(), "marker-2")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkerRepositoryListActiveFilters(t *testing.T) {
	db, mock, cleanup := newMarkerRepoMock(t)
	defer cleanup()

	repo := NewMarkerRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "description", "latitude", "longitude", "status",
		"category", "city", "state", "country", "tags", "submitted_by", "event_date"}).
		AddRow("marker-1", "Climate march", "desc", 52.52, 13.405, "approved",
			"Protest", "Berlin", nil, "Germany", "{Climate,Pride}", nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN deleted_markers d ON d.id = m.id")).
		WithArgs("approved").
		WillReturnRows(rows)

	approved := models.MarkerStatusApproved
	list, err := repo.ListActive(context.Background(), models.MarkerFilter{Status: &approved})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "marker-1", list[0].ID)
	require.Equal(t, []string{"Climate", "Pride"}, list[0].Tags)
	require.NoError(t, mock.ExpectationsWereMet())
}
