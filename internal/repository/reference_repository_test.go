package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func newReferenceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReferenceRepositoryResolveTagIdempotent(t *testing.T) {
	db, mock, cleanup := newReferenceRepoMock(t)
	defer cleanup()

	repo := NewReferenceRepository(db)

	// Two resolves of the same name land on the same canonical row: the
	// second insert hits the unique constraint and the reread wins.
	for i := 0; i < 2; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tags")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM tags WHERE name")).
			WithArgs("Climate").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("tag-1", "Climate"))
	}

	first, err := repo.ResolveTag(context.Background(), "Climate")
	require.NoError(t, err)
	second, err := repo.ResolveTag(context.Background(), "  Climate  ")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepositoryResolveTagEmptyName(t *testing.T) {
	db, _, cleanup := newReferenceRepoMock(t)
	defer cleanup()

	repo := NewReferenceRepository(db)
	_, err := repo.ResolveTag(context.Background(), "   ")
	require.Error(t, err)
}

func TestReferenceRepositoryResolveLocationBlank(t *testing.T) {
	db, mock, cleanup := newReferenceRepoMock(t)
	defer cleanup()

	repo := NewReferenceRepository(db)
	location, err := repo.ResolveLocation(context.Background(), "", "  ", "")
	require.NoError(t, err)
	require.Nil(t, location)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepositoryResolveLocationPartial(t *testing.T) {
	db, mock, cleanup := newReferenceRepoMock(t)
	defer cleanup()

	repo := NewReferenceRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO locations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, city, state, country FROM locations")).
		WithArgs("", "", "Germany").
		WillReturnRows(sqlmock.NewRows([]string{"id", "city", "state", "country"}).
			AddRow("loc-1", "", "", "Germany"))

	location, err := repo.ResolveLocation(context.Background(), "", "", "Germany")
	require.NoError(t, err)
	require.Equal(t, "loc-1", location.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepositoryCreateLocationDuplicate(t *testing.T) {
	db, mock, cleanup := newReferenceRepoMock(t)
	defer cleanup()

	repo := NewReferenceRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO locations")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	_, err := repo.CreateLocation(context.Background(), "Berlin", "", "Germany")
	require.ErrorIs(t, err, ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepositoryListCities(t *testing.T) {
	db, mock, cleanup := newReferenceRepoMock(t)
	defer cleanup()

	repo := NewReferenceRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT city FROM locations WHERE city <> ''")).
		WillReturnRows(sqlmock.NewRows([]string{"city"}).AddRow("Berlin").AddRow("Hamburg"))

	cities, err := repo.ListCities(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Berlin", "Hamburg"}, cities)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepositoryCreateCategoryDuplicate(t *testing.T) {
	db, mock, cleanup := newReferenceRepoMock(t)
	defer cleanup()

	repo := NewReferenceRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO categories")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	_, err := repo.CreateCategory(context.Background(), "Protest")
	require.ErrorIs(t, err, ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}
