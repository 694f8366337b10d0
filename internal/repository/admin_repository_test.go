package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRepositoryEarliestByCampus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdminRepository(db)

	campus := "campus-1"
	rows := sqlmock.NewRows([]string{"id", "username", "school_id", "campus_id", "created_at"}).
		AddRow("a1", "EEC-NPS01", "school-1", campus, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, school_id, campus_id, created_at FROM admins")).
		WithArgs("school-1", campus).
		WillReturnRows(rows)

	admin, err := repo.EarliestByCampus(context.Background(), "school-1", &campus)
	require.NoError(t, err)
	assert.Equal(t, "EEC-NPS01", admin.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRepositoryEarliestByCampusNilCampus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdminRepository(db)

	rows := sqlmock.NewRows([]string{"id", "username", "school_id", "campus_id", "created_at"}).
		AddRow("a1", "EEC-NPS", "school-1", nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, school_id, campus_id, created_at FROM admins")).
		WithArgs("school-1", nil).
		WillReturnRows(rows)

	admin, err := repo.EarliestByCampus(context.Background(), "school-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "EEC-NPS", admin.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAdminRepository(db)

	rows := sqlmock.NewRows([]string{"id", "username", "school_id", "campus_id", "created_at"}).
		AddRow("a1", "EEC-NPS01", "school-1", "campus-1", time.Now()).
		AddRow("a2", "EEC-NPS02", "school-1", "campus-2", time.Now())
	mock.ExpectQuery("SELECT id, username, school_id, campus_id, created_at FROM admins ORDER BY created_at ASC, id ASC").
		WillReturnRows(rows)

	admins, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, admins, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
