package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

func TestCatalogRepositoryListSemestersActiveOnly(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "name", "start_date", "end_date", "enrollment_open_date", "enrollment_close_date", "is_active", "created_at"}).
		AddRow("sem-1", "2024 Spring", start, start.AddDate(0, 4, 0), start.AddDate(0, -1, 0), start.AddDate(0, 0, -20), true, start)
	mock.ExpectQuery(regexp.QuoteMeta("FROM semesters WHERE is_active = TRUE ORDER BY start_date ASC, id ASC")).
		WillReturnRows(rows)

	semesters, err := repo.ListSemesters(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, semesters, 1)
	assert.Equal(t, "2024 Spring", semesters[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryListOfferingsFilters(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	open := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(offeringDetailRowColumns).
		AddRow("off-1", "course-1", "sem-1", 2, true, open, "CS101", "Intro", "dept-1", 3, 30, "2024 Spring", open, open.AddDate(0, 0, 9))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE o.semester_id = $1 AND c.department_id = $2 AND o.is_active = TRUE ORDER BY c.course_code ASC")).
		WithArgs("sem-1", "dept-1").
		WillReturnRows(rows)

	offerings, err := repo.ListOfferings(context.Background(), models.OfferingFilter{SemesterID: "sem-1", DepartmentID: "dept-1", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, offerings, 1)
	assert.Equal(t, 28, offerings[0].SeatsLeft())
	assert.Equal(t, "sem-1", offerings[0].Semester().ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryFindOfferingNotFound(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE o.id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(offeringDetailRowColumns))

	_, err := repo.FindOfferingByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryCurrentEnrollments(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, current_enrollment FROM course_offerings WHERE id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "current_enrollment"}).AddRow("off-1", 4))

	counts, err := repo.CurrentEnrollments(context.Background(), []string{"off-1", "off-gone"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"off-1": 4}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())

	empty, err := repo.CurrentEnrollments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
