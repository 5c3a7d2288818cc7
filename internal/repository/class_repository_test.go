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

	"github.com/noah-isme/yoga-booking-api/internal/models"
)

var classDetailColumns = append(append([]string{}, classRowColumns...), "teacher_name", "current_enrollments", "available_spots", "is_enrolled")

func TestClassRepositoryListAvailableForDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)
	now := time.Now()
	day := 2

	mock.ExpectQuery(`WHERE c\.day_of_week = \$2 GROUP BY c\.id, p\.full_name HAVING c\.max_capacity - COUNT\(e\.id\) > 0 ORDER BY`).
		WithArgs("student-1", 2).
		WillReturnRows(sqlmock.NewRows(classDetailColumns).
			AddRow("class-1", "Vinyasa", "", 2, "18:00", "19:00", 12, "teacher-1", now, now, "Lucía", 3, 9, true))

	items, err := repo.List(context.Background(), models.ClassFilter{View: models.CatalogAvailable, DayOfWeek: &day, ViewerID: "student-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 9, items[0].AvailableSpots)
	assert.True(t, items[0].IsEnrolled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListMineByTeacher(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(`WHERE c\.teacher_id = \$2 GROUP BY c\.id, p\.full_name HAVING COALESCE\(BOOL_OR`).
		WithArgs("student-1", "teacher-1").
		WillReturnRows(sqlmock.NewRows(classDetailColumns))

	items, err := repo.List(context.Background(), models.ClassFilter{View: models.CatalogMine, TeacherID: "teacher-1", ViewerID: "student-1"})
	require.NoError(t, err)
	assert.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO classes")).
		WithArgs(sqlmock.AnyArg(), "Yin", "", 3, "20:00", "21:00", 8, "teacher-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	class := &models.ClassSlot{Title: "Yin", DayOfWeek: 3, StartTime: "20:00", EndTime: "21:00", MaxCapacity: 8, TeacherID: "teacher-1"}
	require.NoError(t, repo.Create(context.Background(), class))
	assert.NotEmpty(t, class.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUpdateRejectsShrinkBelowEnrolled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at FROM classes WHERE id = $1 AND teacher_id = $2 FOR UPDATE")).
		WithArgs("class-1", "teacher-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_enrollments WHERE class_id = $1")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &models.ClassSlot{ID: "class-1", TeacherID: "teacher-1", MaxCapacity: 3})
	var capErr *CapacityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 4, capErr.Enrolled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUpdateCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("class-1", "teacher-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_enrollments")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE classes SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), &models.ClassSlot{ID: "class-1", TeacherID: "teacher-1", Title: "Hatha", StartTime: "07:00", EndTime: "08:00", MaxCapacity: 2})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUpdateNotOwned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("class-1", "intruder").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &models.ClassSlot{ID: "class-1", TeacherID: "intruder", MaxCapacity: 5})
	assert.Equal(t, sql.ErrNoRows, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryDeleteScopedToOwner(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM classes WHERE id = $1 AND teacher_id = $2")).
		WithArgs("class-1", "teacher-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "class-1", "teacher-2")
	assert.Equal(t, sql.ErrNoRows, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryRoster(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = $1 ORDER BY p.full_name")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"enrollment_id", "class_id", "student_id", "full_name", "email", "enrolled_at"}).
			AddRow("enr-1", "class-1", "student-1", "Ana", "ana@example.com", time.Now()))

	items, err := repo.Roster(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ana", items[0].FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}
