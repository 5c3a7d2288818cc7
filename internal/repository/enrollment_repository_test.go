package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/yoga-booking-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() { _ = sqlxDB.Close() }
}

var classRowColumns = []string{"id", "title", "description", "day_of_week", "start_time", "end_time", "max_capacity", "teacher_id", "created_at", "updated_at"}

func TestEnrollmentRepositoryTransactCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE id = $1 FOR UPDATE")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows(classRowColumns).AddRow("class-1", "Hatha", "", 1, "07:00", "08:00", 10, "teacher-1", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM teacher_student_limits WHERE teacher_id = $1 AND student_id = $2 FOR UPDATE")).
		WithArgs("teacher-1", "student-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "teacher_id", "student_id", "weekly_class_limit", "created_at", "updated_at"}).
			AddRow("limit-1", "teacher-1", "student-1", 2, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_enrollments e JOIN classes c")).
		WithArgs("student-1", "teacher-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM class_enrollments WHERE student_id = $1 AND class_id = $2")).
		WithArgs("student-1", "class-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_enrollments")).
		WithArgs(sqlmock.AnyArg(), "student-1", "class-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Transact(context.Background(), func(store EnrollmentStore) error {
		class, err := store.LockClass(context.Background(), "class-1")
		require.NoError(t, err)
		assert.Equal(t, "07:00", class.StartTime)

		limit, err := store.LockLimit(context.Background(), class.TeacherID, "student-1")
		require.NoError(t, err)
		assert.Equal(t, 2, limit.WeeklyClassLimit)

		count, err := store.CountByStudentAndTeacher(context.Background(), "student-1", "teacher-1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		exists, err := store.Exists(context.Background(), "student-1", "class-1")
		require.NoError(t, err)
		assert.False(t, exists)

		enrollment := &models.Enrollment{StudentID: "student-1", ClassID: "class-1"}
		require.NoError(t, store.Create(context.Background(), enrollment))
		assert.NotEmpty(t, enrollment.ID)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryTransactRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes WHERE id = $1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Transact(context.Background(), func(store EnrollmentStore) error {
		_, err := store.LockClass(context.Background(), "missing")
		return err
	})
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentStoreCreateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_enrollments")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := repo.Transact(context.Background(), func(store EnrollmentStore) error {
		return store.Create(context.Background(), &models.Enrollment{StudentID: "student-1", ClassID: "class-1"})
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM class_enrollments WHERE student_id = $1 AND class_id = $2")).
		WithArgs("student-1", "class-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM class_enrollments WHERE student_id = $1 AND class_id = $2")).
		WithArgs("student-1", "class-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.Delete(context.Background(), "student-1", "class-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(context.Background(), "student-1", "class-1")
	require.NoError(t, err)
	assert.False(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryAvailability(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN class_enrollments e ON e.class_id = c.id")).
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "max_capacity", "current_enrollments", "available_spots"}).
			AddRow("class-1", 1, 1, 0))

	availability, err := repo.Availability(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, 0, availability.AvailableSpots)

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN class_enrollments e ON e.class_id = c.id")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Availability(context.Background(), "missing")
	assert.Equal(t, sql.ErrNoRows, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.student_id = $1")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "class_id", "created_at", "title", "day_of_week", "start_time", "end_time", "teacher_id", "teacher_name"}).
			AddRow("enr-1", "student-1", "class-1", time.Now(), "Hatha", 1, "07:00", "08:00", "teacher-1", "Lucía"))

	items, err := repo.ListByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Lucía", items[0].TeacherName)
	require.NoError(t, mock.ExpectationsWereMet())
}
