package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/yoga-booking-api/internal/models"
)

// EnrollmentStore is the set of reads and writes the admission check runs inside one transaction.
type EnrollmentStore interface {
	LockClass(ctx context.Context, classID string) (*models.ClassSlot, error)
	LockLimit(ctx context.Context, teacherID, studentID string) (*models.WeeklyLimit, error)
	CountByStudentAndTeacher(ctx context.Context, studentID, teacherID string) (int, error)
	Exists(ctx context.Context, studentID, classID string) (bool, error)
	CountByClass(ctx context.Context, classID string) (int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
}

// EnrollmentRepository provides database access for class enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Transact runs fn against a store bound to a single transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (r *EnrollmentRepository) Transact(ctx context.Context, fn func(EnrollmentStore) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&enrollmentStore{ext: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment transaction: %w", err)
	}
	return nil
}

// Delete removes the student's enrollment in the class and reports whether a row existed.
func (r *EnrollmentRepository) Delete(ctx context.Context, studentID, classID string) (bool, error) {
	const query = `DELETE FROM class_enrollments WHERE student_id = $1 AND class_id = $2`
	res, err := r.db.ExecContext(ctx, query, studentID, classID)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete enrollment rows: %w", err)
	}
	return affected > 0, nil
}

// ListByStudent returns the student's enrollments with class and teacher details.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `
SELECT e.id, e.student_id, e.class_id, e.created_at,
	c.title, c.day_of_week,
	to_char(c.start_time, 'HH24:MI') AS start_time,
	to_char(c.end_time, 'HH24:MI') AS end_time,
	c.teacher_id, p.full_name AS teacher_name
FROM class_enrollments e
JOIN classes c ON c.id = e.class_id
JOIN profiles p ON p.id = c.teacher_id
WHERE e.student_id = $1
ORDER BY c.day_of_week, c.start_time`
	var items []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return items, nil
}

// Availability returns capacity figures for a class, or sql.ErrNoRows.
func (r *EnrollmentRepository) Availability(ctx context.Context, classID string) (*models.Availability, error) {
	const query = `
SELECT c.id AS class_id, c.max_capacity,
	COUNT(e.id) AS current_enrollments,
	c.max_capacity - COUNT(e.id) AS available_spots
FROM classes c
LEFT JOIN class_enrollments e ON e.class_id = c.id
WHERE c.id = $1
GROUP BY c.id, c.max_capacity`
	var availability models.Availability
	if err := r.db.GetContext(ctx, &availability, query, classID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("class availability: %w", err)
	}
	return &availability, nil
}

type enrollmentStore struct {
	ext sqlx.ExtContext
}

// LockClass loads the class row and holds its lock until the transaction ends.
func (s *enrollmentStore) LockClass(ctx context.Context, classID string) (*models.ClassSlot, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1 FOR UPDATE`
	var class models.ClassSlot
	if err := sqlx.GetContext(ctx, s.ext, &class, query, classID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock class: %w", err)
	}
	return &class, nil
}

// LockLimit reads the allowance row and holds its lock until the transaction ends.
func (s *enrollmentStore) LockLimit(ctx context.Context, teacherID, studentID string) (*models.WeeklyLimit, error) {
	query := `SELECT ` + limitColumns + ` FROM teacher_student_limits WHERE teacher_id = $1 AND student_id = $2 FOR UPDATE`
	var limit models.WeeklyLimit
	if err := sqlx.GetContext(ctx, s.ext, &limit, query, teacherID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock weekly limit: %w", err)
	}
	return &limit, nil
}

func (s *enrollmentStore) CountByStudentAndTeacher(ctx context.Context, studentID, teacherID string) (int, error) {
	const query = `SELECT COUNT(*) FROM class_enrollments e JOIN classes c ON c.id = e.class_id WHERE e.student_id = $1 AND c.teacher_id = $2`
	var count int
	if err := sqlx.GetContext(ctx, s.ext, &count, query, studentID, teacherID); err != nil {
		return 0, fmt.Errorf("count student enrollments with teacher: %w", err)
	}
	return count, nil
}

func (s *enrollmentStore) Exists(ctx context.Context, studentID, classID string) (bool, error) {
	const query = `SELECT 1 FROM class_enrollments WHERE student_id = $1 AND class_id = $2 LIMIT 1`
	var exists int
	if err := sqlx.GetContext(ctx, s.ext, &exists, query, studentID, classID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

func (s *enrollmentStore) CountByClass(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM class_enrollments WHERE class_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, s.ext, &count, query, classID); err != nil {
		return 0, fmt.Errorf("count class enrollments: %w", err)
	}
	return count, nil
}

// Create inserts the enrollment. A unique violation is reported as ErrDuplicate.
func (s *enrollmentStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO class_enrollments (id, student_id, class_id, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.ext.ExecContext(ctx, query, enrollment.ID, enrollment.StudentID, enrollment.ClassID, enrollment.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}
