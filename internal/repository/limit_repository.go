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

const limitColumns = `id, teacher_id, student_id, weekly_class_limit, created_at, updated_at`

// LimitRepository persists the weekly allowances teachers grant to students.
type LimitRepository struct {
	db *sqlx.DB
}

// NewLimitRepository constructs the repository.
func NewLimitRepository(db *sqlx.DB) *LimitRepository {
	return &LimitRepository{db: db}
}

// Upsert creates the (teacher, student) allowance or replaces its limit.
func (r *LimitRepository) Upsert(ctx context.Context, limit *models.WeeklyLimit) error {
	if limit.ID == "" {
		limit.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	const query = `
INSERT INTO teacher_student_limits (id, teacher_id, student_id, weekly_class_limit, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (teacher_id, student_id) DO UPDATE SET weekly_class_limit = EXCLUDED.weekly_class_limit, updated_at = EXCLUDED.updated_at
RETURNING ` + limitColumns
	if err := r.db.GetContext(ctx, limit, query, limit.ID, limit.TeacherID, limit.StudentID, limit.WeeklyClassLimit, now); err != nil {
		return fmt.Errorf("upsert weekly limit: %w", err)
	}
	return nil
}

// UpdateLimit changes the limit of an allowance owned by teacherID, or returns sql.ErrNoRows.
func (r *LimitRepository) UpdateLimit(ctx context.Context, id, teacherID string, weeklyLimit int) (*models.WeeklyLimit, error) {
	query := `UPDATE teacher_student_limits SET weekly_class_limit = $3, updated_at = $4 WHERE id = $1 AND teacher_id = $2 RETURNING ` + limitColumns
	var limit models.WeeklyLimit
	if err := r.db.GetContext(ctx, &limit, query, id, teacherID, weeklyLimit, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update weekly limit: %w", err)
	}
	return &limit, nil
}

// DeleteByStudent revokes the allowance teacherID granted to studentID and reports whether a row existed.
func (r *LimitRepository) DeleteByStudent(ctx context.Context, teacherID, studentID string) (bool, error) {
	const query = `DELETE FROM teacher_student_limits WHERE teacher_id = $1 AND student_id = $2`
	res, err := r.db.ExecContext(ctx, query, teacherID, studentID)
	if err != nil {
		return false, fmt.Errorf("delete weekly limit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete weekly limit rows: %w", err)
	}
	return affected > 0, nil
}

// ListSummaries returns the teacher's granted allowances with current usage, ordered by student name.
func (r *LimitRepository) ListSummaries(ctx context.Context, teacherID string) ([]models.LimitSummary, error) {
	const query = `
SELECT l.id, l.student_id, p.email, p.full_name, l.weekly_class_limit,
	COUNT(e.id) AS current_enrollments,
	l.weekly_class_limit - COUNT(e.id) AS available_slots
FROM teacher_student_limits l
JOIN profiles p ON p.id = l.student_id
LEFT JOIN classes c ON c.teacher_id = l.teacher_id
LEFT JOIN class_enrollments e ON e.class_id = c.id AND e.student_id = l.student_id
WHERE l.teacher_id = $1
GROUP BY l.id, p.email, p.full_name
ORDER BY p.full_name`
	var items []models.LimitSummary
	if err := r.db.SelectContext(ctx, &items, query, teacherID); err != nil {
		return nil, fmt.Errorf("list weekly limits: %w", err)
	}
	return items, nil
}

// ListAllowances returns every allowance a student holds with current usage per teacher.
func (r *LimitRepository) ListAllowances(ctx context.Context, studentID string) ([]models.Allowance, error) {
	const query = `
SELECT l.teacher_id, p.full_name AS teacher_name, l.weekly_class_limit,
	COUNT(e.id) AS current_enrollments,
	l.weekly_class_limit - COUNT(e.id) AS available_slots
FROM teacher_student_limits l
JOIN profiles p ON p.id = l.teacher_id
LEFT JOIN classes c ON c.teacher_id = l.teacher_id
LEFT JOIN class_enrollments e ON e.class_id = c.id AND e.student_id = l.student_id
WHERE l.student_id = $1
GROUP BY l.teacher_id, p.full_name, l.weekly_class_limit
ORDER BY p.full_name`
	var items []models.Allowance
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list allowances: %w", err)
	}
	return items, nil
}
