package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/yoga-booking-api/internal/models"
)

// TeacherRepository reads the teacher directory from profiles.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers ordered by name with class and distinct student totals.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherSummary, int, error) {
	base := "FROM profiles p WHERE p.role = $1"
	args := []interface{}{models.RoleTeacher}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND (LOWER(p.full_name) LIKE $%d OR LOWER(p.email) LIKE $%d)", len(args), len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.full_name, p.email,
	(SELECT COUNT(*) FROM classes c WHERE c.teacher_id = p.id) AS total_classes,
	(SELECT COUNT(DISTINCT e.student_id) FROM class_enrollments e JOIN classes c ON c.id = e.class_id WHERE c.teacher_id = p.id) AS total_students
%s ORDER BY p.full_name ASC LIMIT %d OFFSET %d`, base, size, offset)

	var teachers []models.TeacherSummary
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// CountStudents returns the number of distinct students enrolled in the teacher's classes.
func (r *TeacherRepository) CountStudents(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT e.student_id) FROM class_enrollments e JOIN classes c ON c.id = e.class_id WHERE c.teacher_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, teacherID); err != nil {
		return 0, fmt.Errorf("count teacher students: %w", err)
	}
	return total, nil
}
