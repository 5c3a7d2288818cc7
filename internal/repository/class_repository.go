package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/yoga-booking-api/internal/models"
)

const classColumns = `id, title, description, day_of_week, to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time, max_capacity, teacher_id, created_at, updated_at`

// $1 is always the viewer id so is_enrolled can be computed; pass "" for anonymous listings.
const classDetailSelect = `
SELECT c.id, c.title, c.description, c.day_of_week,
	to_char(c.start_time, 'HH24:MI') AS start_time,
	to_char(c.end_time, 'HH24:MI') AS end_time,
	c.max_capacity, c.teacher_id, c.created_at, c.updated_at,
	p.full_name AS teacher_name,
	COUNT(e.id) AS current_enrollments,
	c.max_capacity - COUNT(e.id) AS available_spots,
	COALESCE(BOOL_OR(e.student_id::text = $1), FALSE) AS is_enrolled
FROM classes c
JOIN profiles p ON p.id = c.teacher_id
LEFT JOIN class_enrollments e ON e.class_id = c.id`

const classDetailGroup = ` GROUP BY c.id, p.full_name`

const classOrder = ` ORDER BY c.day_of_week, c.start_time, c.title`

const rosterSelect = `
SELECT e.id AS enrollment_id, e.class_id, e.student_id, p.full_name, p.email, e.created_at AS enrolled_at
FROM class_enrollments e
JOIN profiles p ON p.id = e.student_id`

// ClassRepository manages persistence for class slots.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns the class catalog matching the filter, ordered by day and start time.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, error) {
	args := []interface{}{filter.ViewerID}
	var conditions []string

	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)))
	}
	if filter.DayOfWeek != nil {
		args = append(args, *filter.DayOfWeek)
		conditions = append(conditions, fmt.Sprintf("c.day_of_week = $%d", len(args)))
	}

	query := classDetailSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += classDetailGroup
	switch filter.View {
	case models.CatalogAvailable:
		query += " HAVING c.max_capacity - COUNT(e.id) > 0"
	case models.CatalogMine:
		query += " HAVING COALESCE(BOOL_OR(e.student_id::text = $1), FALSE)"
	}
	query += classOrder

	var items []models.ClassDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return items, nil
}

// ListByTeacher returns the teacher's own classes with availability.
func (r *ClassRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.ClassDetail, error) {
	return r.List(ctx, models.ClassFilter{View: models.CatalogAll, TeacherID: teacherID})
}

// FindByID returns a class slot by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassSlot, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`
	var class models.ClassSlot
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}

// FindDetailByID returns a class joined with teacher name and availability.
func (r *ClassRepository) FindDetailByID(ctx context.Context, id, viewerID string) (*models.ClassDetail, error) {
	query := classDetailSelect + ` WHERE c.id = $2` + classDetailGroup
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, viewerID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class detail: %w", err)
	}
	return &detail, nil
}

// Roster lists the students enrolled in a class ordered by name.
func (r *ClassRepository) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	query := rosterSelect + ` WHERE e.class_id = $1 ORDER BY p.full_name`
	var items []models.RosterEntry
	if err := r.db.SelectContext(ctx, &items, query, classID); err != nil {
		return nil, fmt.Errorf("class roster: %w", err)
	}
	return items, nil
}

// RostersByTeacher lists enrolled students across all of the teacher's classes.
func (r *ClassRepository) RostersByTeacher(ctx context.Context, teacherID string) ([]models.RosterEntry, error) {
	query := rosterSelect + ` JOIN classes c ON c.id = e.class_id WHERE c.teacher_id = $1 ORDER BY e.class_id, p.full_name`
	var items []models.RosterEntry
	if err := r.db.SelectContext(ctx, &items, query, teacherID); err != nil {
		return nil, fmt.Errorf("teacher rosters: %w", err)
	}
	return items, nil
}

// Create inserts a new class slot.
func (r *ClassRepository) Create(ctx context.Context, class *models.ClassSlot) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, title, description, day_of_week, start_time, end_time, max_capacity, teacher_id, created_at, updated_at)
VALUES (:id, :title, :description, :day_of_week, :start_time, :end_time, :max_capacity, :teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update edits a class owned by class.TeacherID. The class row is locked while the enrolled
// count is checked so capacity cannot drop below it; that case returns *CapacityError.
// A class that does not exist or belongs to another teacher yields sql.ErrNoRows.
func (r *ClassRepository) Update(ctx context.Context, class *models.ClassSlot) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin class update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var createdAt time.Time
	const lockQuery = `SELECT created_at FROM classes WHERE id = $1 AND teacher_id = $2 FOR UPDATE`
	if err = tx.GetContext(ctx, &createdAt, lockQuery, class.ID, class.TeacherID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock class: %w", err)
	}

	var enrolled int
	if err = tx.GetContext(ctx, &enrolled, `SELECT COUNT(*) FROM class_enrollments WHERE class_id = $1`, class.ID); err != nil {
		return fmt.Errorf("count class enrollments: %w", err)
	}
	if class.MaxCapacity < enrolled {
		err = &CapacityError{Enrolled: enrolled}
		return err
	}

	class.CreatedAt = createdAt
	class.UpdatedAt = time.Now().UTC()
	const updateQuery = `UPDATE classes SET title = $3, description = $4, day_of_week = $5, start_time = $6, end_time = $7, max_capacity = $8, updated_at = $9 WHERE id = $1 AND teacher_id = $2`
	if _, err = tx.ExecContext(ctx, updateQuery, class.ID, class.TeacherID, class.Title, class.Description, class.DayOfWeek, class.StartTime, class.EndTime, class.MaxCapacity, class.UpdatedAt); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit class update: %w", err)
	}
	return nil
}

// Delete removes a class owned by teacherID together with its enrollments.
func (r *ClassRepository) Delete(ctx context.Context, id, teacherID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1 AND teacher_id = $2`, id, teacherID)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete class rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
