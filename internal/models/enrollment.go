package models

import "time"

// Enrollment is a student's standing weekly booking in a class.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentRecord is returned after a successful enrollment.
type EnrollmentRecord struct {
	Enrollment
	TeacherID      string `json:"teacher_id"`
	AvailableSpots int    `json:"available_spots"`
}

// EnrollmentDetail enriches Enrollment with class and teacher info.
type EnrollmentDetail struct {
	Enrollment
	Title       string `db:"title" json:"title"`
	DayOfWeek   int    `db:"day_of_week" json:"day_of_week"`
	StartTime   string `db:"start_time" json:"start_time"`
	EndTime     string `db:"end_time" json:"end_time"`
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}
