package models

import "time"

// WeeklyLimit caps how many of a teacher's classes a student may hold.
// A missing row means the student has no allowance with that teacher.
type WeeklyLimit struct {
	ID               string    `db:"id" json:"id"`
	TeacherID        string    `db:"teacher_id" json:"teacher_id"`
	StudentID        string    `db:"student_id" json:"student_id"`
	WeeklyClassLimit int       `db:"weekly_class_limit" json:"weekly_class_limit"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// LimitSummary is a teacher facing view of one student's allowance and usage.
type LimitSummary struct {
	ID                 string `db:"id" json:"id"`
	StudentID          string `db:"student_id" json:"student_id"`
	Email              string `db:"email" json:"email"`
	FullName           string `db:"full_name" json:"full_name"`
	WeeklyClassLimit   int    `db:"weekly_class_limit" json:"weekly_class_limit"`
	CurrentEnrollments int    `db:"current_enrollments" json:"current_enrollments"`
	AvailableSlots     int    `db:"available_slots" json:"available_slots"`
}

// Allowance is a student facing view of the limit held with one teacher.
type Allowance struct {
	TeacherID          string `db:"teacher_id" json:"teacher_id"`
	TeacherName        string `db:"teacher_name" json:"teacher_name"`
	WeeklyClassLimit   int    `db:"weekly_class_limit" json:"weekly_class_limit"`
	CurrentEnrollments int    `db:"current_enrollments" json:"current_enrollments"`
	AvailableSlots     int    `db:"available_slots" json:"available_slots"`
}
