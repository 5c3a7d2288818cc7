package models

import "time"

// ClassSlot is a recurring weekly class offered by one teacher.
// DayOfWeek runs 0 (Sunday) to 6; times are HH:MM on a 24h clock.
type ClassSlot struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	MaxCapacity int       `db:"max_capacity" json:"max_capacity"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Availability describes the remaining capacity of a class.
type Availability struct {
	ClassID            string `db:"class_id" json:"class_id"`
	MaxCapacity        int    `db:"max_capacity" json:"max_capacity"`
	CurrentEnrollments int    `db:"current_enrollments" json:"current_enrollments"`
	AvailableSpots     int    `db:"available_spots" json:"available_spots"`
}

// NewAvailability derives the spots left from capacity and the enrolled count.
func NewAvailability(classID string, maxCapacity, current int) Availability {
	return Availability{
		ClassID:            classID,
		MaxCapacity:        maxCapacity,
		CurrentEnrollments: current,
		AvailableSpots:     maxCapacity - current,
	}
}

// ClassDetail is a class joined with its teacher and live enrollment count.
type ClassDetail struct {
	ClassSlot
	TeacherName        string `db:"teacher_name" json:"teacher_name"`
	CurrentEnrollments int    `db:"current_enrollments" json:"current_enrollments"`
	AvailableSpots     int    `db:"available_spots" json:"available_spots"`
	IsEnrolled         bool   `db:"is_enrolled" json:"is_enrolled"`
}

// CatalogView selects which classes a catalog listing returns.
type CatalogView string

const (
	CatalogAll       CatalogView = "all"
	CatalogAvailable CatalogView = "available"
	CatalogMine      CatalogView = "mine"
)

// ClassFilter defines filter criteria for the class catalog.
type ClassFilter struct {
	View      CatalogView
	TeacherID string
	DayOfWeek *int
	// ViewerID marks classes the viewer is enrolled in.
	ViewerID string
}

// RosterEntry is one enrolled student of a class.
type RosterEntry struct {
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Email        string    `db:"email" json:"email"`
	EnrolledAt   time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// TeacherClass is a class owned by the caller together with its roster.
type TeacherClass struct {
	ClassDetail
	Students []RosterEntry `json:"students"`
}
