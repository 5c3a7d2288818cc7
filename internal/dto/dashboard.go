package dto

import "github.com/noah-isme/yoga-booking-api/internal/models"

// DashboardResponse carries exactly one role specific variant.
type DashboardResponse struct {
	Role    models.UserRole   `json:"role"`
	Student *StudentDashboard `json:"student,omitempty"`
	Teacher *TeacherDashboard `json:"teacher,omitempty"`
}

// StudentDashboard lists the student's bookings and allowances.
type StudentDashboard struct {
	Profile     models.UserInfo           `json:"profile"`
	Enrollments []models.EnrollmentDetail `json:"enrollments"`
	Allowances  []models.Allowance        `json:"allowances"`
}

// TeacherDashboard summarises a teacher's classes and the allowances they granted.
type TeacherDashboard struct {
	Profile       models.UserInfo       `json:"profile"`
	Classes       []models.TeacherClass `json:"classes"`
	TotalStudents int                   `json:"total_students"`
	Limits        []models.LimitSummary `json:"limits"`
}
