package models

// TeacherSummary is a directory entry for a teacher.
type TeacherSummary struct {
	ID            string `db:"id" json:"id"`
	FullName      string `db:"full_name" json:"full_name"`
	Email         string `db:"email" json:"email"`
	TotalClasses  int    `db:"total_classes" json:"total_classes"`
	TotalStudents int    `db:"total_students" json:"total_students"`
}

// TeacherFilter captures filtering options for the teacher directory.
type TeacherFilter struct {
	Search   string
	Page     int
	PageSize int
}
