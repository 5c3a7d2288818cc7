package dto

// EnrollRequest asks to book the caller into a class offered by the given teacher.
type EnrollRequest struct {
	ClassID   string `json:"class_id" validate:"required,uuid"`
	TeacherID string `json:"teacher_id" validate:"required,uuid"`
}
