package dto

// AssignLimitRequest sets the weekly allowance of a student identified by email or full name.
type AssignLimitRequest struct {
	Student          string `json:"student" validate:"required,min=2,max=254"`
	WeeklyClassLimit *int   `json:"weekly_class_limit" validate:"required,min=0,max=50"`
}

// UpdateLimitRequest changes an existing allowance.
type UpdateLimitRequest struct {
	WeeklyClassLimit *int `json:"weekly_class_limit" validate:"required,min=0,max=50"`
}
