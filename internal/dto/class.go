package dto

// ClassRequest is the payload for creating or editing a class slot.
type ClassRequest struct {
	Title       string `json:"title" validate:"required,min=2,max=120"`
	Description string `json:"description" validate:"max=1000"`
	DayOfWeek   *int   `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime   string `json:"start_time" validate:"required,hhmm"`
	EndTime     string `json:"end_time" validate:"required,hhmm"`
	MaxCapacity int    `json:"max_capacity" validate:"required,min=1,max=500"`
}

// RosterExport is a rendered roster file.
type RosterExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// CatalogQuery holds the class catalog query string.
type CatalogQuery struct {
	Filter    string `form:"filter" validate:"omitempty,oneof=all available mine"`
	TeacherID string `form:"teacherId" validate:"omitempty,uuid"`
	Day       *int   `form:"day" validate:"omitempty,min=0,max=6"`
}
