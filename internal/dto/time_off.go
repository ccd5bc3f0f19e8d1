package dto

// CreateTimeOffRequest submits a time-off request.
type CreateTimeOffRequest struct {
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason    string `json:"reason" validate:"omitempty,max=1000"`
}
