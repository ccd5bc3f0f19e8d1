package models

import "time"

// TimeOffStatus is the decision state of a time-off request.
type TimeOffStatus string

const (
	TimeOffPending   TimeOffStatus = "pending"
	TimeOffApproved  TimeOffStatus = "approved"
	TimeOffDenied    TimeOffStatus = "denied"
	TimeOffCancelled TimeOffStatus = "cancelled"
)

// TimeOffRequest is a teacher's request to be away for a date range.
type TimeOffRequest struct {
	ID        string        `db:"id" json:"id"`
	TeacherID string        `db:"teacher_id" json:"teacher_id"`
	StartDate time.Time     `db:"start_date" json:"start_date"`
	EndDate   time.Time     `db:"end_date" json:"end_date"`
	Reason    string        `db:"reason" json:"reason"`
	Status    TimeOffStatus `db:"status" json:"status"`
	DecidedBy *string       `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// TimeOffFilter narrows time-off listings.
type TimeOffFilter struct {
	TeacherID  string
	SchoolCode string
	Status     TimeOffStatus
}
