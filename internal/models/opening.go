package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpeningKind classifies how an opening is offered.
type OpeningKind string

const (
	OpeningKindStandard  OpeningKind = "standard"
	OpeningKindEmergency OpeningKind = "emergency"
	OpeningKindLongTerm  OpeningKind = "longTerm"
)

// OpeningStatus is the lifecycle state of a coverage opening.
type OpeningStatus string

const (
	OpeningStatusOpen      OpeningStatus = "open"
	OpeningStatusRequested OpeningStatus = "requested"
	OpeningStatusClaimed   OpeningStatus = "claimed"
	OpeningStatusCompleted OpeningStatus = "completed"
	OpeningStatusCanceled  OpeningStatus = "canceled"
)

// Active reports whether the status occupies the class slot.
func (s OpeningStatus) Active() bool {
	return s == OpeningStatusOpen || s == OpeningStatusRequested || s == OpeningStatusClaimed
}

// Assigned reports whether an opening in this status must carry an assignee.
func (s OpeningStatus) Assigned() bool {
	return s == OpeningStatusRequested || s == OpeningStatusClaimed || s == OpeningStatusCompleted
}

// ReasonTag labels a lifecycle transition for reporting.
type ReasonTag string

const (
	ReasonAccept     ReasonTag = "accept"
	ReasonConfirm    ReasonTag = "confirm"
	ReasonWithdrawal ReasonTag = "withdrawal"
	ReasonCallOut    ReasonTag = "call_out"
	ReasonComplete   ReasonTag = "complete"
	ReasonCancel     ReasonTag = "cancel"
)

// CoverageOpening is a class period (or full day when Period is 0) that needs coverage.
type CoverageOpening struct {
	ID           string              `db:"id" json:"id"`
	ClassID      string              `db:"class_id" json:"class_id"`
	ClassName    string              `db:"class_name" json:"class_name"`
	TeacherID    string              `db:"teacher_id" json:"teacher_id"`
	Department   string              `db:"department" json:"department"`
	DistrictCode string              `db:"district_code" json:"district_code"`
	SchoolCode   string              `db:"school_code" json:"school_code"`
	Date         time.Time           `db:"date" json:"date"`
	Period       int                 `db:"period" json:"period"`
	StartTime    time.Time           `db:"start_time" json:"start_time"`
	EndTime      time.Time           `db:"end_time" json:"end_time"`
	Kind         OpeningKind         `db:"kind" json:"kind"`
	Urgent       bool                `db:"urgent" json:"urgent"`
	PayAmount    decimal.NullDecimal `db:"pay_amount" json:"pay_amount"`
	Status       OpeningStatus       `db:"status" json:"status"`
	AssigneeID   *string             `db:"assignee_id" json:"assignee_id,omitempty"`
	CreatedBy    string              `db:"created_by" json:"created_by"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

// DurationHours returns the covered time rounded to hundredths of an hour.
func (o *CoverageOpening) DurationHours() decimal.Decimal {
	minutes := int64(o.EndTime.Sub(o.StartTime) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60)).Round(2)
}

// IsAssignee reports whether staffID currently holds the opening.
func (o *CoverageOpening) IsAssignee(staffID string) bool {
	return o.AssigneeID != nil && *o.AssigneeID == staffID
}

// OpeningFilter narrows opening listings.
type OpeningFilter struct {
	SchoolCode string
	Status     OpeningStatus
	Date       *time.Time
	AssigneeID string
	TeacherID  string
	Page       int
	PageSize   int
}

// OpeningEvent records one lifecycle transition of an opening.
type OpeningEvent struct {
	ID         string        `db:"id" json:"id"`
	OpeningID  string        `db:"opening_id" json:"opening_id"`
	ActorID    string        `db:"actor_id" json:"actor_id"`
	FromStatus OpeningStatus `db:"from_status" json:"from_status"`
	ToStatus   OpeningStatus `db:"to_status" json:"to_status"`
	ReasonTag  ReasonTag     `db:"reason_tag" json:"reason_tag"`
	Reason     string        `db:"reason" json:"reason"`
	Notes      string        `db:"notes" json:"notes"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}
