package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/coverage-api/internal/models"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ClockLayout is the wire format for times of day.
const ClockLayout = "15:04"

// CreateOpeningRequest opens a slot manually. Start and end default to the class timetable.
type CreateOpeningRequest struct {
	ClassID   string             `json:"class_id" validate:"required"`
	ClassName string             `json:"class_name" validate:"omitempty,max=200"`
	TeacherID string             `json:"teacher_id" validate:"required,uuid"`
	Date      string             `json:"date" validate:"required,datetime=2006-01-02"`
	Period    int                `json:"period" validate:"gte=0,lte=20"`
	StartTime string             `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   string             `json:"end_time" validate:"omitempty,datetime=15:04"`
	Kind      models.OpeningKind `json:"kind" validate:"required,oneof=standard emergency longTerm"`
	Urgent    bool               `json:"urgent"`
	PayAmount *decimal.Decimal   `json:"pay_amount"`
	Mode      models.OfferMode   `json:"mode" validate:"omitempty,oneof=sequential broadcast"`
}

// AcceptJobRequest claims an opening.
type AcceptJobRequest struct {
	JobID          string `json:"job_id" validate:"required,uuid"`
	SubstituteID   string `json:"substitute_id" validate:"required,uuid"`
	SubstituteName string `json:"substitute_name" validate:"omitempty,max=200"`
}

// AcceptJobResponse mirrors the accept contract.
type AcceptJobResponse struct {
	Success    bool                    `json:"success"`
	Assignment *models.CoverageOpening `json:"assignment"`
}

// WithdrawJobRequest releases an assignment with advance notice.
type WithdrawJobRequest struct {
	JobID        string `json:"job_id" validate:"required,uuid"`
	SubstituteID string `json:"substitute_id" validate:"required,uuid"`
	Reason       string `json:"reason" validate:"omitempty,max=500"`
}

// CallOutRequest releases an assignment without notice.
type CallOutRequest struct {
	JobID        string `json:"job_id" validate:"required,uuid"`
	SubstituteID string `json:"substitute_id" validate:"required,uuid"`
	Reason       string `json:"reason" validate:"required,max=500"`
	Notes        string `json:"notes" validate:"omitempty,max=2000"`
}

// EmergencyAssignRequest opens an urgent slot for a class. Period and date default to the next period today.
type EmergencyAssignRequest struct {
	ClassID   string           `json:"class_id" validate:"required"`
	Period    *int             `json:"period" validate:"omitempty,gte=0,lte=20"`
	Date      string           `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Broadcast bool             `json:"broadcast"`
	PayAmount *decimal.Decimal `json:"pay_amount"`
}

// EmergencyAssignResponse reports what was opened and who was offered it.
type EmergencyAssignResponse struct {
	ClassID   string                  `json:"class_id"`
	ClassName string                  `json:"class_name"`
	Opening   *models.CoverageOpening `json:"opening"`
	Mode      models.OfferMode        `json:"mode"`
	OfferedTo []string                `json:"offered_to"`
}

// MarkAbsentRequest flags a teacher absent for today.
type MarkAbsentRequest struct {
	TeacherID string `json:"teacher_id" validate:"required,uuid"`
}

// MarkAbsentResponse lists the openings created for the absence.
type MarkAbsentResponse struct {
	Success  bool                     `json:"success"`
	Openings []models.CoverageOpening `json:"openings"`
}

// MarkReturnedRequest clears a teacher's absence.
type MarkReturnedRequest struct {
	TeacherID string `json:"teacher_id" validate:"required,uuid"`
}

// SuccessResponse is the minimal acknowledgement body.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// OpeningDetail is an opening with its transition history.
type OpeningDetail struct {
	models.CoverageOpening
	Events []models.OpeningEvent `json:"events"`
}

// RankedCandidate is an eligible staff member in offer order.
type RankedCandidate struct {
	Rank                  int              `json:"rank"`
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	Role                  models.StaffRole `json:"role"`
	Department            string           `json:"department"`
	RotationPosition      int              `json:"rotation_position"`
	DaysSinceLastCoverage int              `json:"days_since_last_coverage"`
}
