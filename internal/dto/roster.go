package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/coverage-api/internal/models"
)

// HireStaffRequest adds a member to the back of their department rotation.
type HireStaffRequest struct {
	Name              string                  `json:"name" validate:"required,max=200"`
	Email             string                  `json:"email" validate:"required,email"`
	TelegramChatID    *int64                  `json:"telegram_chat_id"`
	Department        string                  `json:"department" validate:"required,max=100"`
	Role              models.StaffRole        `json:"role" validate:"required,oneof=teacher substitute"`
	EmploymentStatus  models.EmploymentStatus `json:"employment_status" validate:"omitempty,oneof=full_time part_time per_diem"`
	DistrictCode      string                  `json:"district_code" validate:"required,max=50"`
	SchoolCode        string                  `json:"school_code" validate:"required,max=50"`
	ApprovedDistricts []string                `json:"approved_districts" validate:"omitempty,dive,required"`
	ApprovedSchools   []string                `json:"approved_schools" validate:"omitempty,dive,required"`
	HourlyRate        *decimal.Decimal        `json:"hourly_rate"`
}

// AgeRosterRequest advances days-since-last-coverage for a department.
type AgeRosterRequest struct {
	SchoolCode string `json:"school_code" validate:"required"`
	Department string `json:"department" validate:"required"`
}
