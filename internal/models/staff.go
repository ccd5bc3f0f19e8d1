package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// StaffRole distinguishes in-house teachers from substitutes.
type StaffRole string

const (
	StaffRoleTeacher    StaffRole = "teacher"
	StaffRoleSubstitute StaffRole = "substitute"
)

// StaffStatus is the availability of a staff member for coverage.
type StaffStatus string

const (
	StaffStatusFree     StaffStatus = "free"
	StaffStatusCovering StaffStatus = "covering"
	StaffStatusAbsent   StaffStatus = "absent"
)

// EmploymentStatus describes the contract type.
type EmploymentStatus string

const (
	EmploymentFullTime EmploymentStatus = "full_time"
	EmploymentPartTime EmploymentStatus = "part_time"
	EmploymentPerDiem  EmploymentStatus = "per_diem"
)

// StaffMember is a teacher or substitute in the coverage rotation.
// RotationPosition is dense (1..N) among active members of a school department and 0 once deactivated.
type StaffMember struct {
	ID                    string              `db:"id" json:"id"`
	Name                  string              `db:"name" json:"name"`
	Email                 string              `db:"email" json:"email"`
	TelegramChatID        *int64              `db:"telegram_chat_id" json:"telegram_chat_id,omitempty"`
	Department            string              `db:"department" json:"department"`
	Role                  StaffRole           `db:"role" json:"role"`
	EmploymentStatus      EmploymentStatus    `db:"employment_status" json:"employment_status"`
	DistrictCode          string              `db:"district_code" json:"district_code"`
	SchoolCode            string              `db:"school_code" json:"school_code"`
	RotationPosition      int                 `db:"rotation_position" json:"rotation_position"`
	DaysSinceLastCoverage int                 `db:"days_since_last_coverage" json:"days_since_last_coverage"`
	Status                StaffStatus         `db:"status" json:"status"`
	ApprovedDistricts     pq.StringArray      `db:"approved_districts" json:"approved_districts"`
	ApprovedSchools       pq.StringArray      `db:"approved_schools" json:"approved_schools"`
	HourlyRate            decimal.NullDecimal `db:"hourly_rate" json:"hourly_rate"`
	Active                bool                `db:"active" json:"active"`
	CreatedAt             time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time           `db:"updated_at" json:"updated_at"`
}

// StaffFilter narrows roster listings.
type StaffFilter struct {
	SchoolCode      string
	Department      string
	Role            StaffRole
	Status          StaffStatus
	IncludeInactive bool
}

// EligibilityQuery describes the slot a candidate must be able to cover.
type EligibilityQuery struct {
	DistrictCode string
	SchoolCode   string
	Department   string
	Date         time.Time
	Start        time.Time
	End          time.Time
	ExcludeIDs   []string
}
