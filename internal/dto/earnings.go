package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// EarningsSummary aggregates an assignee's ledger up to a reference date.
type EarningsSummary struct {
	AssigneeID        string           `json:"assignee_id"`
	AsOf              string           `json:"as_of"`
	Today             decimal.Decimal  `json:"today"`
	Week              decimal.Decimal  `json:"week"`
	Month             decimal.Decimal  `json:"month"`
	YearToDate        decimal.Decimal  `json:"year_to_date"`
	TotalJobs         int              `json:"total_jobs"`
	PendingAmount     decimal.Decimal  `json:"pending_amount"`
	PaidAmount        decimal.Decimal  `json:"paid_amount"`
	BreakdownBySchool []SchoolEarnings `json:"breakdown_by_school"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// SchoolEarnings is one row of the per-school breakdown.
type SchoolEarnings struct {
	SchoolCode string          `json:"school_code"`
	Jobs       int             `json:"jobs"`
	Amount     decimal.Decimal `json:"amount"`
}

// MarkPaidRequest records the external payment reference.
type MarkPaidRequest struct {
	PaymentRef string `json:"payment_ref" validate:"required,max=200"`
}

// OverrideAmountRequest replaces the computed amount of a pending entry.
type OverrideAmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ExportFile is a rendered ledger export.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}
