package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LogStatus is the payment state of a ledger entry.
type LogStatus string

const (
	LogStatusPending  LogStatus = "pending"
	LogStatusVerified LogStatus = "verified"
	LogStatusPaid     LogStatus = "paid"
)

// CoverageLogEntry is the pay record of a completed opening. It is immutable once paid.
type CoverageLogEntry struct {
	ID            string          `db:"id" json:"id"`
	OpeningID     string          `db:"opening_id" json:"opening_id"`
	AssigneeID    string          `db:"assignee_id" json:"assignee_id"`
	SchoolCode    string          `db:"school_code" json:"school_code"`
	Date          time.Time       `db:"date" json:"date"`
	DurationHours decimal.Decimal `db:"duration_hours" json:"duration_hours"`
	Rate          decimal.Decimal `db:"rate" json:"rate"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Status        LogStatus       `db:"status" json:"status"`
	VerifiedBy    *string         `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt    *time.Time      `db:"verified_at" json:"verified_at,omitempty"`
	PaymentRef    *string         `db:"payment_ref" json:"payment_ref,omitempty"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// CoverageLogFilter narrows ledger listings.
type CoverageLogFilter struct {
	SchoolCode string
	AssigneeID string
	Status     LogStatus
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}
