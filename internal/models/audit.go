package models

import "time"

// Audited admin actions.
const (
	AuditActionMarkAbsent      = "MARK_ABSENT"
	AuditActionMarkReturned    = "MARK_RETURNED"
	AuditActionEmergencyAssign = "EMERGENCY_ASSIGN"
	AuditActionOpeningCreate   = "OPENING_CREATE"
	AuditActionOpeningConfirm  = "OPENING_CONFIRM"
	AuditActionOpeningComplete = "OPENING_COMPLETE"
	AuditActionOpeningCancel   = "OPENING_CANCEL"
	AuditActionStaffHire       = "STAFF_HIRE"
	AuditActionStaffDeactivate = "STAFF_DEACTIVATE"
	AuditActionRosterAge       = "ROSTER_AGE"
	AuditActionLedgerVerify    = "LEDGER_VERIFY"
	AuditActionLedgerPay       = "LEDGER_PAY"
	AuditActionLedgerOverride  = "LEDGER_OVERRIDE"
	AuditActionTimeOffDecision = "TIME_OFF_DECISION"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
