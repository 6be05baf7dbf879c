package audit

import "time"

// Event kinds recorded in the audit trail.
const (
	EventRegister        = "register"
	EventSetPIN          = "set_pin"
	EventConsent         = "consent"
	EventLoanRequest     = "loan_request"
	EventLoanDecision    = "loan_decision"
	EventPayoutSimulated = "payout_simulated"
	EventRepay           = "repay"
	EventLoanOverdue     = "loan_overdue"
)

// Record is an immutable append-only audit entry. UserID may be empty for
// system-level events; the reference is non-owning and survives user absence.
type Record struct {
	ID        string
	UserID    string
	EventKind string
	Data      map[string]any
	Channel   string
	IPAddress string
	CreatedAt time.Time
}
