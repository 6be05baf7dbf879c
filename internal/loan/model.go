package loan

import "time"

// Status is the lifecycle state of a loan.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusActive   Status = "ACTIVE"
	StatusRejected Status = "REJECTED"
	StatusRepaid   Status = "REPAID"
	StatusOverdue  Status = "OVERDUE"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusRepaid
}

// Open reports whether the loan blocks a new request. An OVERDUE loan is
// still unpaid and keeps blocking until it is repaid.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusActive || s == StatusOverdue
}

// Loan is a credit agreement. Amounts are integer FCFA. ApprovedAmount is
// nil for rejected loans. The score fields are the snapshot taken at request
// time and never change afterwards, whatever the scoring engine computes
// later.
type Loan struct {
	ID               string
	UserID           string
	RequestedAmount  int64
	ApprovedAmount   *int64
	Remaining        int64
	InterestRate     int
	DurationDays     int
	Status           Status
	ScoreAtRequest   int
	ScoreExplanation string
	DecisionReason   string
	Channel          string
	DisbursementRef  string
	DueDate          *time.Time
	RequestedAt      time.Time
	DecidedAt        time.Time
	RepaidAt         *time.Time
}

// StatusView is the read model for a single loan, with the time-derived
// fields computed against the clock at query time.
type StatusView struct {
	Loan
	DaysRemaining int
	IsOverdue     bool
}

// Receipt summarises the outcome of one repayment.
type Receipt struct {
	LoanID      string
	Paid        int64
	Remaining   int64
	FullyRepaid bool
	Message     string
}
