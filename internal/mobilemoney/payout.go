package mobilemoney

import (
	"context"
	"fmt"
	"time"
)

// PayoutStatusSuccess marks a completed (simulated) disbursement.
const PayoutStatusSuccess = "SUCCESS"

// PayoutResult captures the outcome of a disbursement.
type PayoutResult struct {
	TransactionID string
	MSISDN        string
	Amount        int64
	Status        string
	Timestamp     time.Time
}

// Payer disburses approved loan amounts to a subscriber's mobile money
// account.
type Payer interface {
	Payout(ctx context.Context, msisdn string, amount int64) (PayoutResult, error)
}

// SimulatedPayer approves every disbursement with a synthetic transaction
// reference. No money moves.
type SimulatedPayer struct{}

// Payout simulates a successful disbursement.
func (SimulatedPayer) Payout(_ context.Context, msisdn string, amount int64) (PayoutResult, error) {
	now := time.Now().UTC()
	return PayoutResult{
		TransactionID: fmt.Sprintf("MM_%s_%s", msisdn, now.Format("20060102150405")),
		MSISDN:        msisdn,
		Amount:        amount,
		Status:        PayoutStatusSuccess,
		Timestamp:     now,
	}, nil
}
