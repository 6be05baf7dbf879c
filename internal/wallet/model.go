package wallet

import "time"

// Wallet is the stored-value account provisioned 1:1 with a user. Both
// balances are non-negative integer FCFA amounts.
type Wallet struct {
	ID             string
	UserID         string
	Balance        int64
	SavingsBalance int64
	CreatedAt      time.Time
}
