package identity

import "time"

// Channels through which a subscriber can reach the service.
const (
	ChannelUSSD = "USSD"
	ChannelApp  = "APP"
)

// User represents a registered subscriber, keyed by MSISDN.
type User struct {
	ID             string
	MSISDN         string
	FullName       string
	PINHash        []byte
	CreatedAt      time.Time
	LastSeen       time.Time
	USSDUsageCount int
	AppUsageCount  int
}

// HasPIN reports whether the subscriber has set a PIN.
func (u User) HasPIN() bool {
	return len(u.PINHash) > 0
}
