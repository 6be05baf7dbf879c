package consent

import "time"

// Kind identifies a consent document.
type Kind string

const (
	// KindTerms is the general terms-and-conditions consent.
	KindTerms Kind = "TERMS_AND_CONDITIONS"
	// KindScoring grants access to aggregated mobile money data for scoring.
	KindScoring Kind = "SCORING_DATA_ACCESS"
)

// Current document versions.
const (
	TermsVersion   = "1.0"
	ScoringVersion = "1.0"
)

// Valid reports whether the kind is one of the two known consent documents.
func (k Kind) Valid() bool {
	return k == KindTerms || k == KindScoring
}

// Consent is the single record held per (user, kind). Re-acceptance
// overwrites in place.
type Consent struct {
	ID         string
	UserID     string
	Kind       Kind
	Version    string
	Accepted   bool
	Channel    string
	AcceptedAt time.Time
}

// Status summarises a user's consent state.
type Status struct {
	HasTerms       bool
	HasScoring     bool
	CanRequestLoan bool
	Message        string
}
