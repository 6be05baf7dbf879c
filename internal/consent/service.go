package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lisalisi-cash/lisalisi_cash/internal/audit"
)

// ErrUnknownKind indicates a consent kind outside the two known documents.
var ErrUnknownKind = errors.New("unknown consent kind")

// Service manages consent records and gates loan requests on them.
type Service struct {
	repo  Repository
	audit *audit.Recorder
	now   func() time.Time
}

// NewService creates a new consent service.
func NewService(repo Repository, rec *audit.Recorder) *Service {
	return &Service{repo: repo, audit: rec, now: time.Now}
}

// Accept upserts the single record per (user, kind). The acceptance timestamp
// is refreshed only when accepted is true. Every call is audited, accepted or
// not.
func (s *Service) Accept(ctx context.Context, userID string, kind Kind, version, channel string, accepted bool) (Consent, error) {
	if !kind.Valid() {
		return Consent{}, ErrUnknownKind
	}

	c, err := s.repo.Find(ctx, userID, kind)
	switch {
	case errors.Is(err, ErrConsentNotFound):
		c = Consent{ID: uuid.NewString(), UserID: userID, Kind: kind}
	case err != nil:
		return Consent{}, err
	}

	c.Version = version
	c.Accepted = accepted
	c.Channel = channel
	if accepted {
		c.AcceptedAt = s.now().UTC()
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return Consent{}, err
	}

	s.audit.Record(ctx, audit.Event{
		Kind:   audit.EventConsent,
		UserID: userID,
		Data: map[string]any{
			"consent_kind": string(kind),
			"version":      version,
			"accepted":     accepted,
			"channel":      channel,
		},
		Channel: channel,
	})

	return c, nil
}

// Status reports which consents the user has accepted.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	hasTerms, err := s.accepted(ctx, userID, KindTerms)
	if err != nil {
		return Status{}, err
	}
	hasScoring, err := s.accepted(ctx, userID, KindScoring)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		HasTerms:       hasTerms,
		HasScoring:     hasScoring,
		CanRequestLoan: hasTerms && hasScoring,
	}
	if st.CanRequestLoan {
		st.Message = "All consents in place"
	} else {
		st.Message = "Missing consents"
	}
	return st, nil
}

// CanRequestLoan is true iff both consent kinds have been accepted.
func (s *Service) CanRequestLoan(ctx context.Context, userID string) (bool, error) {
	st, err := s.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return st.CanRequestLoan, nil
}

func (s *Service) accepted(ctx context.Context, userID string, kind Kind) (bool, error) {
	c, err := s.repo.Find(ctx, userID, kind)
	if errors.Is(err, ErrConsentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.Accepted, nil
}

// Text returns the current document text for a consent kind.
func Text(kind Kind) (string, error) {
	switch kind {
	case KindTerms:
		return fmt.Sprintf(`TERMS AND CONDITIONS - VERSION %s

By using this microcredit service you accept that:
1. Your mobile money account data is used for credit scoring
2. Credit decisions are based on automated rules
3. You are responsible for repaying your loans
4. Interest charges may apply

By accepting, you consent to access to your aggregated mobile money data.`, TermsVersion), nil
	case KindScoring:
		return fmt.Sprintf(`SCORING DATA ACCESS - VERSION %s

To assess your credit eligibility we use:
- The age of your account
- Your usage history
- Your aggregated mobile money data (volume, frequency, regularity)

This data is used for scoring only and is not shared with third parties.`, ScoringVersion), nil
	default:
		return "", ErrUnknownKind
	}
}

// VersionFor returns the current document version for a consent kind.
func VersionFor(kind Kind) string {
	if kind == KindScoring {
		return ScoringVersion
	}
	return TermsVersion
}
