package loan

import (
	"context"
	"log/slog"
	"time"

	"github.com/lisalisi-cash/lisalisi_cash/internal/audit"
)

// Sweeper persists the ACTIVE to OVERDUE transition for loans past their due
// date. Reads still derive overdue from the due date, so a loan reports
// overdue between sweeps too.
type Sweeper struct {
	loans  Repository
	audit  *audit.Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewSweeper builds an overdue sweeper.
func NewSweeper(loans Repository, rec *audit.Recorder, logger *slog.Logger) *Sweeper {
	return &Sweeper{loans: loans, audit: rec, logger: logger, now: time.Now}
}

// Sweep flips every due ACTIVE loan to OVERDUE and audits each transition.
// Returns the number of loans flipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	flipped, err := s.loans.MarkOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	for _, l := range flipped {
		s.audit.Record(ctx, audit.Event{
			Kind:   audit.EventLoanOverdue,
			UserID: l.UserID,
			Data: map[string]any{
				"loan_id":   l.ID,
				"remaining": l.Remaining,
				"due_date":  l.DueDate,
			},
			Channel: "SYSTEM",
		})
	}
	if len(flipped) > 0 {
		s.logger.Info("overdue sweep completed", slog.Int("loans", len(flipped)))
	}
	return len(flipped), nil
}
