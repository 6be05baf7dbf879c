package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lisalisi-cash/lisalisi_cash/internal/audit"
	"github.com/lisalisi-cash/lisalisi_cash/internal/consent"
	"github.com/lisalisi-cash/lisalisi_cash/internal/identity"
	"github.com/lisalisi-cash/lisalisi_cash/internal/mobilemoney"
	"github.com/lisalisi-cash/lisalisi_cash/internal/scoring"
)

// approvalThreshold is the minimum score required for approval.
const approvalThreshold = 400

var (
	// ErrConsentRequired indicates the user has not accepted both consents.
	ErrConsentRequired = errors.New("required consents not accepted")
	// ErrAmountExceedsCeiling indicates the requested amount exceeds what
	// the user's score permits.
	ErrAmountExceedsCeiling = errors.New("amount exceeds the authorised ceiling")
	// ErrInvalidLoanState indicates a repayment on a loan that is not open.
	ErrInvalidLoanState = errors.New("loan cannot be repaid in its current state")
	// ErrAmountExceedsRemaining indicates an overpayment attempt.
	ErrAmountExceedsRemaining = errors.New("amount exceeds the remaining balance")
	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInvalidDuration indicates an unsupported loan duration.
	ErrInvalidDuration = errors.New("unsupported loan duration")
)

// allowedDurations are the loan terms offered, in days.
var allowedDurations = map[int]bool{7: true, 14: true, 30: true, 60: true, 90: true}

// ScoreEngine produces the credit decision inputs for a user.
type ScoreEngine interface {
	Compute(ctx context.Context, user identity.User, force bool) (scoring.Result, error)
}

// Service drives the loan lifecycle: request, decision, disbursement,
// repayment. Request and decision are synchronous; an approved loan is
// persisted directly in ACTIVE state.
type Service struct {
	loans    Repository
	consents *consent.Service
	engine   ScoreEngine
	payer    mobilemoney.Payer
	audit    *audit.Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewService builds a loan service.
func NewService(loans Repository, consents *consent.Service, engine ScoreEngine, payer mobilemoney.Payer, rec *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		loans:    loans,
		consents: consents,
		engine:   engine,
		payer:    payer,
		audit:    rec,
		logger:   logger,
		now:      time.Now,
		users:    make(map[string]*sync.Mutex),
	}
}

// userLock serializes request/repay sequences per user. The storage layer
// still enforces one open loan per user; the lock keeps the score-check-
// then-insert sequence from interleaving.
func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.users[userID]
	if !ok {
		l = &sync.Mutex{}
		s.users[userID] = l
	}
	return l
}

// Request runs the full request-to-decision flow and returns the persisted
// loan, approved or rejected.
func (s *Service) Request(ctx context.Context, user identity.User, amount int64, durationDays int, channel, ip string) (Loan, error) {
	if amount <= 0 {
		return Loan{}, ErrInvalidAmount
	}
	if !allowedDurations[durationDays] {
		return Loan{}, ErrInvalidDuration
	}

	lock := s.userLock(user.ID)
	lock.Lock()
	defer lock.Unlock()

	ok, err := s.consents.CanRequestLoan(ctx, user.ID)
	if err != nil {
		return Loan{}, err
	}
	if !ok {
		return Loan{}, ErrConsentRequired
	}

	counts, err := s.loans.Counts(ctx, user.ID)
	if err != nil {
		return Loan{}, err
	}
	if counts.HasOpen {
		return Loan{}, ErrLoanAlreadyActive
	}

	score, err := s.engine.Compute(ctx, user, true)
	if err != nil {
		return Loan{}, err
	}
	if amount > score.MaxLoanAmount {
		return Loan{}, ErrAmountExceedsCeiling
	}

	rate := 3
	if score.IsFirstLoan {
		rate = 5
	}
	approved := amount + amount*int64(rate)/100
	now := s.now().UTC()

	l := Loan{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		RequestedAmount:  amount,
		InterestRate:     rate,
		DurationDays:     durationDays,
		ScoreAtRequest:   score.Score,
		ScoreExplanation: score.Explanation,
		Channel:          channel,
		RequestedAt:      now,
		DecidedAt:        now,
	}

	if score.Score >= approvalThreshold {
		due := now.AddDate(0, 0, durationDays)
		l.Status = StatusActive
		l.ApprovedAmount = &approved
		l.Remaining = approved
		l.DueDate = &due
		l.DecisionReason = fmt.Sprintf("Score %d meets the approval threshold for %d FCFA over %d days",
			score.Score, amount, durationDays)
	} else {
		l.Status = StatusRejected
		l.DecisionReason = fmt.Sprintf("Score %d is below the required minimum of %d",
			score.Score, approvalThreshold)
	}

	if err := s.loans.Create(ctx, l); err != nil {
		return Loan{}, err
	}

	s.audit.Record(ctx, audit.Event{
		Kind:   audit.EventLoanRequest,
		UserID: user.ID,
		Data: map[string]any{
			"loan_id":       l.ID,
			"amount":        amount,
			"duration_days": durationDays,
			"score":         score.Score,
		},
		Channel:   channel,
		IPAddress: ip,
	})
	s.audit.Record(ctx, audit.Event{
		Kind:   audit.EventLoanDecision,
		UserID: user.ID,
		Data: map[string]any{
			"loan_id":         l.ID,
			"status":          string(l.Status),
			"approved_amount": l.ApprovedAmount,
			"interest_rate":   l.InterestRate,
			"reason":          l.DecisionReason,
		},
		Channel:   channel,
		IPAddress: ip,
	})

	if l.Status == StatusActive {
		payout, err := s.payer.Payout(ctx, user.MSISDN, approved)
		if err != nil {
			s.logger.Error("disbursement failed",
				slog.String("loan_id", l.ID),
				slog.Any("error", err),
			)
			return l, err
		}
		l.DisbursementRef = payout.TransactionID
		if err := s.loans.Update(ctx, l); err != nil {
			return l, err
		}
		s.audit.Record(ctx, audit.Event{
			Kind:   audit.EventPayoutSimulated,
			UserID: user.ID,
			Data: map[string]any{
				"loan_id":        l.ID,
				"transaction_id": payout.TransactionID,
				"amount":         payout.Amount,
				"status":         payout.Status,
			},
			Channel:   channel,
			IPAddress: ip,
		})
	}

	return l, nil
}

// Repay applies a repayment to an open loan.
func (s *Service) Repay(ctx context.Context, user identity.User, loanID string, amount int64, channel, ip string) (Receipt, error) {
	if amount <= 0 {
		return Receipt{}, ErrInvalidAmount
	}

	lock := s.userLock(user.ID)
	lock.Lock()
	defer lock.Unlock()

	l, err := s.loans.FindByID(ctx, user.ID, loanID)
	if err != nil {
		return Receipt{}, err
	}
	if l.Status != StatusActive && l.Status != StatusOverdue {
		return Receipt{}, ErrInvalidLoanState
	}
	if amount > l.Remaining {
		return Receipt{}, ErrAmountExceedsRemaining
	}

	l.Remaining -= amount
	fully := l.Remaining == 0
	if fully {
		l.Status = StatusRepaid
		repaidAt := s.now().UTC()
		l.RepaidAt = &repaidAt
	}
	if err := s.loans.Update(ctx, l); err != nil {
		return Receipt{}, err
	}

	s.audit.Record(ctx, audit.Event{
		Kind:   audit.EventRepay,
		UserID: user.ID,
		Data: map[string]any{
			"loan_id":      l.ID,
			"paid":         amount,
			"remaining":    l.Remaining,
			"fully_repaid": fully,
		},
		Channel:   channel,
		IPAddress: ip,
	})

	msg := fmt.Sprintf("Payment of %d FCFA received. Remaining balance: %d FCFA", amount, l.Remaining)
	if fully {
		msg = fmt.Sprintf("Payment of %d FCFA received. Loan fully repaid, thank you", amount)
	}
	return Receipt{
		LoanID:      l.ID,
		Paid:        amount,
		Remaining:   l.Remaining,
		FullyRepaid: fully,
		Message:     msg,
	}, nil
}

// Status returns a single loan with derived due-date fields. Overdue is
// computed against the clock here even before the sweep persists it.
func (s *Service) Status(ctx context.Context, user identity.User, loanID string) (StatusView, error) {
	l, err := s.loans.FindByID(ctx, user.ID, loanID)
	if err != nil {
		return StatusView{}, err
	}
	return s.view(l), nil
}

// UserLoans returns the user's loan history, newest first.
func (s *Service) UserLoans(ctx context.Context, userID string) ([]Loan, error) {
	return s.loans.ListByUser(ctx, userID)
}

// OpenLoans returns the user's repayable loans, capped at limit.
func (s *Service) OpenLoans(ctx context.Context, userID string, limit int) ([]Loan, error) {
	all, err := s.loans.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var open []Loan
	for _, l := range all {
		if l.Status == StatusActive || l.Status == StatusOverdue {
			open = append(open, l)
			if limit > 0 && len(open) == limit {
				break
			}
		}
	}
	return open, nil
}

func (s *Service) view(l Loan) StatusView {
	v := StatusView{Loan: l}
	if l.DueDate != nil && !l.Status.Terminal() {
		remaining := l.DueDate.Sub(s.now())
		v.DaysRemaining = int(math.Floor(remaining.Hours() / 24))
		v.IsOverdue = v.DaysRemaining < 0
	}
	return v
}
