package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/lisalisi-cash/lisalisi_cash/internal/identity"
	"github.com/lisalisi-cash/lisalisi_cash/internal/mobilemoney"
)

// LoanCounts summarises a user's loan book for scoring purposes.
type LoanCounts struct {
	Total   int
	Repaid  int
	Overdue int
	// HasOpen is true while any non-terminal loan is outstanding,
	// overdue ones included.
	HasOpen bool
}

// LoanBook provides the credit-history inputs without coupling the engine to
// loan storage.
type LoanBook interface {
	Counts(ctx context.Context, userID string) (LoanCounts, error)
}

// Result is the outcome of a score computation.
type Result struct {
	Score         int
	ScoreVersion  string
	MaxLoanAmount int64
	IsFirstLoan   bool
	Explanation   string
	Factors       Factors
}

// Engine computes bounded, explainable credit scores. Identical inputs always
// yield an identical score, breakdown and explanation.
type Engine struct {
	snapshots SnapshotRepository
	loans     LoanBook
	signals   mobilemoney.SignalSource
	now       func() time.Time
}

// NewEngine creates a scoring engine.
func NewEngine(snapshots SnapshotRepository, loans LoanBook, signals mobilemoney.SignalSource) *Engine {
	return &Engine{snapshots: snapshots, loans: loans, signals: signals, now: time.Now}
}

// Compute returns the user's score. With force=false an existing snapshot is
// returned as-is: the ceiling, first-loan flag and explanation are rebuilt
// from the stored fields, but no factor is recomputed. With force=true the
// score is recomputed from live data and the snapshot replaced.
func (e *Engine) Compute(ctx context.Context, user identity.User, force bool) (Result, error) {
	if !force {
		snap, err := e.snapshots.Get(ctx, user.ID)
		if err == nil {
			return e.cachedResult(snap), nil
		}
		if !errors.Is(err, ErrSnapshotNotFound) {
			return Result{}, err
		}
	}
	return e.computeFresh(ctx, user)
}

// cachedResult rebuilds a Result from the stored snapshot. The explanation
// comes from the stored breakdown, so it can lag behind live data until the
// next forced recomputation.
func (e *Engine) cachedResult(snap Snapshot) Result {
	return Result{
		Score:         snap.Score,
		ScoreVersion:  snap.ScoreVersion,
		MaxLoanAmount: MaxLoanAmount(snap.Score),
		IsFirstLoan:   snap.TotalLoans == 0,
		Explanation:   buildExplanation(snap.Factors),
		Factors:       snap.Factors,
	}
}

func (e *Engine) computeFresh(ctx context.Context, user identity.User) (Result, error) {
	counts, err := e.loans.Counts(ctx, user.ID)
	if err != nil {
		return Result{}, err
	}

	accountAgeDays := int(e.now().Sub(user.CreatedAt).Hours() / 24)
	interactions := user.USSDUsageCount + user.AppUsageCount
	signals := e.signals.Signals(user.MSISDN)

	score := baseScore
	factors := Factors{
		AccountAge: AgeFactor{
			Days:      accountAgeDays,
			Points:    agePoints(accountAgeDays),
			MaxPoints: 150,
		},
		UsageFrequency: UsageFactor{
			Interactions: interactions,
			Points:       usagePoints(interactions),
			MaxPoints:    100,
		},
		CreditHistory: HistoryFactor{
			TotalLoans:   counts.Total,
			RepaidLoans:  counts.Repaid,
			OverdueLoans: counts.Overdue,
			Points:       historyPoints(counts.Total, counts.Repaid, counts.Overdue),
			MaxPoints:    150,
		},
		ExternalData: ExternalFactor{
			AccountAgeMonths:   signals.AccountAgeMonths,
			MonthlyVolumeAvg:   signals.MonthlyVolumeAvg,
			ActivityRegularity: signals.ActivityRegularity,
			Points:             externalPoints(signals),
			MaxPoints:          100,
		},
	}
	score += factors.AccountAge.Points
	score += factors.UsageFrequency.Points
	score += factors.CreditHistory.Points
	score += factors.ExternalData.Points

	if counts.HasOpen {
		factors.ActiveLoanPenalty = &PenaltyFactor{
			Points: -200,
			Reason: "An active loan reduces the score",
		}
		score -= 200
	}

	score = clamp(score)

	snap := Snapshot{
		UserID:         user.ID,
		AccountAgeDays: accountAgeDays,
		USSDUsageCount: user.USSDUsageCount,
		AppUsageCount:  user.AppUsageCount,
		TotalLoans:     counts.Total,
		RepaidLoans:    counts.Repaid,
		OverdueLoans:   counts.Overdue,
		Signals:        signals,
		Score:          score,
		ScoreVersion:   ScoreVersion,
		Factors:        factors,
		CalculatedAt:   e.now().UTC(),
	}
	if err := e.snapshots.Save(ctx, snap); err != nil {
		return Result{}, err
	}

	return Result{
		Score:         score,
		ScoreVersion:  ScoreVersion,
		MaxLoanAmount: MaxLoanAmount(score),
		IsFirstLoan:   counts.Total == 0,
		Explanation:   buildExplanation(factors),
		Factors:       factors,
	}, nil
}
