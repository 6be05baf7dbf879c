package scoring

import (
	"fmt"
	"strings"

	"github.com/lisalisi-cash/lisalisi_cash/internal/mobilemoney"
)

// Score bounds and composition base.
const (
	ScoreVersion = "1.0"
	MinScore     = 0
	MaxScore     = 1000
	baseScore    = 500
)

// AgeFactor scores the age of the subscriber's account.
type AgeFactor struct {
	Days      int `json:"days"`
	Points    int `json:"points"`
	MaxPoints int `json:"max_points"`
}

// UsageFactor scores how often the subscriber uses the service across both
// channels.
type UsageFactor struct {
	Interactions int `json:"interactions"`
	Points       int `json:"points"`
	MaxPoints    int `json:"max_points"`
}

// HistoryFactor scores past repayment behavior.
type HistoryFactor struct {
	TotalLoans   int `json:"total_loans"`
	RepaidLoans  int `json:"repaid_loans"`
	OverdueLoans int `json:"overdue_loans"`
	Points       int `json:"points"`
	MaxPoints    int `json:"max_points"`
}

// ExternalFactor scores the aggregated mobile money signals.
type ExternalFactor struct {
	AccountAgeMonths   int     `json:"mm_account_age_months"`
	MonthlyVolumeAvg   int64   `json:"mm_monthly_volume_avg"`
	ActivityRegularity float64 `json:"mm_activity_regularity"`
	Points             int     `json:"points"`
	MaxPoints          int     `json:"max_points"`
}

// PenaltyFactor is the deduction applied while a loan is open.
type PenaltyFactor struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// Factors is the full, explainable score breakdown.
type Factors struct {
	AccountAge        AgeFactor       `json:"account_age"`
	UsageFrequency    UsageFactor     `json:"usage_frequency"`
	CreditHistory     HistoryFactor   `json:"credit_history"`
	ExternalData      ExternalFactor  `json:"external_data"`
	ActiveLoanPenalty *PenaltyFactor  `json:"active_loan_penalty,omitempty"`
}

func agePoints(days int) int {
	switch {
	case days >= 365:
		return 150
	case days >= 180:
		return 100
	case days >= 90:
		return 50
	case days >= 30:
		return 25
	default:
		return 0
	}
}

func usagePoints(interactions int) int {
	switch {
	case interactions >= 50:
		return 100
	case interactions >= 30:
		return 75
	case interactions >= 20:
		return 50
	case interactions >= 10:
		return 25
	default:
		return 0
	}
}

func historyPoints(total, repaid, overdue int) int {
	if total == 0 {
		return 0
	}
	rate := float64(repaid) / float64(total)
	var points int
	switch {
	case rate >= 0.9 && overdue == 0:
		points = 150
	case rate >= 0.7 && overdue == 0:
		points = 100
	case rate >= 0.5:
		points = 50
	}
	if overdue > 0 {
		points -= overdue * 50
		if points < 0 {
			points = 0
		}
	}
	return points
}

func externalPoints(sig mobilemoney.Signals) int {
	var agePoints int
	switch {
	case sig.AccountAgeMonths >= 24:
		agePoints = 40
	case sig.AccountAgeMonths >= 12:
		agePoints = 30
	case sig.AccountAgeMonths >= 6:
		agePoints = 20
	case sig.AccountAgeMonths >= 3:
		agePoints = 10
	}

	volumeScore := float64(sig.MonthlyVolumeAvg) / 100_000 * 10
	if volumeScore > 30 {
		volumeScore = 30
	}
	regularityScore := sig.ActivityRegularity * 30
	activityPoints := int(volumeScore + regularityScore)

	return agePoints + activityPoints
}

// clamp bounds a score to [MinScore, MaxScore].
func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// ceilingTiers maps score thresholds to loan ceilings, highest first. The
// ceiling is monotonically non-decreasing in score.
var ceilingTiers = []struct {
	threshold int
	amount    int64
}{
	{800, 500_000},
	{700, 300_000},
	{600, 200_000},
	{500, 100_000},
	{400, 50_000},
	{0, 10_000},
}

// MaxLoanAmount returns the loan ceiling for the highest tier the score meets.
func MaxLoanAmount(score int) int64 {
	for _, tier := range ceilingTiers {
		if score >= tier.threshold {
			return tier.amount
		}
	}
	return ceilingTiers[len(ceilingTiers)-1].amount
}

// buildExplanation assembles the human-readable score rationale from a factor
// breakdown, one clause per factor that contributed points.
func buildExplanation(f Factors) string {
	var clauses []string

	if f.AccountAge.Points > 0 {
		clauses = append(clauses, fmt.Sprintf("Account active for %d days", f.AccountAge.Days))
	}
	if f.UsageFrequency.Points > 0 {
		clauses = append(clauses, fmt.Sprintf("Regular usage (%d interactions)", f.UsageFrequency.Interactions))
	}
	if f.CreditHistory.Points > 0 {
		clauses = append(clauses, fmt.Sprintf("Positive history (%d/%d loans repaid)", f.CreditHistory.RepaidLoans, f.CreditHistory.TotalLoans))
	}
	if f.ExternalData.Points > 0 {
		clauses = append(clauses, "Favourable mobile money activity")
	}
	if f.ActiveLoanPenalty != nil {
		clauses = append(clauses, "An active loan limits new credit")
	}

	if len(clauses) == 0 {
		clauses = append(clauses, "Base score - profile under construction")
	}

	return strings.Join(clauses, ". ") + "."
}
