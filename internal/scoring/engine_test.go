package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lisalisi-cash/lisalisi_cash/internal/identity"
	"github.com/lisalisi-cash/lisalisi_cash/internal/mobilemoney"
)

type stubLoanBook struct {
	counts LoanCounts
}

func (s stubLoanBook) Counts(context.Context, string) (LoanCounts, error) {
	return s.counts, nil
}

type stubSignals struct {
	sig mobilemoney.Signals
}

func (s stubSignals) Signals(string) mobilemoney.Signals {
	return s.sig
}

func newTestEngine(counts LoanCounts, sig mobilemoney.Signals, now time.Time) *Engine {
	e := NewEngine(NewMemorySnapshots(), stubLoanBook{counts: counts}, stubSignals{sig: sig})
	e.now = func() time.Time { return now }
	return e
}

func testUser(createdAt time.Time) identity.User {
	return identity.User{
		ID:        "6d7b7a24-34b2-4f25-9b3c-0a8a6f6f2a01",
		MSISDN:    "242061234567",
		CreatedAt: createdAt,
	}
}

func TestComputeNewUserBaseline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(LoanCounts{}, mobilemoney.Signals{}, now)

	result, err := e.Compute(context.Background(), testUser(now), true)
	require.NoError(t, err)

	assert.Equal(t, 500, result.Score)
	assert.Equal(t, int64(100_000), result.MaxLoanAmount)
	assert.True(t, result.IsFirstLoan)
	assert.Equal(t, "Base score - profile under construction.", result.Explanation)
	assert.Equal(t, ScoreVersion, result.ScoreVersion)
	assert.Nil(t, result.Factors.ActiveLoanPenalty)
}

func TestComputeDeterminism(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sig := mobilemoney.Signals{AccountAgeMonths: 18, MonthlyVolumeAvg: 250_000, ActivityRegularity: 0.8}
	counts := LoanCounts{Total: 3, Repaid: 3}
	user := testUser(now.AddDate(-1, 0, 0))
	user.USSDUsageCount = 20
	user.AppUsageCount = 15

	first, err := newTestEngine(counts, sig, now).Compute(context.Background(), user, true)
	require.NoError(t, err)
	second, err := newTestEngine(counts, sig, now).Compute(context.Background(), user, true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeFactorSum(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sig := mobilemoney.Signals{AccountAgeMonths: 24, MonthlyVolumeAvg: 400_000, ActivityRegularity: 1.0}
	counts := LoanCounts{Total: 5, Repaid: 5}
	user := testUser(now.AddDate(-2, 0, 0))
	user.USSDUsageCount = 30
	user.AppUsageCount = 25

	result, err := newTestEngine(counts, sig, now).Compute(context.Background(), user, true)
	require.NoError(t, err)

	// 500 + 150 (age) + 100 (usage) + 150 (history) + 100 (external) = 1000
	assert.Equal(t, 1000, result.Score)
	assert.Equal(t, int64(500_000), result.MaxLoanAmount)
	assert.Equal(t, 150, result.Factors.AccountAge.Points)
	assert.Equal(t, 100, result.Factors.UsageFrequency.Points)
	assert.Equal(t, 150, result.Factors.CreditHistory.Points)
	assert.Equal(t, 100, result.Factors.ExternalData.Points)
}

func TestComputeActiveLoanPenalty(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(LoanCounts{Total: 1, HasOpen: true}, mobilemoney.Signals{}, now)

	result, err := e.Compute(context.Background(), testUser(now), true)
	require.NoError(t, err)

	assert.Equal(t, 300, result.Score)
	require.NotNil(t, result.Factors.ActiveLoanPenalty)
	assert.Equal(t, -200, result.Factors.ActiveLoanPenalty.Points)
	assert.False(t, result.IsFirstLoan)
	assert.Contains(t, result.Explanation, "An active loan limits new credit")
}

func TestComputeCachedVsFresh(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	snapshots := NewMemorySnapshots()
	sig := mobilemoney.Signals{}
	user := testUser(now)

	book := &mutableLoanBook{}
	e := NewEngine(snapshots, book, stubSignals{sig: sig})
	e.now = func() time.Time { return now }

	fresh, err := e.Compute(context.Background(), user, true)
	require.NoError(t, err)
	assert.Equal(t, 500, fresh.Score)

	// Live data changes; the cached read must still serve the snapshot.
	book.counts = LoanCounts{Total: 2, Repaid: 2}
	cached, err := e.Compute(context.Background(), user, false)
	require.NoError(t, err)
	assert.Equal(t, fresh.Score, cached.Score)
	assert.Equal(t, fresh.Explanation, cached.Explanation)
	assert.True(t, cached.IsFirstLoan)

	recomputed, err := e.Compute(context.Background(), user, true)
	require.NoError(t, err)
	assert.Equal(t, 650, recomputed.Score) // history now contributes 150
	assert.False(t, recomputed.IsFirstLoan)
}

type mutableLoanBook struct {
	counts LoanCounts
}

func (m *mutableLoanBook) Counts(context.Context, string) (LoanCounts, error) {
	return m.counts, nil
}

func TestAgePoints(t *testing.T) {
	cases := []struct {
		days int
		want int
	}{
		{0, 0}, {29, 0}, {30, 25}, {89, 25}, {90, 50}, {179, 50}, {180, 100}, {364, 100}, {365, 150}, {1000, 150},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, agePoints(tc.days), "days=%d", tc.days)
	}
}

func TestUsagePoints(t *testing.T) {
	cases := []struct {
		interactions int
		want         int
	}{
		{0, 0}, {9, 0}, {10, 25}, {19, 25}, {20, 50}, {29, 50}, {30, 75}, {49, 75}, {50, 100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, usagePoints(tc.interactions), "interactions=%d", tc.interactions)
	}
}

func TestHistoryPoints(t *testing.T) {
	cases := []struct {
		name                   string
		total, repaid, overdue int
		want                   int
	}{
		{"no loans", 0, 0, 0, 0},
		{"perfect record", 10, 10, 0, 150},
		{"good record", 10, 8, 0, 100},
		{"average record", 10, 5, 0, 50},
		{"poor record", 10, 2, 0, 0},
		{"perfect rate with overdue", 10, 9, 1, 0},
		{"average with one overdue", 10, 5, 1, 0},
		{"floor at zero", 4, 2, 3, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, historyPoints(tc.total, tc.repaid, tc.overdue))
		})
	}
}

func TestExternalPoints(t *testing.T) {
	// 40 (age) + 30 (volume capped) + 30 (regularity) = 100
	full := mobilemoney.Signals{AccountAgeMonths: 36, MonthlyVolumeAvg: 900_000, ActivityRegularity: 1.0}
	assert.Equal(t, 100, externalPoints(full))

	assert.Equal(t, 0, externalPoints(mobilemoney.Signals{}))

	partial := mobilemoney.Signals{AccountAgeMonths: 6, MonthlyVolumeAvg: 100_000, ActivityRegularity: 0.5}
	// 20 + int(10 + 15) = 45
	assert.Equal(t, 45, externalPoints(partial))
}

func TestMaxLoanAmountMonotonic(t *testing.T) {
	prev := int64(0)
	for score := MinScore; score <= MaxScore; score++ {
		amount := MaxLoanAmount(score)
		assert.GreaterOrEqual(t, amount, prev, "score=%d", score)
		prev = amount
	}
	assert.Equal(t, int64(10_000), MaxLoanAmount(0))
	assert.Equal(t, int64(50_000), MaxLoanAmount(400))
	assert.Equal(t, int64(100_000), MaxLoanAmount(500))
	assert.Equal(t, int64(200_000), MaxLoanAmount(600))
	assert.Equal(t, int64(300_000), MaxLoanAmount(700))
	assert.Equal(t, int64(500_000), MaxLoanAmount(800))
}

func TestClampBounds(t *testing.T) {
	assert.Equal(t, MinScore, clamp(-100))
	assert.Equal(t, MaxScore, clamp(1500))
	assert.Equal(t, 640, clamp(640))
}
