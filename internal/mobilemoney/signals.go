package mobilemoney

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// Signals are the aggregated mobile money behavioral indicators used by the
// scoring engine.
type Signals struct {
	AccountAgeMonths   int     `json:"mm_account_age_months"`
	MonthlyVolumeAvg   int64   `json:"mm_monthly_volume_avg"`
	MonthlyTxAvg       int     `json:"mm_monthly_transactions_avg"`
	ActivityRegularity float64 `json:"mm_activity_regularity"`
}

// SignalSource provides behavioral signals for a subscriber. Implementations
// must be deterministic per MSISDN so that scores are reproducible.
type SignalSource interface {
	Signals(msisdn string) Signals
}

// SimulatedSource derives stable pseudo-random signals from the MSISDN. It
// stands in for a telecom provider connector.
type SimulatedSource struct{}

// Signals returns the simulated indicators for the subscriber. The generator
// is seeded from the MSISDN, so repeated calls yield identical values.
func (SimulatedSource) Signals(msisdn string) Signals {
	h := fnv.New64a()
	h.Write([]byte(msisdn))
	rng := rand.New(rand.NewSource(int64(h.Sum64() % 1_000_000)))

	ageMonths := 1 + rng.Intn(60)

	// Older accounts trend towards higher volume and steadier activity.
	baseVolume := int64(50_000 + rng.Intn(450_001))
	volumeMultiplier := 1 + float64(ageMonths)/60*0.5
	monthlyVolume := int64(float64(baseVolume) * volumeMultiplier)

	monthlyTx := 5 + rng.Intn(46)

	baseRegularity := 0.3 + rng.Float64()*0.6
	boost := math.Min(float64(ageMonths)/60*0.2, 0.2)
	regularity := math.Min(baseRegularity+boost, 1.0)
	regularity = math.Round(regularity*100) / 100

	return Signals{
		AccountAgeMonths:   ageMonths,
		MonthlyVolumeAvg:   monthlyVolume,
		MonthlyTxAvg:       monthlyTx,
		ActivityRegularity: regularity,
	}
}
