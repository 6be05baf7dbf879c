package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the credit platform. A nil receiver is
// a no-op, so wiring metrics stays optional in tests.
type Metrics struct {
	// Registered users by channel
	UsersRegistered *prometheus.CounterVec

	// Loan decisions by outcome and channel
	LoanDecisions *prometheus.CounterVec

	// Repayments, split by full vs partial
	Repayments *prometheus.CounterVec

	// Incoming USSD requests by terminal vs continuation reply
	USSDRequests *prometheus.CounterVec

	// Score computations by cache hit vs fresh
	ScoreComputations *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered on the
// default registry. Call it once per process.
func New() *Metrics {
	return &Metrics{
		UsersRegistered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lisalisi_users_registered_total",
			Help: "Total user registrations by channel",
		}, []string{"channel"}),

		LoanDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lisalisi_loan_decisions_total",
			Help: "Total loan decisions by outcome and channel",
		}, []string{"status", "channel"}),

		Repayments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lisalisi_repayments_total",
			Help: "Total repayments, labelled full or partial",
		}, []string{"kind"}),

		USSDRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lisalisi_ussd_requests_total",
			Help: "Total USSD requests by reply type",
		}, []string{"reply"}),

		ScoreComputations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lisalisi_score_computations_total",
			Help: "Total score computations, labelled cached or fresh",
		}, []string{"mode"}),
	}
}

// IncUserRegistered records a successful registration.
func (m *Metrics) IncUserRegistered(channel string) {
	if m != nil {
		m.UsersRegistered.WithLabelValues(channel).Inc()
	}
}

// IncLoanDecision records a loan decision outcome.
func (m *Metrics) IncLoanDecision(status, channel string) {
	if m != nil {
		m.LoanDecisions.WithLabelValues(status, channel).Inc()
	}
}

// IncRepayment records a repayment.
func (m *Metrics) IncRepayment(full bool) {
	if m != nil {
		kind := "partial"
		if full {
			kind = "full"
		}
		m.Repayments.WithLabelValues(kind).Inc()
	}
}

// IncUSSDRequest records a processed USSD request.
func (m *Metrics) IncUSSDRequest(end bool) {
	if m != nil {
		reply := "continue"
		if end {
			reply = "end"
		}
		m.USSDRequests.WithLabelValues(reply).Inc()
	}
}

// IncScoreComputation records a score read.
func (m *Metrics) IncScoreComputation(cached bool) {
	if m != nil {
		mode := "fresh"
		if cached {
			mode = "cached"
		}
		m.ScoreComputations.WithLabelValues(mode).Inc()
	}
}
