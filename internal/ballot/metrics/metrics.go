package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for vote casting.
type Metrics struct {
	// Vote outcomes: accepted or the rejection reason
	VoteOutcomes *prometheus.CounterVec

	// End-to-end CastVote latency
	CastLatency prometheus.Histogram

	// Time spent waiting for the ledger-wide critical section
	LockWait prometheus.Histogram

	// Accepted votes whose has_voted write failed and awaits reconciliation
	VoterStatusWriteFailures prometheus.Counter

	// Journal writes that failed after commit
	JournalFailures prometheus.Counter

	// Voter records corrected from the chain
	Reconciled prometheus.Counter
}

// New creates and registers the ballot metrics.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		VoteOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ballot_vote_outcomes_total",
			Help: "Total cast-vote outcomes by result",
		}, []string{"outcome"}),

		CastLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ballot_cast_vote_duration_seconds",
			Help:    "Duration of CastVote including identity check and critical section",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		LockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ballot_critical_section_wait_seconds",
			Help:    "Time spent waiting to enter the ledger-wide critical section",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		VoterStatusWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ballot_voter_status_write_failures_total",
			Help: "Accepted votes whose voter status update failed",
		}),

		JournalFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ballot_journal_failures_total",
			Help: "Ledger journal writes that failed after a vote committed",
		}),

		Reconciled: f.NewCounter(prometheus.CounterOpts{
			Name: "ballot_voters_reconciled_total",
			Help: "Voter records whose has_voted flag was restored from the ledger",
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.VoteOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveCastLatency(d time.Duration) {
	if m != nil {
		m.CastLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m != nil {
		m.LockWait.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementVoterStatusWriteFailure() {
	if m != nil {
		m.VoterStatusWriteFailures.Inc()
	}
}

func (m *Metrics) IncrementJournalFailure() {
	if m != nil {
		m.JournalFailures.Inc()
	}
}

func (m *Metrics) AddReconciled(n int) {
	if m != nil && n > 0 {
		m.Reconciled.Add(float64(n))
	}
}
