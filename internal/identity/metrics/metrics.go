package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for identity verification.
type Metrics struct {
	// Verification results: verified, rejected, locked_out, timeout, error
	Results *prometheus.CounterVec

	// Latency of the upstream verifier call
	VerifyLatency prometheus.Histogram
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Results: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ballot_identity_verifications_total",
			Help: "Identity verification attempts by result",
		}, []string{"result"}),

		VerifyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ballot_identity_verify_duration_seconds",
			Help:    "Duration of face verification calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) IncrementResult(result string) {
	if m != nil {
		m.Results.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}
