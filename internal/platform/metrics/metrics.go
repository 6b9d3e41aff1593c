package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP and ledger metrics shared across modules.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	LedgerBlocks    prometheus.Gauge
	LedgerValid     prometheus.Gauge
	ValidateLatency prometheus.Histogram
	RateLimited     prometheus.Counter
}

// New creates and registers the platform metrics.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ballot_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),

		LedgerBlocks: f.NewGauge(prometheus.GaugeOpts{
			Name: "ballot_ledger_blocks",
			Help: "Number of blocks in the ledger, genesis included",
		}),

		LedgerValid: f.NewGauge(prometheus.GaugeOpts{
			Name: "ballot_ledger_valid",
			Help: "1 if the last chain validation passed, 0 otherwise",
		}),

		ValidateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ballot_ledger_validate_duration_seconds",
			Help:    "Duration of a full chain validation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "ballot_http_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limit",
		}),
	}
}

func (m *Metrics) ObserveRequest(route, method, status string, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
	}
}

// ObserveValidation records a chain walk and its result.
func (m *Metrics) ObserveValidation(blocks int, valid bool, d time.Duration) {
	if m == nil {
		return
	}
	m.LedgerBlocks.Set(float64(blocks))
	if valid {
		m.LedgerValid.Set(1)
	} else {
		m.LedgerValid.Set(0)
	}
	m.ValidateLatency.Observe(d.Seconds())
}

func (m *Metrics) IncrementRateLimited() {
	if m != nil {
		m.RateLimited.Inc()
	}
}
