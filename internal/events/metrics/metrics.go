package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks block event delivery.
type Metrics struct {
	Published       *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	Dropped         prometheus.Counter
	Fallback        prometheus.Gauge
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ballot_block_events_published_total",
			Help: "Block events delivered, by sink",
		}, []string{"sink"}),
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ballot_block_events_publish_failures_total",
			Help: "Block event delivery failures, by sink",
		}, []string{"sink"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "ballot_block_events_dropped_total",
			Help: "Block events dropped because the queue was full",
		}),
		Fallback: f.NewGauge(prometheus.GaugeOpts{
			Name: "ballot_block_events_fallback_active",
			Help: "1 while events are diverted to the fallback sink",
		}),
	}
}

func (m *Metrics) IncrementPublished(sink string) {
	if m != nil {
		m.Published.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) IncrementPublishFailure(sink string) {
	if m != nil {
		m.PublishFailures.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) SetFallback(active bool) {
	if m == nil {
		return
	}
	if active {
		m.Fallback.Set(1)
	} else {
		m.Fallback.Set(0)
	}
}
