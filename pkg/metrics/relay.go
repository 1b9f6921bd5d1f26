package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes recorded by RelayMetrics.ObserveDelivery.
const (
	DeliveryPublished = "published"
	DeliveryRetried   = "retried"
	DeliveryParked    = "parked"
)

// RelayMetrics covers the outbox publisher.
type RelayMetrics struct {
	deliveries *prometheus.CounterVec
	batches    prometheus.Histogram
	batchErrs  prometheus.Counter
}

// NewRelayMetrics registers on reg. A nil registerer yields a no-op recorder.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	m := &RelayMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_outbox_deliveries_total",
			Help: "Outbox rows handled by the relay, by outcome.",
		}, []string{"event_type", "outcome"}),
		batches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_outbox_batch_duration_seconds",
			Help:    "Time spent relaying one non-empty outbox batch.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		batchErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_outbox_batch_errors_total",
			Help: "Outbox batches rolled back on error.",
		}),
	}
	reg.MustRegister(m.deliveries, m.batches, m.batchErrs)
	return m
}

func (r *RelayMetrics) ObserveDelivery(eventType, outcome string) {
	if r == nil || r.deliveries == nil {
		return
	}
	r.deliveries.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveBatch records a batch that began at started. Empty polls are not
// observed so the histogram reflects real work.
func (r *RelayMetrics) ObserveBatch(started time.Time, size int, err error) {
	if r == nil || r.batches == nil {
		return
	}
	if err != nil {
		r.batchErrs.Inc()
		return
	}
	if size == 0 {
		return
	}
	r.batches.Observe(time.Since(started).Seconds())
}
