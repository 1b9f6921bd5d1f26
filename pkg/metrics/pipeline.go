package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics counts checkout, reservation and lifecycle outcomes.
type PipelineMetrics struct {
	checkouts    *prometheus.CounterVec
	reservations *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	restocks     prometheus.Counter
	merges       prometheus.Counter
}

// NewPipelineMetrics registers the order pipeline metrics on reg. A nil
// registerer yields a no-op recorder.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkouts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_stock_reservations_total",
		Help: "Stock reservation batches by result.",
	}, []string{"result"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_transitions_total",
		Help: "Applied order lifecycle transitions.",
	}, []string{"field", "to"})
	restocks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_restocks_total",
		Help: "Orders whose reserved stock was restored.",
	})
	merges := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cart_merges_total",
		Help: "Guest carts merged into user carts.",
	})
	reg.MustRegister(checkouts, reservations, transitions, restocks, merges)
	return &PipelineMetrics{
		checkouts:    checkouts,
		reservations: reservations,
		transitions:  transitions,
		restocks:     restocks,
		merges:       merges,
	}
}

func (p *PipelineMetrics) IncCheckout(outcome string) {
	if p == nil || p.checkouts == nil {
		return
	}
	p.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (p *PipelineMetrics) IncReservation(result string) {
	if p == nil || p.reservations == nil {
		return
	}
	p.reservations.WithLabelValues(normalizeLabel(result)).Inc()
}

func (p *PipelineMetrics) IncTransition(field, to string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(normalizeLabel(field), normalizeLabel(to)).Inc()
}

func (p *PipelineMetrics) IncRestock() {
	if p == nil || p.restocks == nil {
		return
	}
	p.restocks.Inc()
}

func (p *PipelineMetrics) IncMerge() {
	if p == nil || p.merges == nil {
		return
	}
	p.merges.Inc()
}
