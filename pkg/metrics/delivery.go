package metrics

import "github.com/prometheus/client_golang/prometheus"

// DeliveryMetrics counts content delivery decisions by key class and outcome.
type DeliveryMetrics struct {
	decisions   *prometheus.CounterVec
	bytesServed *prometheus.CounterVec
}

// NewDeliveryMetrics registers the delivery counters on the provided registerer.
func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	if reg == nil {
		return &DeliveryMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundcrate",
		Name:      "delivery_decisions_total",
		Help:      "Content delivery authorization decisions.",
	}, []string{"class", "outcome"})
	bytesServed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundcrate",
		Name:      "delivery_bytes_total",
		Help:      "Bytes streamed to clients by key class.",
	}, []string{"class"})
	reg.MustRegister(decisions, bytesServed)
	return &DeliveryMetrics{decisions: decisions, bytesServed: bytesServed}
}

// IncDecision records one authorization decision.
func (d *DeliveryMetrics) IncDecision(class, outcome string) {
	if d == nil || d.decisions == nil {
		return
	}
	d.decisions.WithLabelValues(normalizeLabel(class), normalizeLabel(outcome)).Inc()
}

// AddBytes records bytes streamed for the given class.
func (d *DeliveryMetrics) AddBytes(class string, n int64) {
	if d == nil || d.bytesServed == nil || n <= 0 {
		return
	}
	d.bytesServed.WithLabelValues(normalizeLabel(class)).Add(float64(n))
}

// PurchaseMetrics counts purchase confirmation outcomes.
type PurchaseMetrics struct {
	confirmations *prometheus.CounterVec
}

// NewPurchaseMetrics registers the purchase counters on the provided registerer.
func NewPurchaseMetrics(reg prometheus.Registerer) *PurchaseMetrics {
	if reg == nil {
		return &PurchaseMetrics{}
	}
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundcrate",
		Name:      "purchase_confirmations_total",
		Help:      "Purchase confirmation attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(confirmations)
	return &PurchaseMetrics{confirmations: confirmations}
}

// IncConfirmation records one confirmation attempt outcome.
func (p *PurchaseMetrics) IncConfirmation(outcome string) {
	if p == nil || p.confirmations == nil {
		return
	}
	p.confirmations.WithLabelValues(normalizeLabel(outcome)).Inc()
}
