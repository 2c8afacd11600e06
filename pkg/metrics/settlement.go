package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records payment and refund outcomes per instrument.
type SettlementMetrics struct {
	payments       *prometheus.CounterVec
	paymentAmounts *prometheus.HistogramVec
	refunds        *prometheus.CounterVec
	voids          prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_payments_total",
		Help: "Payment attempts by method and outcome.",
	}, []string{"method", "outcome"})
	paymentAmounts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_payment_amount_cents",
		Help:    "Completed payment amounts in cents.",
		Buckets: prometheus.ExponentialBuckets(100, 4, 8),
	}, []string{"method"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_refunds_total",
		Help: "Refunds by method and outcome.",
	}, []string{"method", "outcome"})
	voids := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_voids_total",
		Help: "Voided transactions.",
	})
	reg.MustRegister(payments, paymentAmounts, refunds, voids)
	return &SettlementMetrics{
		payments:       payments,
		paymentAmounts: paymentAmounts,
		refunds:        refunds,
		voids:          voids,
	}
}

// ObservePayment records a payment attempt outcome and, when completed, its amount.
func (m *SettlementMetrics) ObservePayment(method string, completed bool, amountCents int64) {
	if m == nil || m.payments == nil {
		return
	}
	outcome := "failed"
	if completed {
		outcome = "completed"
		m.paymentAmounts.WithLabelValues(method).Observe(float64(amountCents))
	}
	m.payments.WithLabelValues(method, outcome).Inc()
}

// ObserveRefund records a refund outcome.
func (m *SettlementMetrics) ObserveRefund(method string, completed bool) {
	if m == nil || m.refunds == nil {
		return
	}
	outcome := "failed"
	if completed {
		outcome = "completed"
	}
	m.refunds.WithLabelValues(method, outcome).Inc()
}

// ObserveVoid records a voided transaction.
func (m *SettlementMetrics) ObserveVoid() {
	if m == nil || m.voids == nil {
		return
	}
	m.voids.Inc()
}
