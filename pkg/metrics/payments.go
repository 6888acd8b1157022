package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records gateway charge and refund outcomes.
type PaymentMetrics struct {
	chargeDuration *prometheus.HistogramVec
	outcomes       *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	chargeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_call_duration_seconds",
		Help:    "Duration of payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_outcomes_total",
		Help: "Payment transactions by final status.",
	}, []string{"status"})
	reg.MustRegister(chargeDuration, outcomes)
	return &PaymentMetrics{
		chargeDuration: chargeDuration,
		outcomes:       outcomes,
	}
}

// ObserveGatewayCall records the latency of a charge or refund call.
func (p *PaymentMetrics) ObserveGatewayCall(operation string, duration time.Duration) {
	if p == nil || p.chargeDuration == nil {
		return
	}
	p.chargeDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncOutcome counts a payment reaching a final status.
func (p *PaymentMetrics) IncOutcome(status string) {
	if p == nil || p.outcomes == nil {
		return
	}
	p.outcomes.WithLabelValues(normalizeLabel(status)).Inc()
}
