package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values shared by the checkout counters.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeBusy      = "busy"
	OutcomeInvalid   = "invalid"
	unknownLabelName = "unknown"
)

// CheckoutMetrics records cart mutations, coupon validations and order submissions.
type CheckoutMetrics struct {
	cartMutations     *prometheus.CounterVec
	couponValidations *prometheus.CounterVec
	submissions       *prometheus.CounterVec
	submitDuration    prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
// A nil registerer yields a recorder that drops every observation.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations applied, by operation.",
	}, []string{"op"})
	couponValidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_coupon_validations_total",
		Help: "Coupon validation attempts, by outcome.",
	}, []string{"outcome"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_order_submissions_total",
		Help: "Order submissions, by outcome and payment method.",
	}, []string{"outcome", "payment_method"})
	submitDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_order_submit_duration_seconds",
		Help:    "Latency of the order submission call in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(cartMutations, couponValidations, submissions, submitDuration)
	return &CheckoutMetrics{
		cartMutations:     cartMutations,
		couponValidations: couponValidations,
		submissions:       submissions,
		submitDuration:    submitDuration,
	}
}

// IncCartMutation counts one applied cart mutation.
func (m *CheckoutMetrics) IncCartMutation(op string) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncCouponValidation counts one coupon validation attempt.
func (m *CheckoutMetrics) IncCouponValidation(outcome string) {
	if m == nil || m.couponValidations == nil {
		return
	}
	m.couponValidations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveSubmission counts one order submission and records its latency when positive.
func (m *CheckoutMetrics) ObserveSubmission(outcome, paymentMethod string, duration time.Duration) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(outcome), normalizeLabel(paymentMethod)).Inc()
	if duration > 0 {
		m.submitDuration.Observe(duration.Seconds())
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return unknownLabelName
	}
	return v
}
