package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Order outcomes recorded by CheckoutMetrics.
const (
	OutcomePlaced     = "placed"
	OutcomeRolledBack = "rolled_back"
	OutcomeRejected   = "rejected"
)

// CheckoutMetrics records cart and order activity. A nil receiver is a no-op.
type CheckoutMetrics struct {
	cartMutations    *prometheus.CounterVec
	discountApplied  *prometheus.CounterVec
	wizardTransition *prometheus.CounterVec
	orders           *prometheus.CounterVec
	submitDuration   *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_mutations_total",
		Help:      "Cart mutations by operation.",
	}, []string{"op"})
	discountApplied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discount_applications_total",
		Help:      "Discount code applications by result.",
	}, []string{"result"})
	wizardTransition := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_step_entered_total",
		Help:      "Checkout wizard steps entered.",
	}, []string{"step"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_total",
		Help:      "Order submissions by outcome.",
	}, []string{"outcome"})
	submitDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "order_submit_duration_seconds",
		Help:      "Duration of order submission in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(cartMutations, discountApplied, wizardTransition, orders, submitDuration)
	return &CheckoutMetrics{
		cartMutations:    cartMutations,
		discountApplied:  discountApplied,
		wizardTransition: wizardTransition,
		orders:           orders,
		submitDuration:   submitDuration,
	}
}

// IncCartMutation counts a cart mutation such as add, update, remove or clear.
func (m *CheckoutMetrics) IncCartMutation(op string) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncDiscount counts a discount application; recognized reports whether the code yielded an amount.
func (m *CheckoutMetrics) IncDiscount(recognized bool) {
	if m == nil || m.discountApplied == nil {
		return
	}
	result := "unrecognized"
	if recognized {
		result = "recognized"
	}
	m.discountApplied.WithLabelValues(result).Inc()
}

// IncStepEntered counts entries into the named wizard step.
func (m *CheckoutMetrics) IncStepEntered(step string) {
	if m == nil || m.wizardTransition == nil {
		return
	}
	m.wizardTransition.WithLabelValues(normalizeLabel(step)).Inc()
}

// ObserveOrder records the outcome and duration of an order submission.
func (m *CheckoutMetrics) ObserveOrder(outcome string, duration time.Duration) {
	if m == nil || m.orders == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.orders.WithLabelValues(outcome).Inc()
	m.submitDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
