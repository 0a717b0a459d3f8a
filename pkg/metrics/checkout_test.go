package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)
	m.IncCartMutation("add")
	m.IncCartMutation("add")
	m.IncCartMutation("")
	m.IncDiscount(true)
	m.IncStepEntered("review")
	m.ObserveOrder(OutcomePlaced, 250*time.Millisecond)
	m.ObserveOrder(OutcomeRolledBack, 10*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	expectCounter(t, mfs, "storefront_cart_mutations_total", "op", "add", 2)
	expectCounter(t, mfs, "storefront_cart_mutations_total", "op", "unknown", 1)
	expectCounter(t, mfs, "storefront_discount_applications_total", "result", "recognized", 1)
	expectCounter(t, mfs, "storefront_checkout_step_entered_total", "step", "review", 1)
	expectCounter(t, mfs, "storefront_orders_total", "outcome", OutcomePlaced, 1)
	expectCounter(t, mfs, "storefront_orders_total", "outcome", OutcomeRolledBack, 1)

	if got, err := fetchHistogramSum(mfs, "storefront_order_submit_duration_seconds", "outcome", OutcomePlaced); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *CheckoutMetrics
	m.IncCartMutation("add")
	m.IncDiscount(false)
	m.IncStepEntered("cart")
	m.ObserveOrder(OutcomePlaced, time.Second)

	unregistered := NewCheckoutMetrics(nil)
	unregistered.ObserveOrder(OutcomeRejected, time.Second)
}

func expectCounter(t *testing.T, mfs []*dto.MetricFamily, name, label, value string, want float64) {
	t.Helper()
	got, err := fetchCounterValue(mfs, name, label, value)
	if err != nil {
		t.Fatalf("fetch %s: %v", name, err)
	}
	if got != want {
		t.Fatalf("expected %s{%s=%q}=%v, got %v", name, label, value, want, got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
