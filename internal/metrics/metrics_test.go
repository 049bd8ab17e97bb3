package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CheckoutCreated("1000credits")
	m.CheckoutCreated("1000credits")
	m.CheckoutRejected("rate_limited")
	m.RateLimited("global")
	m.SettingsUpdated("display")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.checkoutCreated.WithLabelValues("1000credits")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.checkoutRejected.WithLabelValues("rate_limited")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rateLimited.WithLabelValues("global")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.settingsUpdated.WithLabelValues("display")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CheckoutCreated("x")
		m.CheckoutRejected("x")
		m.RateLimited("x")
		m.SettingsUpdated("x")
	})
}
