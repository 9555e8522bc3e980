package pool

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/objpool/internal/counter"
)

func TestMetricsRecordPoolActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p, err := New(1, 2, counter.New, 0, WithName("metered"), WithMetrics(m), WithLogger(quietLogger()))
	require.NoError(t, err)

	a, ok := p.Checkout()
	require.True(t, ok)
	b, ok := p.Checkout()
	require.True(t, ok)
	_, ok = p.Checkout()
	require.False(t, ok)
	a.Release()
	b.Release()

	require.Equal(t, float64(2), testutil.ToFloat64(m.constructTotal.WithLabelValues("metered")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.checkoutTotal.WithLabelValues("metered", outcomeReused)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.checkoutTotal.WithLabelValues("metered", outcomeConstructed)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.checkoutTotal.WithLabelValues("metered", outcomeExhausted)))
	require.Equal(t, float64(2), testutil.ToFloat64(m.returnTotal.WithLabelValues("metered")))

	require.Panics(t, func() { a.Release() })
	require.Equal(t, float64(1), testutil.ToFloat64(m.misuseTotal.WithLabelValues("metered", "double release")))

	require.NoError(t, p.Close())
	_, ok = p.Checkout()
	require.False(t, ok)
	require.Equal(t, float64(1), testutil.ToFloat64(m.checkoutTotal.WithLabelValues("metered", outcomeClosed)))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.observeCheckout("p", outcomeReused)
		m.observeConstruct("p")
		m.observeReturn("p")
		m.observeMisuse("p", "double release")
	})
}

func TestNewMetricsRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	require.Panics(t, func() { NewMetrics(reg) })
}
