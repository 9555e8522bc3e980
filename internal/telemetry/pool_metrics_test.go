package telemetry

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/coachpo/objpool/internal/counter"
	"github.com/coachpo/objpool/internal/pool"
)

func collectGauges(t *testing.T, reader *sdkmetric.ManualReader) map[string]map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			if !ok {
				continue
			}
			for _, dp := range gauge.DataPoints {
				name, _ := dp.Attributes.Value(AttrPoolName)
				if out[m.Name] == nil {
					out[m.Name] = make(map[string]int64)
				}
				out[m.Name][name.AsString()] = dp.Value
			}
		}
	}
	return out
}

func newTestPool(t *testing.T, name string, initial, maxSize int) *pool.Pool[*counter.Counter, int] {
	t.Helper()
	p, err := pool.New(initial, maxSize, counter.New, 0, pool.WithName(name), pool.WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)
	return p
}

func TestObservePoolsReportsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	p := newTestPool(t, "counters", 1, 3)
	_, err := ObservePools(mp, "test", p)
	require.NoError(t, err)

	a, _ := p.Checkout()
	b, _ := p.Checkout()
	defer a.Release()
	b.Release()

	gauges := collectGauges(t, reader)
	require.Equal(t, int64(2), gauges["objpool_pool_instances_total"]["counters"])
	require.Equal(t, int64(1), gauges["objpool_pool_instances_idle"]["counters"])
	require.Equal(t, int64(1), gauges["objpool_pool_instances_outstanding"]["counters"])
	require.Equal(t, int64(1), gauges["objpool_pool_construction_slots"]["counters"])
	require.Equal(t, int64(3), gauges["objpool_pool_capacity"]["counters"])
}

func TestObservePoolsSeparateCallsShareGauges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	a := newTestPool(t, "a", 0, 2)
	b := newTestPool(t, "b", 1, 5)
	_, err := ObservePools(mp, "test", a)
	require.NoError(t, err)
	regB, err := ObservePools(mp, "test", b)
	require.NoError(t, err)

	gauges := collectGauges(t, reader)
	require.Equal(t, map[string]int64{"a": 2, "b": 5}, gauges["objpool_pool_capacity"])
	require.Equal(t, map[string]int64{"a": 0, "b": 1}, gauges["objpool_pool_instances_idle"])

	require.NoError(t, regB.Unregister())
	gauges = collectGauges(t, reader)
	require.Equal(t, map[string]int64{"a": 2}, gauges["objpool_pool_capacity"])
}

func TestObserveManagerCoversEveryPool(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m := pool.NewManager(log.New(io.Discard, "", 0))
	a := newTestPool(t, "a", 0, 2)
	b := newTestPool(t, "b", 2, 4)
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))

	_, err := ObserveManager(mp, m, "test")
	require.NoError(t, err)

	h, ok := b.Checkout()
	require.True(t, ok)
	defer h.Release()

	gauges := collectGauges(t, reader)
	require.Equal(t, map[string]int64{"a": 0, "b": 2}, gauges["objpool_pool_instances_total"])
	require.Equal(t, map[string]int64{"a": 2, "b": 4}, gauges["objpool_pool_capacity"])
	require.Equal(t, map[string]int64{"a": 0, "b": 1}, gauges["objpool_pool_instances_idle"])
	require.Equal(t, map[string]int64{"a": 0, "b": 1}, gauges["objpool_pool_instances_outstanding"])
	require.Equal(t, map[string]int64{"a": 2, "b": 2}, gauges["objpool_pool_construction_slots"])

	c := newTestPool(t, "c", 1, 1)
	require.NoError(t, m.Register(c))
	gauges = collectGauges(t, reader)
	require.Equal(t, map[string]int64{"a": 2, "b": 4, "c": 1}, gauges["objpool_pool_capacity"])
}

func TestObservePoolsSkipsNilSources(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	_, err := ObservePools(mp, "", nil)
	require.NoError(t, err)
	require.Empty(t, collectGauges(t, reader))
}
