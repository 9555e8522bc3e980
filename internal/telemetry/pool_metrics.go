package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/objpool/internal/pool"
)

const poolMeterName = "objpool.pool"

// StatsSource is anything that reports pool stats, typically a *pool.Pool.
type StatsSource interface {
	Name() string
	Stats() pool.Stats
}

type poolGauge struct {
	name        string
	description string
	value       func(pool.Stats) int
}

var poolGauges = []poolGauge{
	{"objpool_pool_instances_total", "Instances constructed by the pool", func(s pool.Stats) int { return s.Size }},
	{"objpool_pool_instances_idle", "Idle instances ready for checkout", func(s pool.Stats) int { return s.Idle }},
	{"objpool_pool_instances_outstanding", "Instances currently checked out", func(s pool.Stats) int { return s.Outstanding }},
	{"objpool_pool_construction_slots", "Construction permits remaining", func(s pool.Stats) int { return s.FreeSlots }},
	{"objpool_pool_capacity", "Capacity ceiling", func(s pool.Stats) int { return s.MaxSize }},
}

// ObservePools reports the counters of every source through the pool gauges.
// The gauges are shared by all pools on a meter provider and each pool is told
// apart by its pool.name attribute, so calling ObservePools repeatedly for
// different pools is safe. Unregister the returned registration to stop
// observing.
func ObservePools(mp metric.MeterProvider, environment string, sources ...StatsSource) (metric.Registration, error) {
	live := make([]StatsSource, 0, len(sources))
	for _, src := range sources {
		if src != nil {
			live = append(live, src)
		}
	}
	return registerPoolGauges(mp, environment, func() []pool.Stats {
		out := make([]pool.Stats, 0, len(live))
		for _, src := range live {
			out = append(out, src.Stats())
		}
		return out
	})
}

// ObserveManager reports every pool held by m, including pools registered
// after this call.
func ObserveManager(mp metric.MeterProvider, m *pool.Manager, environment string) (metric.Registration, error) {
	if m == nil {
		return registerPoolGauges(mp, environment, func() []pool.Stats { return nil })
	}
	return registerPoolGauges(mp, environment, func() []pool.Stats {
		snapshot := m.Snapshot()
		out := make([]pool.Stats, 0, len(snapshot))
		for _, s := range snapshot {
			out = append(out, s)
		}
		return out
	})
}

func registerPoolGauges(mp metric.MeterProvider, environment string, collect func() []pool.Stats) (metric.Registration, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	env := strings.TrimSpace(environment)
	if env == "" {
		env = defaultEnvironment
	}

	meter := mp.Meter(poolMeterName)
	gauges := make([]metric.Int64ObservableGauge, len(poolGauges))
	observables := make([]metric.Observable, len(poolGauges))
	for i, g := range poolGauges {
		gauge, err := meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.description),
			metric.WithUnit("{instance}"),
		)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", g.name, err)
		}
		gauges[i] = gauge
		observables[i] = gauge
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		for _, stats := range collect() {
			attrs := metric.WithAttributes(
				AttrEnvironment.String(env),
				AttrPoolName.String(stats.Name),
			)
			for i, g := range poolGauges {
				observer.ObserveInt64(gauges[i], int64(g.value(stats)), attrs)
			}
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register pool gauge callback: %w", err)
	}
	return reg, nil
}
