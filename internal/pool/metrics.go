package pool

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeReused      = "reused"
	outcomeConstructed = "constructed"
	outcomeExhausted   = "exhausted"
	outcomeClosed      = "closed"
)

// Metrics captures Prometheus counters for pool operations. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	checkoutTotal  *prometheus.CounterVec
	constructTotal *prometheus.CounterVec
	returnTotal    *prometheus.CounterVec
	misuseTotal    *prometheus.CounterVec
}

// NewMetrics constructs metrics instruments and registers them with the
// provided registerer. A nil registerer uses the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		checkoutTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{ //nolint:exhaustruct
				Namespace: "objpool",
				Subsystem: "pool",
				Name:      "checkouts_total",
				Help:      "Checkout attempts, labeled by pool and outcome.",
			},
			[]string{"pool", "outcome"},
		),
		constructTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{ //nolint:exhaustruct
				Namespace: "objpool",
				Subsystem: "pool",
				Name:      "constructions_total",
				Help:      "Instances constructed, labeled by pool.",
			},
			[]string{"pool"},
		),
		returnTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{ //nolint:exhaustruct
				Namespace: "objpool",
				Subsystem: "pool",
				Name:      "returns_total",
				Help:      "Instances reset and returned to the idle set, labeled by pool.",
			},
			[]string{"pool"},
		),
		misuseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{ //nolint:exhaustruct
				Namespace: "objpool",
				Subsystem: "pool",
				Name:      "misuse_total",
				Help:      "Ownership violations such as double release, labeled by pool and kind.",
			},
			[]string{"pool", "kind"},
		),
	}
	reg.MustRegister(m.checkoutTotal, m.constructTotal, m.returnTotal, m.misuseTotal)
	return m
}

func (m *Metrics) observeCheckout(pool, outcome string) {
	if m == nil {
		return
	}
	m.checkoutTotal.WithLabelValues(pool, outcome).Inc()
}

func (m *Metrics) observeConstruct(pool string) {
	if m == nil {
		return
	}
	m.constructTotal.WithLabelValues(pool).Inc()
}

func (m *Metrics) observeReturn(pool string) {
	if m == nil {
		return
	}
	m.returnTotal.WithLabelValues(pool).Inc()
}

func (m *Metrics) observeMisuse(pool, kind string) {
	if m == nil {
		return
	}
	m.misuseTotal.WithLabelValues(pool, kind).Inc()
}
