package tracker

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts engine work. A nil *Metrics is valid and records nothing.
type Metrics struct {
	computations *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timetracker",
			Name:      "balance_computations_total",
			Help:      "Balance computations by kind and calculation strategy.",
		}, []string{"kind", "strategy"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timetracker",
			Name:      "balance_cache_lookups_total",
			Help:      "Balance cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
	}
	reg.MustRegister(m.computations, m.cacheLookups)
	return m
}

func (m *Metrics) computed(kind, strategy string) {
	if m == nil {
		return
	}
	m.computations.WithLabelValues(kind, strategy).Inc()
}

func (m *Metrics) lookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
