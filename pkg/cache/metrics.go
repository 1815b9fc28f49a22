package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the cache counters. A nil *Metrics is valid and
// disables collection.
type Metrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hit_total",
			Help: "Number of cache lookups answered from a live entry.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_miss_total",
			Help: "Number of cache lookups that found no live entry.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_eviction_total",
			Help: "Number of live entries evicted to make room.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.evictions)
	}
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) eviction() {
	if m != nil {
		m.evictions.Inc()
	}
}
