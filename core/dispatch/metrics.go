package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/searchktools/fast-runtime/core/binding"
)

const namespace = "fastrt"

// Stats is a snapshot of the dispatcher counters.
type Stats struct {
	LoadAttempts   uint64            `json:"load_attempts"`
	LoadSuccesses  uint64            `json:"load_successes"`
	ParserWrites   uint64            `json:"parser_writes"`
	RouterFinds    uint64            `json:"router_finds"`
	URLCalls       uint64            `json:"url_calls"`
	CacheHits      uint64            `json:"cache_hits"`
	CacheMisses    uint64            `json:"cache_misses"`
	CacheEvictions uint64            `json:"cache_evictions"`
	Backends       map[string]string `json:"backends"`
}

// Stats returns the current counters and the backends selected so far.
func (d *Dispatcher) Stats() Stats {
	attempts, successes := d.resolver.Counters()
	s := Stats{
		LoadAttempts:   attempts,
		LoadSuccesses:  successes,
		ParserWrites:   d.parserWrites.Load(),
		RouterFinds:    d.routerFinds.Load(),
		URLCalls:       d.urlCalls.Load(),
		CacheHits:      d.cacheHits.Load(),
		CacheMisses:    d.cacheMisses.Load(),
		CacheEvictions: d.cacheEvictions.Load(),
		Backends:       make(map[string]string),
	}

	d.mu.Lock()
	for c, ch := range d.choices {
		s.Backends[c.String()] = ch.backend.String()
	}
	d.mu.Unlock()
	return s
}

// ResetStats zeroes the call counters. Load counters belong to the
// resolver and are reset by its ClearCache.
func (d *Dispatcher) ResetStats() {
	d.parserWrites.Store(0)
	d.routerFinds.Store(0)
	d.urlCalls.Store(0)
	d.cacheHits.Store(0)
	d.cacheMisses.Store(0)
	d.cacheEvictions.Store(0)
}

// Register exposes the counters on reg.
func (d *Dispatcher) Register(reg prometheus.Registerer) error {
	counter := func(name, help string, fn func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn()) })
	}

	collectors := []prometheus.Collector{
		counter("accelerator_load_attempts_total", "Accelerator load attempts.", func() uint64 {
			a, _ := d.resolver.Counters()
			return a
		}),
		counter("accelerator_load_successes_total", "Successful accelerator loads.", func() uint64 {
			_, s := d.resolver.Counters()
			return s
		}),
		counter("parser_writes_total", "Parser Write calls.", d.parserWrites.Load),
		counter("router_finds_total", "Router Find calls.", d.routerFinds.Load),
		counter("url_calls_total", "URL split and query decode calls.", d.urlCalls.Load),
		counter("route_cache_hits_total", "Route match cache hits.", d.cacheHits.Load),
		counter("route_cache_misses_total", "Route match cache misses.", d.cacheMisses.Load),
		counter("route_cache_evictions_total", "Route match cache evictions, including purges on route changes.", d.cacheEvictions.Load),
	}
	for _, c := range []binding.Capability{binding.Parser, binding.Router, binding.URL} {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "accelerated",
			Help:        "1 when the accelerator serves the capability.",
			ConstLabels: prometheus.Labels{"capability": c.String()},
		}, func() float64 {
			if d.Backend(c) == Accelerator {
				return 1
			}
			return 0
		}))
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
