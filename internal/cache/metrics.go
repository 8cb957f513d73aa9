package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "result_cache_hits_total",
		Help: "Total number of result cache hits",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "result_cache_misses_total",
		Help: "Total number of result cache misses",
	})

	cacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "result_cache_evictions_total",
		Help: "Total number of result cache evictions by reason",
	}, []string{"reason"})

	cacheDegradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "result_cache_degraded_total",
		Help: "Total number of operations served without the cache store",
	})
)

func recordHit()  { cacheHitsTotal.Inc() }
func recordMiss() { cacheMissesTotal.Inc() }

func recordEviction(reason string) { cacheEvictionsTotal.WithLabelValues(reason).Inc() }
func recordDegraded()              { cacheDegradedTotal.Inc() }
