package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the response cache, labelled by endpoint path.
var (
	t3CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3_cache_lookups_total",
		Help: "Total number of T3 response cache lookups by endpoint and result",
	}, []string{"endpoint", "result"}) // result: hit, miss, expired

	t3CacheWrittenBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3_cache_written_bytes_total",
		Help: "Bytes of encoded T3 responses written to Redis",
	}, []string{"endpoint"})

	t3CacheInvalidatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3_cache_invalidated_total",
		Help: "Cached pages removed by endpoint invalidation",
	}, []string{"endpoint"})

	t3CacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "t3_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"})
)
