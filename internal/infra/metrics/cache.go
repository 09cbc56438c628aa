package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal, cachePurgedTotal, cacheEntries) }

var (
	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Tracks cache hits and misses for various caches.",
		},
		[]string{"cache", "result"}, // e.g., cache="reputation_memory", result="hit"
	)

	cachePurgedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_purged_total",
			Help: "Expired entries removed by the cache janitor.",
		},
		[]string{"cache"},
	)

	cacheEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Entries held by in-process caches after the last sweep.",
		},
		[]string{"cache"},
	)
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func AddCachePurged(cacheName string, n int) {
	cachePurgedTotal.WithLabelValues(norm(cacheName)).Add(float64(n))
}

func SetCacheEntries(cacheName string, n int) {
	cacheEntries.WithLabelValues(norm(cacheName)).Set(float64(n))
}
