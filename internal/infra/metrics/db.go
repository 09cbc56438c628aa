package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, snapshotWritesTotal) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	snapshotWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_writes_total",
			Help: "Room snapshot persistence attempts by outcome.",
		},
		[]string{"store", "result"},
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func IncSnapshotWrite(store string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	snapshotWritesTotal.WithLabelValues(norm(store), result).Inc()
}
