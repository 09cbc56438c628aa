package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		remoteCallLatencyMs,
		reputationLookupsTotal,
	)
}

var (
	remoteCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_call_latency_ms",
			Help:    "Latency of reputation and semantic validator calls in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"service", "success"},
	)

	reputationLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reputation_lookups_total",
			Help: "URL reputation lookups by result (hit, miss, error, blocked).",
		},
		[]string{"result"},
	)
)

func ObserveRemoteCall(service string, elapsed time.Duration, success bool) {
	remoteCallLatencyMs.WithLabelValues(norm(service), strconv.FormatBool(success)).
		Observe(float64(elapsed.Milliseconds()))
}

func IncReputationLookup(result string) {
	reputationLookupsTotal.WithLabelValues(norm(result)).Inc()
}
