package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		pipelineDecisionsTotal,
		roomMessagesAppendedTotal,
		wsSessionsActive,
		rateLimitedTotal,
	)
}

var (
	pipelineDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_decisions_total",
			Help: "Content pipeline decisions by source and result.",
		},
		[]string{"source", "result"}, // result: allowed|blocked
	)

	roomMessagesAppendedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "room_messages_appended_total",
			Help: "Messages appended to room history, system messages included.",
		},
	)

	wsSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_sessions_active",
			Help: "Currently connected websocket sessions.",
		},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Chat messages rejected by the per-sender rate limit.",
		},
	)
)

func IncDecision(source string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "blocked"
	}
	pipelineDecisionsTotal.WithLabelValues(norm(source), result).Inc()
}

func IncMessageAppended() { roomMessagesAppendedTotal.Inc() }

func SessionOpened() { wsSessionsActive.Inc() }
func SessionClosed() { wsSessionsActive.Dec() }

func IncRateLimited() { rateLimitedTotal.Inc() }
