package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerTransitions counts write transitions by operation and outcome code.
	LedgerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credledger_transitions_total",
		Help: "Total number of ledger write transitions by operation and outcome",
	}, []string{"operation", "outcome"})

	// LedgerCommitLatency records time spent holding the commit lock, journal included.
	LedgerCommitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "credledger_commit_latency_seconds",
		Help:    "Ledger commit latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// LedgerPosts is the number of posts in the ledger.
	LedgerPosts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "credledger_posts",
		Help: "Number of posts in the ledger",
	})

	// OracleRequests counts reputation oracle calls by method and outcome.
	OracleRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credledger_oracle_requests_total",
		Help: "Total reputation oracle requests by method and outcome",
	}, []string{"method", "outcome"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credledger_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// EventsPublished counts ledger events handed to the event bus.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credledger_events_published_total",
		Help: "Total ledger events published by type and outcome",
	}, []string{"type", "outcome"})

	// WebSocketConnectionsTotal is the gauge of active event stream connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "credledger_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credledger_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackCommit returns a function that records commit latency when called (e.g. defer).
func TrackCommit(operation string) func() {
	start := time.Now()
	return func() {
		LedgerCommitLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
