// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the chatkit server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for model latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// StoreBuckets covers store calls from 1ms to 2.5s.
var StoreBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

var (
	// RequestsTotal counts HTTP requests by method, route pattern and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatkit_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks active SSE streams.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatkit_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// MessagesTotal counts answered user messages by outcome
	// (completed, failed, cancelled).
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_messages_total",
			Help: "User messages handled",
		},
		[]string{"outcome"},
	)

	// StreamEventsTotal counts thread stream events relayed to clients.
	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_stream_events_total",
			Help: "Thread stream events relayed",
		},
		[]string{"type"},
	)

	// HistoryItems records how many items were loaded as model context.
	HistoryItems = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatkit_history_items",
			Help:    "Thread items loaded as model input",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 30, 50, 100},
		},
	)

	// StoreOperationsTotal counts store calls by backend, operation and outcome.
	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_store_operations_total",
			Help: "Thread store operations",
		},
		[]string{"store", "operation", "outcome"},
	)

	// StoreLatency records store call latency in seconds.
	StoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatkit_store_latency_seconds",
			Help:    "Thread store latency",
			Buckets: StoreBuckets,
		},
		[]string{"store", "operation"},
	)

	// ThreadCacheTotal counts thread cache lookups by result (hit, miss).
	ThreadCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_thread_cache_total",
			Help: "Thread cache lookups",
		},
		[]string{"result"},
	)

	// ProviderRequestsTotal counts requests sent to the model provider.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records time to the end of the provider stream.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatkit_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatkit_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		MessagesTotal,
		StreamEventsTotal,
		HistoryItems,
		StoreOperationsTotal,
		StoreLatency,
		ThreadCacheTotal,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		RateLimitRejectedTotal,
	)
}
