package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job-level counters and histograms, partitioned by job name.

var (
	// Runner
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "runner",
		Name:      "runs_total",
		Help:      "Total completed job runs",
	}, []string{"job"})

	RunErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "runner",
		Name:      "run_errors_total",
		Help:      "Total job runs aborted before cursor advancement",
	}, []string{"job", "class"})

	RunsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "runner",
		Name:      "runs_skipped_total",
		Help:      "Total triggers skipped by the single-flight guard",
	}, []string{"job"})

	RunsNoop = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "runner",
		Name:      "runs_noop_total",
		Help:      "Total runs with no indexable window (caught up or too close to head)",
	}, []string{"job"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "runner",
		Name:      "run_duration_seconds",
		Help:      "Job run duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"job"})

	EventsIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "runner",
		Name:      "events_indexed_total",
		Help:      "Total events applied successfully",
	}, []string{"job"})

	EventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "runner",
		Name:      "events_failed_total",
		Help:      "Total events whose processing failed (logged, not retried in-run)",
	}, []string{"job"})

	CursorBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "runner",
		Name:      "cursor_block",
		Help:      "Last durably recorded cursor block per job",
	}, []string{"job"})

	HandoffsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "runner",
		Name:      "handoffs_expired_total",
		Help:      "Total pending handoffs swept to EXPIRED",
	})

	// Chain RPC
	ChainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "chain_height",
		Help:      "Last observed chain head block number",
	})

	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total RPC calls by method and status",
	}, []string{"method", "status"})

	RPCRateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total RPC calls delayed by the client-side rate limiter",
	})

	BreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "breaker_state",
		Help:      "RPC circuit breaker state (0=closed, 1=open, 2=half-open)",
	})

	TimestampCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "timestamp_cache_hits_total",
		Help:      "Block timestamp lookups served from the LRU cache",
	})
)
