package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat core metrics
var (
	// Streaming
	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_core",
			Name:      "stream_events_total",
			Help:      "Total stream events received, by event name",
		},
		[]string{"event"},
	)

	StreamSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_core",
			Name:      "stream_sessions_total",
			Help:      "Total streaming sessions opened, by kind (send/edit)",
		},
		[]string{"kind"},
	)

	StreamErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_core",
			Name:      "stream_errors_total",
			Help:      "Total streaming failures, by kind (send/edit)",
		},
		[]string{"kind"},
	)

	// Branch cache
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_core",
			Name:      "branch_cache_hits_total",
			Help:      "Branch message cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_core",
			Name:      "branch_cache_misses_total",
			Help:      "Branch message cache misses",
		},
	)

	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_core",
			Name:      "branch_cache_evictions_total",
			Help:      "Branch message cache entries evicted after the idle window",
		},
	)

	// Store lifecycle
	StoresCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_core",
			Name:      "stores_created_total",
			Help:      "Conversation stores created",
		},
	)

	StoresDestroyedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "chat_core",
			Name:      "stores_destroyed_total",
			Help:      "Conversation stores destroyed after the idle window",
		},
	)
)
