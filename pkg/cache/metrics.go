package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks reads that found a value
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"operation"}, // "get", "getdel"
	)

	// CacheMisses tracks reads that found nothing
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"operation"},
	)

	// CacheErrors tracks failed store commands
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "getdel", "set", "delete", "delete_pattern", "ttl"
	)

	// CacheKeysDeleted tracks keys removed by pattern deletes
	CacheKeysDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_pattern_deleted_keys_total",
			Help: "Total number of keys removed by pattern deletes",
		},
	)

	// ConnectionsOpened tracks dial outcomes per slot
	ConnectionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_connections_opened_total",
			Help: "Total number of store connection attempts by slot and result",
		},
		[]string{"slot", "result"}, // slot: "writer", "reader"; result: "success", "failure"
	)

	// ConnectionsClosed tracks connections torn down per slot
	ConnectionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_connections_closed_total",
			Help: "Total number of store connections closed by slot",
		},
		[]string{"slot"},
	)
)
