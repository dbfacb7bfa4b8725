package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NOTE: All metrics are registered globally at init, so the agent also exposes
// the API metrics with zero values and vice versa.

// namespace defines the global prefix for all metrics (e.g., herald_...).
const namespace = "herald"

var (
	// -------------------------------------------------------------------------
	// API (HTTP)
	// -------------------------------------------------------------------------

	// APIReqDuration measures the latency of HTTP requests.
	// Metric: herald_api_http_handling_seconds
	APIReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests in the API",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	// APIReqTotal counts the total number of HTTP requests.
	// Metric: herald_api_http_requests_total
	APIReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests in the API",
	}, []string{"method", "path", "code"})

	// --- Sync snapshot cache (Redis L2) ---

	// SnapshotCacheRequests counts snapshot lookups by result (hit, miss, error).
	SnapshotCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "sync_snapshot_requests_total",
		Help:      "Sync snapshot cache lookups by result",
	}, []string{"result"})

	// SnapshotWrites counts snapshot writes by result (stored, superseded).
	// A superseded write was built before an invalidation and is dropped.
	SnapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "sync_snapshot_writes_total",
		Help:      "Sync snapshot cache writes by result",
	}, []string{"result"})

	// SnapshotInvalidations counts snapshot deletions triggered by admin mutations.
	SnapshotInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "sync_snapshot_invalidations_total",
		Help:      "Total sync snapshot invalidations",
	})

	// --- App cache (otter L1) ---

	AppCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "app_cache_hits_total",
		Help:      "Total L1 app cache hits (in-memory)",
	})

	AppCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "app_cache_misses_total",
		Help:      "Total L1 app cache misses",
	})

	// AppCacheItems tracks the item count; S3-FIFO (otter) tracks count, not bytes.
	AppCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "app_cache_items_count",
		Help:      "Current number of items in the L1 app cache",
	})

	// AppCacheEvictions is the cumulative number of entries evicted by capacity.
	AppCacheEvictions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "app_cache_evictions",
		Help:      "Cumulative L1 app cache evictions",
	})

	// AppCacheRejected is the cumulative number of sets dropped by the cache.
	AppCacheRejected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "app_cache_rejected_sets",
		Help:      "Cumulative L1 app cache sets rejected",
	})

	// --- Redis pool (sampled by cache.RunPoolMonitor) ---

	// RedisPoolConnections reports pool connections by state (total, idle, stale).
	RedisPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_connections",
		Help:      "Redis pool connections by state",
	}, []string{"state"})

	// RedisPoolEvents reports cumulative pool lookups by outcome (hit, miss, timeout).
	RedisPoolEvents = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_events",
		Help:      "Cumulative Redis pool lookups by outcome",
	}, []string{"event"})

	// --- Postgres pool (sampled by database.RunPoolMonitor) ---

	// DBPoolConnections reports pool connections by state (total, idle, in_use, max).
	DBPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_connections",
		Help:      "Postgres pool connections by state",
	}, []string{"state"})

	// DBPoolAcquires is the cumulative number of successful acquisitions.
	DBPoolAcquires = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_acquires",
		Help:      "Cumulative successful connection acquisitions",
	})

	// DBPoolEmptyAcquires is the cumulative number of acquisitions that had to wait.
	DBPoolEmptyAcquires = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "database",
		Name:      "pool_empty_acquires",
		Help:      "Cumulative acquisitions that waited for a free connection",
	})

	// -------------------------------------------------------------------------
	// SDK (agent)
	// -------------------------------------------------------------------------

	// SDKSyncDuration measures sync round trips, including reconciliation.
	// Metric: herald_sdk_sync_duration_seconds
	SDKSyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sdk",
		Name:      "sync_duration_seconds",
		Help:      "Time taken by full and delta syncs",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"}) // full, delta

	// SDKSyncTotal counts syncs by kind and status.
	SDKSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sdk",
		Name:      "syncs_total",
		Help:      "Total syncs by kind and status",
	}, []string{"kind", "status"}) // status: success, fail, discarded

	// SDKWatermark is the current delta-sync version watermark.
	SDKWatermark = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sdk",
		Name:      "watermark_version",
		Help:      "Highest notification version incorporated by the SDK",
	})

	// SDKScheduleOps counts device schedule operations by outcome.
	SDKScheduleOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sdk",
		Name:      "schedule_operations_total",
		Help:      "Device schedule operations performed by reconciliation",
	}, []string{"op"}) // scheduled, cancelled, unchanged, failed

	// SDKScheduledNotifications is the size of the scheduled set after the last reconciliation.
	SDKScheduledNotifications = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sdk",
		Name:      "scheduled_notifications",
		Help:      "Notifications currently scheduled on the device",
	})

	// AgentDeliveries counts notifications presented by herald-agent's
	// timer-backed scheduler.
	AgentDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "deliveries_total",
		Help:      "Notifications fired by the agent scheduler",
	}, []string{"kind"}) // trigger.Kind names
)
