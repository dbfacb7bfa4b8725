package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/herald/internal/observability"
)

// RunPoolMonitor samples the client's pool statistics into Prometheus gauges
// every interval until ctx is done.
func RunPoolMonitor(ctx context.Context, client *redis.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		recordPoolStats(client.PoolStats())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func recordPoolStats(stats *redis.PoolStats) {
	observability.RedisPoolConnections.WithLabelValues("total").Set(float64(stats.TotalConns))
	observability.RedisPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns))
	observability.RedisPoolConnections.WithLabelValues("stale").Set(float64(stats.StaleConns))

	observability.RedisPoolEvents.WithLabelValues("hit").Set(float64(stats.Hits))
	observability.RedisPoolEvents.WithLabelValues("miss").Set(float64(stats.Misses))
	observability.RedisPoolEvents.WithLabelValues("timeout").Set(float64(stats.Timeouts))
}
