// Package database opens the Postgres pool used by herald-api.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/herald/internal/config"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/validation"
)

// NewPostgresPool opens a pool tuned by cfg and pings it before returning.
func NewPostgresPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	validation.AssertNotNil(cfg, "database: config")

	// 1. Parse
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// 2. Tune
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	// 3. Connect, failing fast
	initCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(initCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// 4. Verify
	if err := pool.Ping(initCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunPoolMonitor samples pool statistics into Prometheus every interval
// until ctx is done.
func RunPoolMonitor(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		recordPoolStats(pool.Stat())

		select {
		case <-ctx.Done():
			slog.Debug("pool monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

func recordPoolStats(st *pgxpool.Stat) {
	observability.DBPoolConnections.WithLabelValues("total").Set(float64(st.TotalConns()))
	observability.DBPoolConnections.WithLabelValues("idle").Set(float64(st.IdleConns()))
	observability.DBPoolConnections.WithLabelValues("in_use").Set(float64(st.AcquiredConns()))
	observability.DBPoolConnections.WithLabelValues("max").Set(float64(st.MaxConns()))
	observability.DBPoolAcquires.Set(float64(st.AcquireCount()))
	observability.DBPoolEmptyAcquires.Set(float64(st.EmptyAcquireCount()))
}
