//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/herald/internal/config"
	"github.com/rafaeljc/herald/internal/database"
	"github.com/rafaeljc/herald/internal/testsupport"
)

func TestPostgres_Integration(t *testing.T) {
	ctx := context.Background()
	pgCtr, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err)
	defer pgCtr.Terminate(ctx)

	pool, err := database.NewPostgresPool(ctx, &config.DatabaseConfig{
		URL:             pgCtr.ConnectionString,
		MaxConns:        3,
		MinConns:        1,
		MaxConnLifetime: time.Minute,
		MaxConnIdleTime: time.Minute,
		ConnectTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	defer pool.Close()

	t.Run("Should report healthy", func(t *testing.T) {
		checker := database.NewHealthChecker(pool)
		assert.Equal(t, "postgres", checker.Name())
		assert.NoError(t, checker.Check(ctx))
	})

	t.Run("Should sample pool statistics", func(t *testing.T) {
		monitorCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go database.RunPoolMonitor(monitorCtx, pool, 10*time.Millisecond)

		conn, err := pool.Acquire(ctx)
		require.NoError(t, err)
		defer conn.Release()

		require.Eventually(t, func() bool {
			return testsupport.GetMetricValue(t, "herald_database_pool_connections", map[string]string{"state": "max"}) == 3 &&
				testsupport.GetMetricValue(t, "herald_database_pool_connections", map[string]string{"state": "in_use"}) >= 1
		}, 2*time.Second, 10*time.Millisecond)
		assert.Greater(t, testsupport.GetMetricValue(t, "herald_database_pool_acquires", nil), 0.0)
	})

	t.Run("Should fail fast on an unreachable database", func(t *testing.T) {
		_, err := database.NewPostgresPool(ctx, &config.DatabaseConfig{
			URL:            "postgres://nobody:x@127.0.0.1:1/none?sslmode=disable",
			MaxConns:       1,
			ConnectTimeout: 500 * time.Millisecond,
		})
		assert.Error(t, err)
	})
}
