// Command herald-api serves the Herald REST API: admin CRUD and the
// SDK-facing sync, user and session routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"

	"github.com/rafaeljc/herald/internal/api"
	"github.com/rafaeljc/herald/internal/cache"
	"github.com/rafaeljc/herald/internal/config"
	"github.com/rafaeljc/herald/internal/database"
	"github.com/rafaeljc/herald/internal/logger"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/store"
)

const statsInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "herald-api: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	if err := runServer(cfg, log); err != nil {
		log.Error("herald-api stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("herald-api stopped")
}

func runServer(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Postgres
	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	checkers := []observability.Checker{database.NewHealthChecker(pool)}

	// 2. Caches
	var snapshots cache.SnapshotStore = cache.NopSnapshots{}
	if cfg.Cache.SnapshotEnabled {
		rdb, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()

		snapshots = cache.NewRedisSnapshots(rdb, cfg.Cache.SnapshotTTL, logger.Component(log, "snapshots"))
		checkers = append(checkers, cache.NewHealthChecker(rdb))
		go cache.RunPoolMonitor(ctx, rdb, statsInterval)
	} else {
		log.Warn("sync snapshot cache disabled, every sync reads postgres")
	}

	apps, err := cache.NewAppCache(cfg.Cache.AppCapacity, cfg.Cache.AppTTL)
	if err != nil {
		return fmt.Errorf("creating app cache: %w", err)
	}
	defer apps.Close()

	go database.RunPoolMonitor(ctx, pool, statsInterval)
	go apps.RunMetricsCollector(ctx, statsInterval)

	// 3. HTTP
	handler := api.NewAPI(store.NewPostgresStore(pool), snapshots, apps, api.Config{
		AdminKeyHash: cfg.Server.API.AdminKeyHash,
		SkipAuth:     cfg.Server.API.AdminKeyHash == "",
		MaxBodyBytes: cfg.Server.API.MaxBodyBytes,
		Logger:       logger.Component(log, "api"),
	})
	if cfg.Server.API.AdminKeyHash == "" {
		log.Warn("admin authentication disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Server.API.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.API.ReadTimeout,
		WriteTimeout:      cfg.Server.API.WriteTimeout,
		ReadHeaderTimeout: cfg.Server.API.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.API.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.API.MaxHeaderBytes,
	}
	obs := observability.NewServer(logger.Component(log, "observability"), &cfg.Observability, checkers...)

	// 4. Actors
	var g run.Group

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	g.Add(func() error {
		log.Info("starting api server",
			slog.String("addr", srv.Addr),
			slog.Bool("tls", cfg.Server.API.TLSEnabled),
		)
		var err error
		if cfg.Server.API.TLSEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.API.TLSCert, cfg.Server.API.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}, func(error) {
		shutdown(log, "api server", cfg.App.ShutdownTimeout, srv.Shutdown)
	})

	g.Add(obs.ListenAndServe, func(error) {
		shutdown(log, "observability server", cfg.App.ShutdownTimeout, obs.Shutdown)
	})

	err = g.Run()

	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		log.Info("shutdown signal received", slog.String("signal", sigErr.Signal.String()))
		return nil
	}
	return err
}

func shutdown(log *slog.Logger, name string, timeout time.Duration, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		log.Error("graceful shutdown failed",
			slog.String("component", name),
			slog.String("error", err.Error()),
		)
	}
}
