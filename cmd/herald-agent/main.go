// Command herald-agent runs the Herald SDK headless. Notifications are
// scheduled on in-process timers and delivered to the log, which makes the
// agent a reference host and a soak-test client for herald-api.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"

	"github.com/rafaeljc/herald/internal/config"
	"github.com/rafaeljc/herald/internal/logger"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/sdk"
)

func main() {
	cfg, err := config.LoadAgent()
	if err != nil {
		fmt.Fprintf(os.Stderr, "herald-agent: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	if err := runAgent(cfg, log); err != nil {
		log.Error("herald-agent stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("herald-agent stopped")
}

func runAgent(cfg *config.AgentConfig, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries := logger.Component(log, "delivery")
	scheduler := newTimerScheduler(logger.Component(log, "scheduler"), func(id string, c sdk.Content) {
		deliveries.Info("notification delivered",
			slog.String("schedule_id", id),
			slog.String("title", c.Title),
			slog.String("body", c.Body),
			slog.String("priority", string(c.Priority)),
		)
	}, time.Now)
	defer scheduler.Close()

	client, err := sdk.New(sdk.Config{
		APIURL:         cfg.SDK.APIURL,
		AppID:          cfg.SDK.AppID,
		APIKey:         cfg.SDK.APIKey,
		SyncInterval:   cfg.SDK.SyncInterval,
		RequestTimeout: cfg.SDK.RequestTimeout,
		FullSyncEvery:  cfg.SDK.FullSyncEvery,
		TrackSessions:  cfg.SDK.TrackSessions,
	}, scheduler, sdk.WithLogger(logger.Component(log, "sdk")))
	if err != nil {
		return fmt.Errorf("creating sdk: %w", err)
	}

	if cfg.SDK.UserID != "" || cfg.SDK.Locale != "" {
		uc := sdk.UserContext{UserID: cfg.SDK.UserID, Locale: cfg.SDK.Locale}
		if uc.UserID != "" {
			// Registers the user upstream so session events resolve.
			uc.Properties = sdk.Properties{}
		}
		if err := client.SetUserContext(ctx, uc); err != nil {
			return fmt.Errorf("setting user context: %w", err)
		}
	}

	var initialized atomic.Bool
	obs := observability.NewServer(logger.Component(log, "observability"), &cfg.Observability,
		observability.CheckerFunc{
			Component: "sdk",
			Fn: func(context.Context) error {
				if !initialized.Load() {
					return errors.New("not initialized")
				}
				if last := client.LastFullSync(); time.Since(last) > staleAfter(cfg) {
					return fmt.Errorf("last full sync at %s", last.Format(time.RFC3339))
				}
				return nil
			},
		},
	)

	if err := client.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing sdk: %w", err)
	}
	initialized.Store(true)
	log.Info("agent running", slog.Int("scheduled", scheduler.Pending()))

	var g run.Group

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	g.Add(obs.ListenAndServe, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			log.Error("observability shutdown failed", slog.String("error", err.Error()))
		}
	})

	// The SDK owns its auto-sync loop; this actor only ties its lifetime to the group.
	done := make(chan struct{})
	g.Add(func() error {
		<-done
		return nil
	}, func(error) {
		destroyCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := client.Destroy(destroyCtx); err != nil {
			log.Error("sdk destroy failed", slog.String("error", err.Error()))
		}
		close(done)
	})

	err = g.Run()

	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		log.Info("shutdown signal received", slog.String("signal", sigErr.Signal.String()))
		return nil
	}
	return err
}

// staleAfter is how old the last full sync may get before readiness fails:
// three full-sync periods.
func staleAfter(cfg *config.AgentConfig) time.Duration {
	every := cfg.SDK.FullSyncEvery
	if every <= 0 {
		every = 1
	}
	return 3 * time.Duration(every) * cfg.SDK.SyncInterval
}
