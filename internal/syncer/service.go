// Package syncer implements the SDK's background auto-sync loop: periodic delta
// syncs, with a full sync every few ticks to flush notifications the delta feed
// cannot report as disabled.
package syncer

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultInterval is the delay between two auto-sync ticks.
	DefaultInterval = 60 * time.Second

	// DefaultFullSyncEvery is how many ticks pass between forced full syncs.
	DefaultFullSyncEvery = 10
)

// Target performs the actual synchronization.
type Target interface {
	FullSync(ctx context.Context) error
	DeltaSync(ctx context.Context) error
}

// Config holds the configuration for the auto-sync loop.
type Config struct {
	// Interval is the duration between sync ticks.
	Interval time.Duration

	// FullSyncEvery forces a full sync on every Nth tick. Zero or negative disables it.
	FullSyncEvery int
}

// Service drives a Target on a fixed interval.
type Service struct {
	logger *slog.Logger
	config Config
	target Target
}

// New creates a new auto-sync service.
func New(logger *slog.Logger, cfg Config, target Target) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	if target == nil {
		panic("syncer: sync target cannot be nil")
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	return &Service{
		logger: logger,
		config: cfg,
		target: target,
	}
}

// Run starts the loop. It blocks until the context is cancelled.
// The first tick happens after one interval: the caller has just synced.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting auto-sync",
		slog.String("interval", s.config.Interval.String()),
		slog.Int("full_sync_every", s.config.FullSyncEvery),
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("auto-sync stopping...")
			return nil
		case <-ticker.C:
			tick++
			// Failures are logged; the next tick retries.
			if err := s.runOnce(ctx, tick); err != nil && ctx.Err() == nil {
				s.logger.Error("sync tick failed",
					slog.Int("tick", tick),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// runOnce performs the sync due at tick.
func (s *Service) runOnce(ctx context.Context, tick int) error {
	if s.config.FullSyncEvery > 0 && tick%s.config.FullSyncEvery == 0 {
		return s.target.FullSync(ctx)
	}
	return s.target.DeltaSync(ctx)
}
