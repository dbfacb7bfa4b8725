package config

import (
	"fmt"
	"time"
)

// CacheConfig tunes the two cache tiers of herald-api.
type CacheConfig struct {
	// AppCapacity bounds the in-process app lookup cache.
	AppCapacity int `envconfig:"APP_CAPACITY" default:"10000" validate:"min=1"`

	// AppTTL is how long an app stays in the in-process cache.
	AppTTL time.Duration `envconfig:"APP_TTL" default:"30s"`

	// SnapshotTTL is the lifetime of a sync snapshot in Redis. Mutations
	// invalidate earlier.
	SnapshotTTL time.Duration `envconfig:"SNAPSHOT_TTL" default:"5m"`

	// SnapshotEnabled turns the Redis snapshot tier on. When off, every sync
	// reads Postgres.
	SnapshotEnabled bool `envconfig:"SNAPSHOT_ENABLED" default:"true"`
}

// Validate checks the TTLs.
func (c *CacheConfig) Validate() error {
	if c.AppTTL <= 0 {
		return fmt.Errorf("app cache TTL must be positive, got %s", c.AppTTL)
	}
	if c.SnapshotEnabled && c.SnapshotTTL < time.Second {
		return fmt.Errorf("snapshot TTL must be at least 1s, got %s", c.SnapshotTTL)
	}
	return nil
}
