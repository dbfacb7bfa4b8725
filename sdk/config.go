package sdk

import (
	"errors"
	"time"

	"github.com/rafaeljc/herald/internal/client"
	"github.com/rafaeljc/herald/internal/syncer"
)

// Config holds the SDK settings.
type Config struct {
	// APIURL is the base URL of the Herald API, e.g. https://herald.example.com.
	APIURL string

	// AppID identifies the app whose notifications are synced.
	AppID string

	// APIKey is sent as X-API-Key when set.
	APIKey string

	// SyncInterval is the auto-sync period. Defaults to 60s.
	SyncInterval time.Duration

	// RequestTimeout bounds each HTTP call. Defaults to 15s.
	RequestTimeout time.Duration

	// FullSyncEvery forces a full sync every N auto-sync ticks so notifications
	// disabled on the server leave the cache. Zero means the default (10),
	// negative disables it.
	FullSyncEvery int

	// TrackSessions enables session start/end reporting.
	TrackSessions bool

	// Channel is configured on Initialize. Defaults to content.DefaultChannel.
	Channel Channel
}

func (c Config) withDefaults() Config {
	if c.SyncInterval <= 0 {
		c.SyncInterval = syncer.DefaultInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = client.DefaultTimeout
	}
	if c.FullSyncEvery == 0 {
		c.FullSyncEvery = syncer.DefaultFullSyncEvery
	}
	if c.Channel.ID == "" {
		c.Channel = defaultChannel
	}
	return c
}

// Validate checks the mandatory fields.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("sdk: api url is required")
	}
	if c.AppID == "" {
		return errors.New("sdk: app id is required")
	}
	return nil
}
