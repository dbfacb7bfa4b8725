package config

import (
	"fmt"
	"time"
)

// SDKConfig configures the SDK embedded in herald-agent.
type SDKConfig struct {
	APIURL         string        `envconfig:"API_URL" validate:"required"`
	AppID          string        `envconfig:"APP_ID" validate:"required"`
	APIKey         string        `envconfig:"API_KEY"`
	SyncInterval   time.Duration `envconfig:"SYNC_INTERVAL" default:"60s"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	FullSyncEvery  int           `envconfig:"FULL_SYNC_EVERY" default:"10"`
	TrackSessions  bool          `envconfig:"TRACK_SESSIONS" default:"true"`

	// UserID and Locale seed the user context at startup.
	UserID string `envconfig:"USER_ID"`
	Locale string `envconfig:"LOCALE"`
}

// Validate checks the API URL and intervals. Production requires HTTPS and an API key.
func (c *SDKConfig) Validate(environment string) error {
	schemes := []string{"http", "https"}
	if environment == EnvironmentProduction {
		schemes = []string{"https"}
	}
	if _, err := parseAndValidateURL(c.APIURL, schemes); err != nil {
		return fmt.Errorf("invalid sdk api url: %w", err)
	}
	if err := validateNoWhitespace(c.AppID, "sdk app id"); err != nil {
		return err
	}
	if environment == EnvironmentProduction && c.APIKey == "" {
		return fmt.Errorf("sdk api key is required in production environment")
	}
	if c.SyncInterval < time.Second {
		return fmt.Errorf("sdk sync interval must be at least 1s, got %s", c.SyncInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("sdk request timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}
