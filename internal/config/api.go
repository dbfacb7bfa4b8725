package config

import (
	"encoding/hex"
	"fmt"
	"time"
)

// APIServerConfig configures the herald-api HTTP listener.
type APIServerConfig struct {
	Port              string        `envconfig:"PORT" default:"3001"`
	Host              string        `envconfig:"HOST" default:"0.0.0.0"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes    int           `envconfig:"MAX_HEADER_BYTES" default:"524288" validate:"min=1"`
	MaxBodyBytes      int64         `envconfig:"MAX_BODY_BYTES" default:"1048576" validate:"min=1"`

	// AdminKeyHash is the hex SHA-256 of the admin bearer token. Empty disables
	// admin authentication, which is only accepted outside production.
	AdminKeyHash string `envconfig:"ADMIN_KEY_HASH"`

	TLSEnabled bool   `envconfig:"TLS_ENABLED" default:"false"`
	TLSCert    string `envconfig:"TLS_CERT_FILE"`
	TLSKey     string `envconfig:"TLS_KEY_FILE"`
}

// Address returns host:port.
func (c *APIServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// Validate checks the listener and the production security requirements.
func (c *APIServerConfig) Validate(environment string) error {
	if err := validatePort(c.Port, "api"); err != nil {
		return err
	}
	if err := validateHost(c.Host, "api"); err != nil {
		return err
	}

	if c.AdminKeyHash != "" {
		if err := validateSHA256Hash(c.AdminKeyHash); err != nil {
			return fmt.Errorf("invalid admin key hash: %w", err)
		}
	}

	if environment == EnvironmentProduction {
		if c.AdminKeyHash == "" {
			return fmt.Errorf("admin key hash is required in production environment")
		}
		if !c.TLSEnabled {
			return fmt.Errorf("TLS must be enabled in production environment")
		}
	}

	if c.TLSEnabled && (c.TLSCert == "" || c.TLSKey == "") {
		return fmt.Errorf("TLS enabled but cert or key file not specified")
	}

	return nil
}

// validateSHA256Hash checks for 64 hex characters.
func validateSHA256Hash(hash string) error {
	if len(hash) != 64 {
		return fmt.Errorf("SHA-256 hash must be 64 characters, got %d", len(hash))
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return fmt.Errorf("hash must be valid hexadecimal: %w", err)
	}
	return nil
}
