package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPIServerConfig_Validation(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name:    "Should apply listener defaults",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				api := cfg.Server.API
				assert.Equal(t, "0.0.0.0", api.Host)
				assert.Equal(t, 10*time.Second, api.ReadTimeout)
				assert.Equal(t, 10*time.Second, api.WriteTimeout)
				assert.Equal(t, 5*time.Second, api.ReadHeaderTimeout)
				assert.Equal(t, 60*time.Second, api.IdleTimeout)
				assert.Equal(t, 524288, api.MaxHeaderBytes)
				assert.Equal(t, int64(1<<20), api.MaxBodyBytes)
			},
		},
		{
			name:    "Should allow admin auth to be off in development",
			envVars: mergeEnvVars(map[string]string{"HERALD_APP_ENV": "development"}),
			want: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.Server.API.AdminKeyHash)
			},
		},
		{
			name:    "Should validate an admin key hash outside production too",
			envVars: mergeEnvVars(map[string]string{"HERALD_SERVER_API_ADMIN_KEY_HASH": "abc"}),
			wantErr: "invalid admin key hash",
		},
		{
			name: "Should require the admin key hash in production",
			envVars: production(func(env map[string]string) {
				delete(env, "HERALD_SERVER_API_ADMIN_KEY_HASH")
			}),
			wantErr: "admin key hash is required",
		},
		{
			name: "Should reject a non-hex admin key hash",
			envVars: production(func(env map[string]string) {
				env["HERALD_SERVER_API_ADMIN_KEY_HASH"] = "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"
			}),
			wantErr: "hash must be valid hexadecimal",
		},
		{
			name: "Should require TLS in production",
			envVars: production(func(env map[string]string) {
				env["HERALD_SERVER_API_TLS_ENABLED"] = "false"
			}),
			wantErr: "TLS must be enabled",
		},
		{
			name:    "Should require cert and key when TLS is on",
			envVars: mergeEnvVars(map[string]string{"HERALD_SERVER_API_TLS_ENABLED": "true"}),
			wantErr: "cert or key file not specified",
		},
		{
			name:    "Should reject port 0",
			envVars: mergeEnvVars(map[string]string{"HERALD_SERVER_API_PORT": "0"}),
			wantErr: "api port",
		},
		{
			name:    "Should reject a host with surrounding whitespace",
			envVars: mergeEnvVars(map[string]string{"HERALD_SERVER_API_HOST": " 0.0.0.0"}),
			wantErr: "api host cannot contain whitespace",
		},
		{
			name:    "Should reject a zero header limit",
			envVars: mergeEnvVars(map[string]string{"HERALD_SERVER_API_MAX_HEADER_BYTES": "0"}),
			wantErr: "validation error",
		},
	})
}
