package config

import (
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adminKeyHash is sha256("admin-secret").
const adminKeyHash = "16175223c8ddce5ace0493c948569c211b03c4c6bb3d3e484434999448cffe01"

type loadCase struct {
	name    string
	envVars map[string]string
	want    func(t *testing.T, cfg *Config)
	wantErr string
}

// minimalRequiredConfig is the smallest environment Load accepts.
func minimalRequiredConfig() map[string]string {
	return map[string]string{
		"HERALD_DB_HOST":        "localhost",
		"HERALD_DB_PORT":        "5432",
		"HERALD_DB_NAME":        "herald_test",
		"HERALD_DB_USER":        "test_user",
		"HERALD_DB_PASSWORD":    "test_pass",
		"HERALD_REDIS_HOST":     "localhost",
		"HERALD_REDIS_PORT":     "6379",
		"HERALD_REDIS_PASSWORD": "redis_password_123",
	}
}

func mergeEnvVars(additional map[string]string) map[string]string {
	result := minimalRequiredConfig()
	maps.Copy(result, additional)
	return result
}

// validProductionConfig passes every production-only rule.
func validProductionConfig() map[string]string {
	return map[string]string{
		"HERALD_APP_ENV": "production",

		"HERALD_DB_HOST":     "prod-db.example.com",
		"HERALD_DB_PORT":     "5432",
		"HERALD_DB_NAME":     "herald_prod",
		"HERALD_DB_USER":     "prod_user",
		"HERALD_DB_PASSWORD": "SuperSecure123!",
		"HERALD_DB_SSL_MODE": "require",

		"HERALD_REDIS_HOST":        "prod-redis.example.com",
		"HERALD_REDIS_PORT":        "6379",
		"HERALD_REDIS_PASSWORD":    "RedisSecure123!",
		"HERALD_REDIS_TLS_ENABLED": "true",

		"HERALD_SERVER_API_ADMIN_KEY_HASH": adminKeyHash,
		"HERALD_SERVER_API_TLS_ENABLED":    "true",
		"HERALD_SERVER_API_TLS_CERT_FILE":  "/certs/api-cert.pem",
		"HERALD_SERVER_API_TLS_KEY_FILE":   "/certs/api-key.pem",
	}
}

func production(mutate func(env map[string]string)) map[string]string {
	env := validProductionConfig()
	mutate(env)
	return env
}

func runLoadCases(t *testing.T, tests []loadCase) {
	t.Helper()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// t.Setenv forbids t.Parallel and restores the environment afterwards.
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name:    "Should use defaults when only connections are set",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "herald", cfg.App.Name)
				assert.Equal(t, "dev", cfg.App.Version)
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "info", cfg.App.LogLevel)
				assert.Equal(t, "text", cfg.App.LogFormat)
				assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "3001", cfg.Server.API.Port)
				assert.Empty(t, cfg.Server.API.AdminKeyHash)
				assert.Equal(t, "9090", cfg.Observability.Port)
				assert.Equal(t, 30*time.Second, cfg.Cache.AppTTL)
				assert.Equal(t, 10000, cfg.Cache.AppCapacity)
				assert.Equal(t, 5*time.Minute, cfg.Cache.SnapshotTTL)
				assert.True(t, cfg.Cache.SnapshotEnabled)
			},
		},
		{
			name: "Should load custom values",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_APP_NAME":             "herald-eu",
				"HERALD_APP_VERSION":          "1.4.0",
				"HERALD_APP_ENV":              "staging",
				"HERALD_APP_LOG_LEVEL":        "debug",
				"HERALD_APP_LOG_FORMAT":       "json",
				"HERALD_APP_SHUTDOWN_TIMEOUT": "60s",
				"HERALD_SERVER_API_PORT":      "8080",
				"HERALD_CACHE_APP_TTL":        "1m",
				"HERALD_CACHE_SNAPSHOT_TTL":   "30s",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "herald-eu", cfg.App.Name)
				assert.Equal(t, "1.4.0", cfg.App.Version)
				assert.Equal(t, "staging", cfg.App.Environment)
				assert.Equal(t, "debug", cfg.App.LogLevel)
				assert.Equal(t, "json", cfg.App.LogFormat)
				assert.Equal(t, time.Minute, cfg.App.ShutdownTimeout)
				assert.Equal(t, "0.0.0.0:8080", cfg.Server.API.Address())
				assert.Equal(t, time.Minute, cfg.Cache.AppTTL)
				assert.Equal(t, 30*time.Second, cfg.Cache.SnapshotTTL)
			},
		},
		{
			name:    "Should reject an unknown environment",
			envVars: mergeEnvVars(map[string]string{"HERALD_APP_ENV": "qa"}),
			wantErr: "validation error",
		},
		{
			name:    "Should reject an unknown log level",
			envVars: mergeEnvVars(map[string]string{"HERALD_APP_LOG_LEVEL": "trace"}),
			wantErr: "validation error",
		},
		{
			name:    "Should reject an unknown log format",
			envVars: mergeEnvVars(map[string]string{"HERALD_APP_LOG_FORMAT": "xml"}),
			wantErr: "validation error",
		},
		{
			name:    "Should reject a malformed duration",
			envVars: mergeEnvVars(map[string]string{"HERALD_CACHE_APP_TTL": "soon"}),
			wantErr: "failed to process environment variables",
		},
		{
			name:    "Should reject a non-positive app cache TTL",
			envVars: mergeEnvVars(map[string]string{"HERALD_CACHE_APP_TTL": "0s"}),
			wantErr: "app cache TTL must be positive",
		},
		{
			name:    "Should reject a sub-second snapshot TTL",
			envVars: mergeEnvVars(map[string]string{"HERALD_CACHE_SNAPSHOT_TTL": "500ms"}),
			wantErr: "snapshot TTL must be at least 1s",
		},
		{
			name: "Should ignore the snapshot TTL when snapshots are off",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_CACHE_SNAPSHOT_ENABLED": "false",
				"HERALD_CACHE_SNAPSHOT_TTL":     "0s",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Cache.SnapshotEnabled)
			},
		},
		{
			name:    "Should accept a complete production configuration",
			envVars: validProductionConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, EnvironmentProduction, cfg.App.Environment)
				assert.Equal(t, adminKeyHash, cfg.Server.API.AdminKeyHash)
			},
		},
	})
}

func TestLoad_Observability(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name: "Should load port and timeout",
			envVars: mergeEnvVars(map[string]string{
				"HERALD_OBSERVABILITY_PORT":    "9100",
				"HERALD_OBSERVABILITY_TIMEOUT": "1s",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "9100", cfg.Observability.Port)
				assert.Equal(t, time.Second, cfg.Observability.Timeout)
				assert.Equal(t, "/healthz", cfg.Observability.LivenessPath)
				assert.Equal(t, "/readyz", cfg.Observability.ReadinessPath)
				assert.Equal(t, "/metrics", cfg.Observability.MetricsPath)
			},
		},
		{
			name:    "Should reject port 0",
			envVars: mergeEnvVars(map[string]string{"HERALD_OBSERVABILITY_PORT": "0"}),
			wantErr: "observability port must be between 1 and 65535",
		},
		{
			name:    "Should reject port 65536",
			envVars: mergeEnvVars(map[string]string{"HERALD_OBSERVABILITY_PORT": "65536"}),
			wantErr: "observability port",
		},
		{
			name:    "Should reject a timeout under one second",
			envVars: mergeEnvVars(map[string]string{"HERALD_OBSERVABILITY_TIMEOUT": "999ms"}),
			wantErr: "validation error",
		},
	})
}
