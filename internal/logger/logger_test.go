package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/herald/internal/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	t.Run("Should write JSON with identity attributes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&config.AppConfig{
			Name: "herald-api", Version: "1.2.3", Environment: "production",
			LogLevel: "info", LogFormat: "json",
		}, &buf)

		log.Info("hello", slog.String("app_id", "a1"))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "hello", record["msg"])
		assert.Equal(t, "herald-api", record["service"])
		assert.Equal(t, "1.2.3", record["version"])
		assert.Equal(t, "production", record["env"])
		assert.Equal(t, "a1", record["app_id"])
		assert.NotContains(t, record, "source", "no source in production")
	})

	t.Run("Should write text and honor the level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&config.AppConfig{
			Name: "herald-agent", Environment: "development", LogLevel: "warn", LogFormat: "text",
		}, &buf)

		log.Info("dropped")
		log.Warn("kept")

		out := buf.String()
		assert.NotContains(t, out, "dropped")
		assert.Contains(t, out, "level=WARN")
		assert.Contains(t, out, "msg=kept")
		assert.Contains(t, out, "service=herald-agent")
		assert.Contains(t, out, "source=")
	})

	t.Run("Should panic on nil config", func(t *testing.T) {
		t.Parallel()
		assert.PanicsWithValue(t, "logger: config cannot be nil", func() {
			NewWithWriter(nil, &bytes.Buffer{})
		})
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	Component(slog.New(slog.NewTextHandler(&buf, nil)), "reconciler").Info("x")

	assert.Contains(t, buf.String(), "component=reconciler")
}
