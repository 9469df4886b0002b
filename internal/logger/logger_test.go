package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-exchange-reconciler/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		raw      string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.raw))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("carries app and env", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &config.Config{
			Application: config.ApplicationConfig{Name: "exchange-reconciler", Env: "test"},
			Logging:     config.LoggingConfig{Level: "info"},
		}

		logger := New(&buf, cfg)
		require.NotNil(t, logger)

		buf.Reset()
		logger.Info("pass finished", "claimed", 3)

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "pass finished", record["msg"])
		assert.Equal(t, "exchange-reconciler", record["app"])
		assert.Equal(t, "test", record["env"])
		assert.Equal(t, float64(3), record["claimed"])
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &config.Config{Logging: config.LoggingConfig{Level: "warn"}}

		logger := New(&buf, cfg)
		assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
		assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

		buf.Reset()
		logger.Info("dropped")
		assert.Zero(t, buf.Len())
	})

	t.Run("debug enables info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, &config.Config{Logging: config.LoggingConfig{Level: "debug"}})
		assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
		assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	})
}
