package services

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewSlogLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(&buf, "production", "INFO")
	logger.Debug("hidden")
	logger.Info("model substituted", "requested", "x", "effective", "y")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "model substituted", entry["msg"])
	assert.Equal(t, "y", entry["effective"])
}

func TestNewLogger_TestEnvIsSilent(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	_, ok := NewLogger("chat").(*NoOpLogger)
	assert.True(t, ok)

	var _ Logger = slog.Default()
}
