package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Options{Level: "warn", Console: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestNewLogger_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Options{Console: &buf})
	require.NoError(t, err)

	logger.Info("sample", zap.Float64("cpu", 0.5))
	_ = logger.Sync()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "sample", entry["msg"])
	assert.Equal(t, 0.5, entry["cpu"])
	assert.Contains(t, entry, "ts")
}

func TestNewLogger_TeesToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "agent.log")

	logger, err := NewLogger(Options{File: path, Console: &buf})
	require.NoError(t, err)

	logger.Info("restart executed")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "restart executed"))
	assert.Contains(t, buf.String(), "restart executed")
}
