package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/levyledger/levyd/internal/config"
)

func TestNewJSONFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levyd.log")
	logger, cleanup, err := New(config.LogConfig{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("settlement applied", zap.Uint64("seq", 7))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"settlement applied"`)
	assert.Contains(t, string(data), `"seq":7`)
}

func TestLevelFiltersOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levyd.log")
	logger, cleanup, err := New(config.LogConfig{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Warn("loud")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "loud")
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "chatty", Format: "json", Output: "stderr"})
	assert.Error(t, err)

	_, _, err = New(config.LogConfig{Level: "info", Format: "yaml", Output: "stderr"})
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "format"))
}

func TestConsoleDefaults(t *testing.T) {
	logger, cleanup, err := New(config.LogConfig{})
	require.NoError(t, err)
	defer cleanup()
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
