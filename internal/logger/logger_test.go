package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("create logger with console output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Output: &buf})
		require.NoError(t, err)
		defer logger.Close()

		logger.Info().Str("destination", "world").Msg("session started")
		assert.Contains(t, buf.String(), `"destination":"world"`)
	})

	t.Run("create logger with file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "test.log")

		logger, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)

		logger.Info().Msg("test message")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "test message")
	})

	t.Run("create logger with redaction", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Redaction: true, Output: &buf})
		require.NoError(t, err)
		assert.NotNil(t, logger.redactor)

		logger.Info().Msg("Authorization: Bearer abc123.def456")
		assert.Contains(t, buf.String(), "[REDACTED]")
	})

	t.Run("log file in unwritable location", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0600))

		_, err := New(Config{File: filepath.Join(blocker, "sub", "test.log")})
		assert.Error(t, err)
	})
}

func TestNew_LevelFallback(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "chatty", Output: &buf})
	require.NoError(t, err)

	assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())

	logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestNew_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(Config{Level: "info", Console: true, Output: &buf})
	require.NoError(t, err)

	log.Info().Msg("through global")
	assert.Contains(t, buf.String(), "through global")
}

func TestLoggerMethods(t *testing.T) {
	logger, err := New(Config{Level: "debug", File: filepath.Join(t.TempDir(), "test.log")})
	require.NoError(t, err)
	defer logger.Close()

	assert.NotNil(t, logger.Debug())
	assert.NotNil(t, logger.Info())
	assert.NotNil(t, logger.Warn())
	assert.NotNil(t, logger.Error())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Empty(t, cfg.File)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Console: true, Output: &buf})
	require.NoError(t, err)

	child := logger.Component("gateway")
	child.Info().Msg("listening")

	assert.Contains(t, buf.String(), `"component":"gateway"`)
}
