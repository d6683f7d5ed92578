package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("STRATUS_HOME", home)
	t.Setenv("STRATUS_LOG_LEVEL", "")
	reset()
	t.Cleanup(reset)
	return home
}

func TestNewLogger(t *testing.T) {
	isolate(t)

	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Data["component"])

	// Same component returns the cached entry
	assert.Same(t, logger, NewLogger("test-component"))
}

func TestLoggerWritesDefaultLogFile(t *testing.T) {
	home := isolate(t)

	NewLogger("stream").Info("hello from stream")

	matches, err := filepath.Glob(filepath.Join(home, "state", "stratus", "logs", "stream-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from stream")
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "test")
	entry.WithField("tag", "ping").WithField("attempt", 2).Warn("Test message")

	output := buf.String()
	assert.Contains(t, output, "[WARN]")
	assert.Contains(t, output, "test")
	assert.Contains(t, output, "Test message")
	// Fields are sorted
	assert.Less(t, strings.Index(output, "attempt=2"), strings.Index(output, "tag=ping"))
}

func TestTextFormatterOptions(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{DisableTimestamp: true, DisableComponent: true}})

	logger.WithField("component", "hidden").Info("plain")

	assert.Equal(t, "[INFO] plain\n", buf.String())
}

func TestEnvironmentLevel(t *testing.T) {
	isolate(t)
	t.Setenv("STRATUS_LOG_LEVEL", "debug")

	logger := NewLogger("env-level")
	assert.Equal(t, logrus.DebugLevel, logger.Logger.GetLevel())
}

func TestConfigureAndSetLevel(t *testing.T) {
	isolate(t)

	Configure(Config{Level: "warn", File: FileSinkConfig{Disabled: true}})
	logger := NewLogger("configured")
	assert.Equal(t, logrus.WarnLevel, logger.Logger.GetLevel())

	require.NoError(t, SetLevel("error"))
	assert.Equal(t, logrus.ErrorLevel, logger.Logger.GetLevel())
	assert.Equal(t, logrus.ErrorLevel, NewLogger("later").Logger.GetLevel())

	assert.Error(t, SetLevel("loud"))
}
