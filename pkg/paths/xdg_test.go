package paths

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStratusHomeOverridesXDG(t *testing.T) {
	home := t.TempDir()
	t.Setenv("STRATUS_HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/config")

	assert.Equal(t, filepath.Join(home, "config", "stratus"), ConfigDir())
	assert.Equal(t, filepath.Join(home, "state", "stratus"), StateDir())
	assert.Equal(t, filepath.Join(home, "state", "stratus", "logs"), LogDir())
}

func TestXDGFallback(t *testing.T) {
	t.Setenv("STRATUS_HOME", "")
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")

	assert.Equal(t, filepath.Join("/tmp/xdg-state", "stratus"), StateDir())
}

func TestLogFileIsDated(t *testing.T) {
	t.Setenv("STRATUS_HOME", "/srv/stratus")
	day := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "/srv/stratus/state/stratus/logs/watch-2026-03-04.log", LogFile("watch", day))
}

func TestEnsureDirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("STRATUS_HOME", home)

	require.NoError(t, EnsureDirs())
	assert.DirExists(t, ConfigDir())
	assert.DirExists(t, LogDir())
}
