// Package paths provides XDG-compliant path resolution for stratus.
//
// Resolution order:
// 1. STRATUS_HOME (portable root) → $STRATUS_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/stratus
// 3. Platform defaults → ~/.config/stratus, ~/.local/state/stratus
package paths

import (
	"os"
	"path/filepath"
	"time"
)

const appName = "stratus"

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if home := os.Getenv("STRATUS_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if home := os.Getenv("STRATUS_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the stratus configuration directory.
// Used for the global stratus.yml / stratus.toml.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// StateDir returns the stratus state directory.
// Used for runtime state and logs.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// LogDir returns the directory holding per-component log files.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// LogFile returns the log file path for a component on the given day.
func LogFile(component string, day time.Time) string {
	dir := LogDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, component+"-"+day.Format("2006-01-02")+".log")
}

// EnsureDirs creates all stratus directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), LogDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
