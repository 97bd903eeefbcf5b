// Package paths resolves configuration and data directory locations for
// the POS client.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// CWD-relative directory names used when no override is active.
const (
	DefaultConfigDirName = ".bluecounts"
	DefaultDataDirName   = ".bluecounts-db"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "BLUECOUNTS_CONFIG_DIR"
	EnvDataDir   = "BLUECOUNTS_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/bluecounts (fallback ~/.config/bluecounts)
// macOS:   ~/Library/Application Support/bluecounts
// Windows: %APPDATA%/bluecounts
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "bluecounts"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "bluecounts"), nil
	default:
		// macOS and Windows use os.UserConfigDir which returns
		// ~/Library/Application Support on macOS and %APPDATA% on Windows.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "bluecounts"), nil
	}
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/bluecounts (fallback ~/.local/share/bluecounts)
// macOS:   ~/Library/Application Support/bluecounts
// Windows: %APPDATA%/bluecounts
func DefaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "bluecounts"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "bluecounts"), nil
	default:
		// macOS and Windows: same as config dir.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "bluecounts"), nil
	}
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > BLUECOUNTS_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > config.yaml data_dir > BLUECOUNTS_DATA_DIR env > $(CWD)/.bluecounts-db.
//
// The CWD-relative default keeps each register's database next to where the
// client runs unless an override says otherwise.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}
