package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName = "meshtun"

	// EnvConfigDir overrides the platform configuration directory.
	EnvConfigDir = "MESHTUN_CONFIG_DIR"
)

// ConfigDir returns the platform-specific configuration directory.
func ConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", appName)
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), appName)
	default: // linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, appName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", appName)
	}
}

// ProfilePath returns the path to the tunnel profile.
func ProfilePath() string {
	return filepath.Join(ConfigDir(), "profile.json")
}

// LegacyConfigPath returns the path to a YAML document left by older installs.
func LegacyConfigPath() string {
	return filepath.Join(ConfigDir(), "yggdrasil.yaml")
}

// StatePath returns the path to the tunnel process state file.
func StatePath() string {
	return filepath.Join(ConfigDir(), "state.json")
}

// SocketPath returns the path to the tunnel IPC socket.
func SocketPath() string {
	return filepath.Join(ConfigDir(), "tunnel.sock")
}

// DaemonLogPath returns the path to the tunnel process log file.
func DaemonLogPath() string {
	return filepath.Join(ConfigDir(), "tunnel.log")
}

// EnsureDirs creates the config directory if it doesn't exist.
func EnsureDirs() error {
	return os.MkdirAll(ConfigDir(), 0750)
}
