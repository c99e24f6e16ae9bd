package config

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the daemon.
type ExecMode string

const (
	// ExecModeUser keeps state under the invoking user's home directory.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem keeps state in a system directory (running as root).
	ExecModeSystem ExecMode = "system"
)

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() ExecMode {
	if os.Geteuid() == 0 {
		return ExecModeSystem
	}
	return ExecModeUser
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// DefaultDataDir returns where the daemon keeps its state for mode.
func DefaultDataDir(mode ExecMode) string {
	if mode == ExecModeSystem {
		return "/var/lib/scrolloff"
	}
	return filepath.Join(GetRealUserHome(), ".scrolloff")
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}

// getConfigPath returns the config file path and whether it was set explicitly.
func getConfigPath() (string, bool) {
	if path := os.Getenv("SCROLLOFF_CONFIG"); path != "" {
		return path, true
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "scrolloff", "config.yaml"), false
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "scrolloff", "config.yaml"), false
	}

	return "", false
}
