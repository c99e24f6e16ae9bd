package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// StartDaemon spawns the daemon from the running executable.
// The child is detached from the parent process (runs independently).
func StartDaemon(configPath string) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable: %w", err)
	}
	return StartDaemonWithPath(executable, configPath)
}

// StartDaemonWithPath spawns binaryPath in daemon mode.
func StartDaemonWithPath(binaryPath, configPath string) error {
	cmd := exec.Command(binaryPath, DaemonArgs(configPath)...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	// The daemon logs to its own file; no inherited stdio.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	return cmd.Process.Release()
}

// DaemonArgs builds the hidden "daemon" command line:
// scrolloff daemon [--config path]
func DaemonArgs(configPath string) []string {
	args := []string{"daemon"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return args
}
