package domain

import (
	"context"
	"time"
)

// UsageEventSource exposes the platform's foreground-transition log.
// Implementations: adb dumpsys usagestats (Android), gopsutil process launches (desktop).
type UsageEventSource interface {
	// Query returns events recorded in [start, end).
	Query(ctx context.Context, start, end time.Time) ([]ForegroundEvent, error)
}

// BlockedSetProvider is the read side of the persisted blocked set.
// The monitor calls Load on every poll; nothing is cached.
type BlockedSetProvider interface {
	Load() (BlockedSet, error)
}

// BlockedSetStore adds mutation for the bridge layer.
type BlockedSetStore interface {
	BlockedSetProvider

	// Save replaces the persisted set.
	Save(set BlockedSet) error

	// Location returns the backing path (file or database), for watchers and status output.
	Location() string
}

// PermissionChecker is a synchronous capability check plus a separate
// fire-and-forget request that opens the platform settings screen.
type PermissionChecker interface {
	Check(ctx context.Context, kind PermissionKind) (bool, error)
	Request(ctx context.Context, kind PermissionKind) error
}

// Redirector brings the companion app to the foreground.
type Redirector interface {
	BringToForeground(ctx context.Context, screen BlockedScreen) error
}

// Overlay shows and tears down the transient blocking overlay.
type Overlay interface {
	Show(ctx context.Context, screen BlockedScreen) error

	// Hide is idempotent: hiding when nothing is shown is not an error.
	Hide(ctx context.Context) error
}

// AppLabeler resolves a package identifier to a display name.
type AppLabeler interface {
	Label(ctx context.Context, pkg string) (string, error)
}

// AppLister enumerates user-installed apps for the UI shell.
type AppLister interface {
	ListInstallableApps(ctx context.Context) ([]InstalledApp, error)
}

// Navigator pushes "show blocked screen" events to the UI shell.
type Navigator interface {
	NavigateToBlockedScreen(screen BlockedScreen)
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern (case-insensitive).
	FindByName(pattern string) ([]int, error)

	// Kill terminates a process by PID.
	Kill(pid int) error

	// StartedSince returns processes created at or after since.
	StartedSince(since time.Time) ([]ProcessStart, error)

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// ProcessStart is a process launch observed on the host.
type ProcessStart struct {
	PID       int
	Name      string
	CreatedAt time.Time
}

// DaemonRegistry records the running daemon so CLI commands can find it.
// Implementation: JSON file in the data directory, guarded by a file lock.
type DaemonRegistry interface {
	// Register saves the daemon state.
	Register(state DaemonState) error

	// Get returns the registered state, or nil if none.
	Get() (*DaemonState, error)

	// IsAlive reports whether the registered daemon process is running.
	IsAlive() (bool, error)

	// Clear removes the registry file.
	Clear() error

	// GetRegistryPath returns the registry file path (for tests).
	GetRegistryPath() string
}

// AutostartManager installs the daemon as a login service that is restarted
// if it dies.
type AutostartManager interface {
	Install(ctx context.Context, execPath, configPath string) error
	Uninstall(ctx context.Context) error
	IsInstalled() bool
	Path() string
}
