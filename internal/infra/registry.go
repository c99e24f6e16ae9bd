package infra

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gofrs/flock"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// FileRegistry implements domain.DaemonRegistry using a JSON file in the
// data directory.
type FileRegistry struct {
	path           string
	lock           *flock.Flock
	processManager domain.ProcessManager
}

// NewFileRegistry creates a registry at path.
func NewFileRegistry(path string, pm domain.ProcessManager) *FileRegistry {
	return &FileRegistry{
		path:           path,
		lock:           flock.New(path + ".lock"),
		processManager: pm,
	}
}

// GetRegistryPath returns the registry file path.
func (r *FileRegistry) GetRegistryPath() string {
	return r.path
}

// Register records the running daemon. A second daemon started while the
// first is alive is refused.
func (r *FileRegistry) Register(state domain.DaemonState) error {
	if err := writeFileAtomicDir(r.path); err != nil {
		return err
	}
	if err := r.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = r.lock.Unlock() }()

	existing, err := r.Get()
	if err != nil {
		return err
	}
	if existing != nil && existing.PID != state.PID && r.processManager.IsRunning(existing.PID) {
		return fmt.Errorf("daemon already running (pid %d)", existing.PID)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(r.path, data, 0600)
}

// Get returns the registered state, or nil if none.
func (r *FileRegistry) Get() (*domain.DaemonState, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var state domain.DaemonState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}
	return &state, nil
}

// IsAlive checks if the registered daemon is running via PID.
func (r *FileRegistry) IsAlive() (bool, error) {
	state, err := r.Get()
	if err != nil {
		return false, err
	}
	if state == nil {
		return false, nil
	}
	return r.processManager.IsRunning(state.PID), nil
}

// Clear removes the registry file. Clearing an empty registry is not an error.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.DaemonRegistry.
var _ domain.DaemonRegistry = (*FileRegistry)(nil)
