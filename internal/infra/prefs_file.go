package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// FilePrefs stores the blocked set in a JSON preferences file shared with
// the UI shell. Other keys in the file are preserved on write.
type FilePrefs struct {
	path string
	lock *flock.Flock

	// flock gives no exclusion between goroutines holding the same handle.
	mu sync.RWMutex
}

// NewFilePrefs creates a store backed by path.
func NewFilePrefs(path string) *FilePrefs {
	return &FilePrefs{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Location returns the preferences file path.
func (p *FilePrefs) Location() string {
	return p.path
}

// Load reads the blocked set. A missing file, missing key or malformed value
// yields the empty set.
func (p *FilePrefs) Load() (domain.BlockedSet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.ensureDir(); err != nil {
		return domain.BlockedSet{}, err
	}
	if err := p.lock.RLock(); err != nil {
		return domain.BlockedSet{}, fmt.Errorf("failed to acquire prefs lock: %w", err)
	}
	defer func() { _ = p.lock.Unlock() }()

	prefs, err := p.read()
	if err != nil {
		return domain.BlockedSet{}, err
	}
	return DecodeBlockedSet(prefs[BlockedAppsKey]), nil
}

// Save replaces the blocked set, writing the native list encoding.
func (p *FilePrefs) Save(set domain.BlockedSet) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureDir(); err != nil {
		return err
	}
	if err := p.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire prefs lock: %w", err)
	}
	defer func() { _ = p.lock.Unlock() }()

	prefs, err := p.read()
	if err != nil {
		return err
	}
	prefs[BlockedAppsKey] = EncodeBlockedSet(set)

	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode prefs: %w", err)
	}
	if err := writeFileAtomic(p.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write prefs: %w", err)
	}
	return nil
}

// read returns the preferences map. An unreadable document is treated as empty.
func (p *FilePrefs) read() (map[string]json.RawMessage, error) {
	prefs := make(map[string]json.RawMessage)

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return prefs, nil
		}
		return nil, fmt.Errorf("failed to read prefs: %w", err)
	}

	if err := json.Unmarshal(data, &prefs); err != nil {
		return make(map[string]json.RawMessage), nil
	}
	return prefs, nil
}

func (p *FilePrefs) ensureDir() error {
	return writeFileAtomicDir(p.path)
}

// Ensure FilePrefs implements domain.BlockedSetStore.
var _ domain.BlockedSetStore = (*FilePrefs)(nil)
