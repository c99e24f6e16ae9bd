// Package catalog holds the registry of known apps: display names, icons and
// the default set of distracting apps suggested for blocking.
package catalog

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// ErrAppNotFound is returned when a package has no catalog entry.
var ErrAppNotFound = errors.New("app not in catalog")

// App is a catalog entry.
type App struct {
	Package   string `yaml:"package"`
	Name      string `yaml:"name"`
	Icon      string `yaml:"icon,omitempty"` // PNG path, resolved against the catalog file's directory
	Suggested bool   `yaml:"suggested,omitempty"`
}

// Registry maps package identifiers to catalog entries.
// Populated from built-in defaults and optionally a YAML file.
type Registry struct {
	apps map[string]App
}

// NewRegistry creates a registry seeded with the default apps.
func NewRegistry() *Registry {
	return NewRegistryWithApps(DefaultApps()...)
}

// NewRegistryWithApps creates a registry with custom apps (for testing).
func NewRegistryWithApps(apps ...App) *Registry {
	r := &Registry{
		apps: make(map[string]App),
	}
	for _, a := range apps {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an entry. Entries without a package are ignored.
func (r *Registry) Register(a App) {
	if a.Package == "" {
		return
	}
	r.apps[a.Package] = a
}

// Get returns the entry for pkg.
func (r *Registry) Get(pkg string) (App, bool) {
	a, ok := r.apps[pkg]
	return a, ok
}

// GetAll returns all entries sorted by display name.
func (r *Registry) GetAll() []App {
	result := make([]App, 0, len(r.apps))
	for _, a := range r.apps {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].Package < result[j].Package
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// Suggested returns the package identifiers flagged as default block candidates.
func (r *Registry) Suggested() domain.BlockedSet {
	set := domain.NewBlockedSet()
	for pkg, a := range r.apps {
		if a.Suggested {
			set.Add(pkg)
		}
	}
	return set
}

// Label returns the display name for pkg.
func (r *Registry) Label(_ context.Context, pkg string) (string, error) {
	a, ok := r.apps[pkg]
	if !ok || a.Name == "" {
		return "", fmt.Errorf("%w: %s", ErrAppNotFound, pkg)
	}
	return a.Name, nil
}

// IconBase64 returns the entry's icon encoded for the UI shell.
// Returns "" when the entry has no icon.
func (r *Registry) IconBase64(pkg string) (string, error) {
	a, ok := r.apps[pkg]
	if !ok || a.Icon == "" {
		return "", nil
	}
	data, err := os.ReadFile(a.Icon)
	if err != nil {
		return "", fmt.Errorf("failed to read icon for %s: %w", pkg, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Ensure Registry implements domain.AppLabeler.
var _ domain.AppLabeler = (*Registry)(nil)
