package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk layout of a catalog file:
//
//	apps:
//	  - package: com.example.game
//	    name: Example Game
//	    icon: icons/game.png
//	    suggested: true
type fileFormat struct {
	Apps []App `yaml:"apps"`
}

// LoadFile merges entries from a YAML catalog file into r.
// Relative icon paths are resolved against the file's directory.
// A missing file returns an error satisfying os.IsNotExist.
func LoadFile(r *Registry, path string) error {
	// #nosec G304 - path comes from the user's own configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for _, a := range f.Apps {
		if a.Icon != "" && !filepath.IsAbs(a.Icon) {
			a.Icon = filepath.Join(dir, a.Icon)
		}
		if existing, ok := r.Get(a.Package); ok && a.Name == "" {
			a.Name = existing.Name
		}
		r.Register(a)
	}
	return nil
}
