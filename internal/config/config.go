// Package config loads daemon and CLI settings from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Usage event sources.
const (
	SourceADB     = "adb"
	SourceProcess = "process"
)

// Blocked-set storage backends.
const (
	StorageFile      = "file"
	StorageEncrypted = "encrypted"
)

// Config holds all configuration for scrolloff.
type Config struct {
	// Companion app package; never blocked and the redirect target.
	Companion string `yaml:"companion_package"`

	PollInterval time.Duration `yaml:"poll_interval"`
	QueryWindow  time.Duration `yaml:"query_window"`

	Source string    `yaml:"source"`
	ADB    ADBConfig `yaml:"adb"`

	Storage   string `yaml:"storage"`
	PrefsPath string `yaml:"prefs_path"`

	DataDir     string `yaml:"data_dir"`
	SocketPath  string `yaml:"socket_path"`
	CatalogFile string `yaml:"catalog_file"`
	LogFile     string `yaml:"log_file"`

	AutostartMonitoring bool `yaml:"autostart_monitoring"`

	// Path of the file the config was read from, empty if none.
	Path string `yaml:"-"`
}

// ADBConfig selects the device bridge binary and target.
type ADBConfig struct {
	Path   string `yaml:"path"`
	Serial string `yaml:"serial"`
	// Extra global flags, shell-quoted (e.g. `-H 10.0.0.2 -P 5037`).
	ExtraArgs string `yaml:"extra_args"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Companion:    "com.example.scrolloff",
		PollInterval: 1 * time.Second,
		QueryWindow:  2 * time.Second,
		Source:       SourceADB,
		ADB: ADBConfig{
			Path: "adb",
		},
		Storage: StorageFile,
		DataDir: DefaultDataDir(DetectExecMode()),
	}
}

// Load reads the config file from the standard locations, then applies
// environment overrides. A missing file at a default location is not an error.
func Load() (*Config, error) {
	path, explicit := getConfigPath()
	return load(path, explicit)
}

// LoadFrom reads the config file at path. An empty path behaves like Load.
func LoadFrom(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	return load(path, true)
}

func load(path string, explicit bool) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		err := loadFromFile(cfg, path)
		switch {
		case err == nil:
			cfg.Path = path
		case os.IsNotExist(err) && !explicit:
		default:
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	cfg.applyDerivedDefaults()

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - path comes from the user's flag or standard locations
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	strs := map[string]*string{
		"SCROLLOFF_COMPANION":  &cfg.Companion,
		"SCROLLOFF_SOURCE":     &cfg.Source,
		"SCROLLOFF_ADB_PATH":   &cfg.ADB.Path,
		"SCROLLOFF_ADB_SERIAL": &cfg.ADB.Serial,
		"SCROLLOFF_ADB_ARGS":   &cfg.ADB.ExtraArgs,
		"SCROLLOFF_STORAGE":    &cfg.Storage,
		"SCROLLOFF_PREFS":      &cfg.PrefsPath,
		"SCROLLOFF_DATA_DIR":   &cfg.DataDir,
		"SCROLLOFF_SOCKET":     &cfg.SocketPath,
		"SCROLLOFF_CATALOG":    &cfg.CatalogFile,
		"SCROLLOFF_LOG_FILE":   &cfg.LogFile,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"SCROLLOFF_POLL_INTERVAL": &cfg.PollInterval,
		"SCROLLOFF_QUERY_WINDOW":  &cfg.QueryWindow,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v := os.Getenv("SCROLLOFF_AUTOSTART"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SCROLLOFF_AUTOSTART value: %q (use true/false)", v)
		}
		cfg.AutostartMonitoring = b
	}

	return nil
}

// applyDerivedDefaults fills paths that live under the data directory.
func (c *Config) applyDerivedDefaults() {
	if c.PrefsPath == "" {
		c.PrefsPath = filepath.Join(c.DataDir, "shared_prefs.json")
	}
	if c.SocketPath == "" {
		c.SocketPath = filepath.Join(c.DataDir, "scrolloff.sock")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "scrolloff.log")
	}
}

// RegistryPath is the daemon state file.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.DataDir, "daemon.json")
}

// DatabasePath is the encrypted blocked-set store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "prefs.db")
}

// KeyPath is the encryption key for DatabasePath.
func (c *Config) KeyPath() string {
	return filepath.Join(c.DataDir, ".key")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Companion == "" {
		return fmt.Errorf("companion_package is required")
	}

	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	if cfg.QueryWindow < cfg.PollInterval {
		return fmt.Errorf("query_window (%s) must be at least poll_interval (%s)", cfg.QueryWindow, cfg.PollInterval)
	}

	switch cfg.Source {
	case SourceADB, SourceProcess:
	default:
		return fmt.Errorf("unknown source %q (use %s or %s)", cfg.Source, SourceADB, SourceProcess)
	}

	switch cfg.Storage {
	case StorageFile, StorageEncrypted:
	default:
		return fmt.Errorf("unknown storage %q (use %s or %s)", cfg.Storage, StorageFile, StorageEncrypted)
	}

	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	return nil
}
