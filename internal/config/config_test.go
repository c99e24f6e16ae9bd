package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"SCROLLOFF_CONFIG", "SCROLLOFF_COMPANION", "SCROLLOFF_SOURCE",
	"SCROLLOFF_ADB_PATH", "SCROLLOFF_ADB_SERIAL", "SCROLLOFF_ADB_ARGS",
	"SCROLLOFF_STORAGE", "SCROLLOFF_PREFS", "SCROLLOFF_DATA_DIR",
	"SCROLLOFF_SOCKET", "SCROLLOFF_CATALOG", "SCROLLOFF_LOG_FILE",
	"SCROLLOFF_POLL_INTERVAL", "SCROLLOFF_QUERY_WINDOW", "SCROLLOFF_AUTOSTART",
}

// isolate clears SCROLLOFF_* and points config discovery at an empty dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "com.example.scrolloff", cfg.Companion)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.QueryWindow)
	assert.Equal(t, SourceADB, cfg.Source)
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.Equal(t, "adb", cfg.ADB.Path)
	assert.False(t, cfg.AutostartMonitoring)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("SCROLLOFF_DATA_DIR", "/tmp/scrolloff-test")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Empty(t, cfg.Path)
	assert.Equal(t, "/tmp/scrolloff-test/shared_prefs.json", cfg.PrefsPath)
	assert.Equal(t, "/tmp/scrolloff-test/scrolloff.sock", cfg.SocketPath)
	assert.Equal(t, "/tmp/scrolloff-test/scrolloff.log", cfg.LogFile)
	assert.Equal(t, "/tmp/scrolloff-test/daemon.json", cfg.RegistryPath())
	assert.Equal(t, "/tmp/scrolloff-test/prefs.db", cfg.DatabasePath())
	assert.Equal(t, "/tmp/scrolloff-test/.key", cfg.KeyPath())
}

func TestLoad_XDGFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "scrolloff", "config.yaml")
	writeConfig(t, path, `
companion_package: org.focus.app
poll_interval: 500ms
query_window: 3s
source: process
storage: encrypted
data_dir: /srv/scrolloff
autostart_monitoring: true
adb:
  serial: emulator-5554
  extra_args: "-H 10.0.0.2 -P 5037"
`)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "org.focus.app", cfg.Companion)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3*time.Second, cfg.QueryWindow)
	assert.Equal(t, SourceProcess, cfg.Source)
	assert.Equal(t, StorageEncrypted, cfg.Storage)
	assert.True(t, cfg.AutostartMonitoring)
	assert.Equal(t, "emulator-5554", cfg.ADB.Serial)
	assert.Equal(t, "-H 10.0.0.2 -P 5037", cfg.ADB.ExtraArgs)
	assert.Equal(t, "adb", cfg.ADB.Path, "unset nested fields keep defaults")
	assert.Equal(t, "/srv/scrolloff/scrolloff.sock", cfg.SocketPath)
}

func TestLoad_ExplicitEnvPath(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	writeConfig(t, path, "companion_package: com.custom\n")
	t.Setenv("SCROLLOFF_CONFIG", path)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "com.custom", cfg.Companion)
}

func TestLoadFrom_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := LoadFrom(filepath.Join(dir, "nope.yaml"))

	assert.Error(t, err)
}

func TestLoadFrom_MalformedFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	writeConfig(t, path, "poll_interval: [not, a, duration\n")

	_, err := LoadFrom(path)

	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "scrolloff", "config.yaml")
	writeConfig(t, path, "companion_package: from.file\nsource: process\n")
	t.Setenv("SCROLLOFF_COMPANION", "from.env")
	t.Setenv("SCROLLOFF_POLL_INTERVAL", "2s")
	t.Setenv("SCROLLOFF_QUERY_WINDOW", "4s")
	t.Setenv("SCROLLOFF_AUTOSTART", "yes")

	_, err := Load()
	require.Error(t, err, "yes is not a bool for strconv")

	t.Setenv("SCROLLOFF_AUTOSTART", "1")
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "from.env", cfg.Companion)
	assert.Equal(t, SourceProcess, cfg.Source)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 4*time.Second, cfg.QueryWindow)
	assert.True(t, cfg.AutostartMonitoring)
}

func TestLoad_InvalidEnvDuration(t *testing.T) {
	isolate(t)
	t.Setenv("SCROLLOFF_POLL_INTERVAL", "soon")

	_, err := Load()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SCROLLOFF_POLL_INTERVAL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty companion", mutate: func(c *Config) { c.Companion = "" }, wantErr: "companion_package"},
		{name: "zero interval", mutate: func(c *Config) { c.PollInterval = 0 }, wantErr: "poll_interval"},
		{name: "window below interval", mutate: func(c *Config) { c.QueryWindow = 500 * time.Millisecond }, wantErr: "query_window"},
		{name: "window equals interval", mutate: func(c *Config) { c.QueryWindow = c.PollInterval }},
		{name: "unknown source", mutate: func(c *Config) { c.Source = "bluetooth" }, wantErr: "unknown source"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage = "cloud" }, wantErr: "unknown storage"},
		{name: "empty data dir", mutate: func(c *Config) { c.DataDir = "" }, wantErr: "data_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = "/tmp/x"
			tt.mutate(cfg)

			err := validate(cfg)

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultDataDir(t *testing.T) {
	assert.Equal(t, "/var/lib/scrolloff", DefaultDataDir(ExecModeSystem))

	t.Setenv("SUDO_USER", "")
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".scrolloff"), DefaultDataDir(ExecModeUser))
}

func TestExecMode_String(t *testing.T) {
	assert.Equal(t, "system (root)", ExecModeSystem.String())
	assert.Equal(t, "user (non-root)", ExecModeUser.String())
	assert.Equal(t, "unknown", ExecMode("other").String())
}
