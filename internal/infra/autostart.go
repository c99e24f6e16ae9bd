package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// AutostartLabel names the login service on both platforms.
const AutostartLabel = "com.scrolloff.daemon"

// LaunchAgent plist template. KeepAlive restarts the daemon if it crashes.
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>run</string>{{if .ConfigPath}}
        <string>--config</string>
        <string>{{.ConfigPath}}</string>{{end}}
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>

    <key>ProcessType</key>
    <string>Background</string>

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>`

// systemd user unit template, the Linux counterpart of the LaunchAgent.
const systemdUnitTemplate = `[Unit]
Description=scrolloff foreground app monitor

[Service]
ExecStart={{.ExecutablePath}} run{{if .ConfigPath}} --config {{.ConfigPath}}{{end}}
Restart=on-failure
RestartSec=10
StandardOutput=append:{{.LogPath}}
StandardError=append:{{.LogPath}}

[Install]
WantedBy=default.target
`

type serviceConfig struct {
	Label          string
	ExecutablePath string
	ConfigPath     string
	LogPath        string
}

// AutostartManagerImpl installs the daemon as a per-user login service:
// a LaunchAgent on macOS, a systemd user unit elsewhere.
type AutostartManagerImpl struct {
	goos      string
	unitPath  string
	logPath   string
	cmdRunner CommandRunner
}

// NewAutostartManager creates a manager for the current platform and user.
func NewAutostartManager(logPath string) *AutostartManagerImpl {
	return NewAutostartManagerWithDeps(runtime.GOOS, homeDirOrEmpty(), logPath, &RealCommandRunner{})
}

// NewAutostartManagerWithDeps creates a manager with injectable dependencies (for testing).
func NewAutostartManagerWithDeps(goos, home, logPath string, cmdRunner CommandRunner) *AutostartManagerImpl {
	var unitPath string
	if goos == "darwin" {
		unitPath = filepath.Join(home, "Library", "LaunchAgents", AutostartLabel+".plist")
	} else {
		unitPath = filepath.Join(home, ".config", "systemd", "user", "scrolloff.service")
	}
	return &AutostartManagerImpl{
		goos:      goos,
		unitPath:  unitPath,
		logPath:   logPath,
		cmdRunner: cmdRunner,
	}
}

// generateContent renders the service definition for execPath.
func (m *AutostartManagerImpl) generateContent(execPath, configPath string) ([]byte, error) {
	tmplStr := systemdUnitTemplate
	if m.goos == "darwin" {
		tmplStr = launchAgentTemplate
	}

	tmpl, err := template.New("service").Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, serviceConfig{
		Label:          AutostartLabel,
		ExecutablePath: execPath,
		ConfigPath:     configPath,
		LogPath:        m.logPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute service template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the service definition and loads it. Reinstalling with
// different arguments replaces the previous definition.
func (m *AutostartManagerImpl) Install(ctx context.Context, execPath, configPath string) error {
	content, err := m.generateContent(execPath, configPath)
	if err != nil {
		return err
	}

	if m.IsInstalled() {
		current, err := os.ReadFile(m.unitPath)
		if err == nil && bytes.Equal(current, content) {
			return nil
		}
		_ = m.unload(ctx)
	}

	if err := writeFileAtomic(m.unitPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", m.unitPath, err)
	}
	return m.load(ctx)
}

// Uninstall unloads and removes the service definition.
func (m *AutostartManagerImpl) Uninstall(ctx context.Context) error {
	if !m.IsInstalled() {
		return nil
	}
	// Unload first (ignore errors if not loaded)
	_ = m.unload(ctx)
	return os.Remove(m.unitPath)
}

// IsInstalled checks if the service definition exists.
func (m *AutostartManagerImpl) IsInstalled() bool {
	_, err := os.Stat(m.unitPath)
	return err == nil
}

// Path returns the service definition path.
func (m *AutostartManagerImpl) Path() string {
	return m.unitPath
}

func (m *AutostartManagerImpl) load(ctx context.Context) error {
	if m.goos == "darwin" {
		return m.cmdRunner.Run(ctx, "launchctl", "load", m.unitPath)
	}
	if err := m.cmdRunner.Run(ctx, "systemctl", "--user", "daemon-reload"); err != nil {
		return err
	}
	return m.cmdRunner.Run(ctx, "systemctl", "--user", "enable", "--now", "scrolloff.service")
}

func (m *AutostartManagerImpl) unload(ctx context.Context) error {
	if m.goos == "darwin" {
		return m.cmdRunner.Run(ctx, "launchctl", "unload", m.unitPath)
	}
	return m.cmdRunner.Run(ctx, "systemctl", "--user", "disable", "--now", "scrolloff.service")
}

func homeDirOrEmpty() string {
	home, _ := os.UserHomeDir()
	return home
}

// Ensure AutostartManagerImpl implements domain.AutostartManager.
var _ domain.AutostartManager = (*AutostartManagerImpl)(nil)
