package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// appOps maps permission kinds to the device app-op names and the settings
// screen that grants them.
var appOps = map[domain.PermissionKind]struct {
	op       string
	settings string
}{
	domain.PermissionUsageStats: {op: "GET_USAGE_STATS", settings: "android.settings.USAGE_ACCESS_SETTINGS"},
	domain.PermissionOverlay:    {op: "SYSTEM_ALERT_WINDOW", settings: "android.settings.action.MANAGE_OVERLAY_PERMISSION"},
}

// ADBPermissions checks the companion app's app-ops on the device.
type ADBPermissions struct {
	adb       *ADB
	companion string
}

// NewADBPermissions creates a permission checker for the companion package.
func NewADBPermissions(adb *ADB, companion string) *ADBPermissions {
	return &ADBPermissions{adb: adb, companion: companion}
}

// Check reports whether kind is granted. Output looks like
// "GET_USAGE_STATS: allow; time=+1h2m ago"; anything but allow is denied.
func (p *ADBPermissions) Check(ctx context.Context, kind domain.PermissionKind) (bool, error) {
	entry, ok := appOps[kind]
	if !ok {
		return false, fmt.Errorf("unknown permission kind %q", kind)
	}

	out, err := p.adb.Shell(ctx, "appops", "get", p.companion, entry.op)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", kind, err)
	}
	return appOpAllowed(string(out), entry.op), nil
}

// Request opens the settings screen for kind. It does not wait for the user.
func (p *ADBPermissions) Request(ctx context.Context, kind domain.PermissionKind) error {
	entry, ok := appOps[kind]
	if !ok {
		return fmt.Errorf("unknown permission kind %q", kind)
	}

	out, err := p.adb.Shell(ctx, "am", "start", "-a", entry.settings, "-d", "package:"+p.companion)
	if err != nil {
		return fmt.Errorf("failed to open %s settings: %w", kind, err)
	}
	if amFailed(out) {
		return fmt.Errorf("failed to open %s settings: %s", kind, strings.TrimSpace(string(out)))
	}
	return nil
}

func appOpAllowed(out, op string) bool {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, op+":") {
			continue
		}
		mode := strings.TrimSpace(strings.TrimPrefix(line, op+":"))
		if i := strings.IndexByte(mode, ';'); i >= 0 {
			mode = mode[:i]
		}
		return strings.TrimSpace(mode) == "allow"
	}
	return false
}

// amFailed reports whether activity-manager output carries an error. `am`
// exits 0 even when the intent could not be resolved.
func amFailed(out []byte) bool {
	s := string(out)
	return strings.Contains(s, "Error:") ||
		strings.Contains(s, "Error type") ||
		strings.Contains(s, "Exception") ||
		strings.Contains(s, "monkey aborted")
}

// HostPermissions serves the desktop source: process listing needs no grant
// and there is no overlay surface.
type HostPermissions struct{}

// Check grants usage access and denies overlay.
func (HostPermissions) Check(ctx context.Context, kind domain.PermissionKind) (bool, error) {
	switch kind {
	case domain.PermissionUsageStats:
		return true, nil
	case domain.PermissionOverlay:
		return false, nil
	default:
		return false, fmt.Errorf("unknown permission kind %q", kind)
	}
}

// Request is a no-op on the host.
func (HostPermissions) Request(ctx context.Context, kind domain.PermissionKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown permission kind %q", kind)
	}
	return nil
}

var (
	_ domain.PermissionChecker = (*ADBPermissions)(nil)
	_ domain.PermissionChecker = HostPermissions{}
)
