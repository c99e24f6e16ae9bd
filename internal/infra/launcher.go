package infra

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// Companion app components started on the device.
const (
	MainActivity           = ".MainActivity"
	BlockingOverlayService = ".BlockingOverlayService"
)

// ADBLauncher brings the companion app forward and drives its overlay
// service on the device.
type ADBLauncher struct {
	adb       *ADB
	companion string
	logger    *zap.Logger

	mu    sync.Mutex
	shown bool
}

// NewADBLauncher creates a launcher for the companion package.
func NewADBLauncher(adb *ADB, companion string, logger *zap.Logger) *ADBLauncher {
	return &ADBLauncher{adb: adb, companion: companion, logger: logger}
}

// BringToForeground starts the companion's main activity with the blocked
// screen extras. If that fails it falls back to the launcher intent.
func (l *ADBLauncher) BringToForeground(ctx context.Context, screen domain.BlockedScreen) error {
	args := append([]string{"am", "start", "-n", l.component(MainActivity),
		"--activity-reorder-to-front"}, screenExtras(screen)...)

	primaryErr := l.am(ctx, args...)
	if primaryErr == nil {
		return nil
	}

	l.logger.Warn("explicit redirect failed, falling back to launch intent",
		zap.String("package", screen.Package),
		zap.Error(primaryErr))

	if err := l.am(ctx, "monkey", "-p", l.companion, "-c", "android.intent.category.LAUNCHER", "1"); err != nil {
		return fmt.Errorf("failed to launch %s: %w", l.companion, err)
	}
	return nil
}

// Show starts the overlay service for screen.
func (l *ADBLauncher) Show(ctx context.Context, screen domain.BlockedScreen) error {
	args := append([]string{"am", "startservice", "-n", l.component(BlockingOverlayService)}, screenExtras(screen)...)
	if err := l.am(ctx, args...); err != nil {
		return fmt.Errorf("failed to show overlay: %w", err)
	}

	l.mu.Lock()
	l.shown = true
	l.mu.Unlock()
	return nil
}

// Hide stops the overlay service. Hiding when nothing is shown is a no-op.
func (l *ADBLauncher) Hide(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.shown {
		return nil
	}
	if err := l.am(ctx, "am", "stopservice", "-n", l.component(BlockingOverlayService)); err != nil {
		return fmt.Errorf("failed to hide overlay: %w", err)
	}
	l.shown = false
	return nil
}

func (l *ADBLauncher) component(name string) string {
	return l.companion + "/" + name
}

func (l *ADBLauncher) am(ctx context.Context, args ...string) error {
	out, err := l.adb.Shell(ctx, args...)
	if err != nil {
		return err
	}
	if amFailed(out) {
		return fmt.Errorf("%s", strings.TrimSpace(string(out)))
	}
	return nil
}

func screenExtras(screen domain.BlockedScreen) []string {
	return []string{
		"--ez", "show_blocked_screen", "true",
		"--es", "blocked_app_name", screen.AppName,
		"--es", "blocked_package_name", screen.Package,
	}
}

// ProcessTerminator is the desktop redirect: there is no companion activity
// to raise, so the blocked process is closed and the UI shell (notified by
// the navigator) takes over.
type ProcessTerminator struct {
	pm     domain.ProcessManager
	logger *zap.Logger
}

// NewProcessTerminator creates a desktop redirector.
func NewProcessTerminator(pm domain.ProcessManager, logger *zap.Logger) *ProcessTerminator {
	return &ProcessTerminator{pm: pm, logger: logger}
}

// BringToForeground kills every process named screen.Package.
func (t *ProcessTerminator) BringToForeground(ctx context.Context, screen domain.BlockedScreen) error {
	pids, err := t.pm.FindByName(screen.Package)
	if err != nil {
		return fmt.Errorf("failed to find %s: %w", screen.Package, err)
	}

	var failed int
	for _, pid := range pids {
		if err := t.pm.Kill(pid); err != nil {
			failed++
			t.logger.Warn("failed to kill blocked process",
				zap.Int("pid", pid),
				zap.String("package", screen.Package),
				zap.Error(err))
			continue
		}
		t.logger.Info("killed blocked process",
			zap.Int("pid", pid),
			zap.String("package", screen.Package))
	}
	if failed > 0 && failed == len(pids) {
		return fmt.Errorf("failed to kill %d process(es) of %s", failed, screen.Package)
	}
	return nil
}

var (
	_ domain.Redirector = (*ADBLauncher)(nil)
	_ domain.Overlay    = (*ADBLauncher)(nil)
	_ domain.Redirector = (*ProcessTerminator)(nil)
)
