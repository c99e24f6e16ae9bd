//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/scrolloff/internal/bridge"
	"github.com/eliteGoblin/focusd/scrolloff/internal/catalog"
	"github.com/eliteGoblin/focusd/scrolloff/internal/daemon"
	"github.com/eliteGoblin/focusd/scrolloff/internal/infra"
	"github.com/eliteGoblin/focusd/scrolloff/internal/usecase"
	"github.com/eliteGoblin/focusd/scrolloff/test/fixtures"
)

const (
	companion = "com.example.scrolloff"
	instagram = "com.instagram.android"
	tiktok    = "com.zhiliaoapp.musically"
	notes     = "com.example.notes"
)

// stack is the daemon wired against a fake device, the way the CLI wires it
// against adb.
type stack struct {
	dir        string
	device     *fixtures.FakeDevice
	prefs      *infra.FilePrefs
	hub        *bridge.Hub
	dispatcher *usecase.Dispatcher
	monitor    *daemon.Monitor
	service    *bridge.Service
	socketPath string
}

func newStack() *stack {
	// Short path: unix socket paths are length-limited.
	dir, err := os.MkdirTemp("", "so-it")
	Expect(err).NotTo(HaveOccurred())

	logger := zap.NewNop()
	device := fixtures.NewFakeDevice(companion)
	device.Install(instagram, tiktok, notes, "com.android.chrome")

	adb, err := infra.NewADBWithRunner("adb", "", "", device)
	Expect(err).NotTo(HaveOccurred())

	cat := catalog.NewRegistry()
	launcher := infra.NewADBLauncher(adb, companion, logger)
	perms := infra.NewADBPermissions(adb, companion)
	prefs := infra.NewFilePrefs(filepath.Join(dir, "shared_prefs.json"))
	hub := bridge.NewHub(logger)
	dispatcher := usecase.NewDispatcher(launcher, launcher, perms, cat, hub, logger)

	monitor := daemon.NewMonitor(daemon.MonitorConfig{
		Interval:  100 * time.Millisecond,
		Window:    2 * time.Second,
		Companion: companion,
	}, infra.NewADBUsageSource(adb), prefs, perms, dispatcher, logger)

	socketPath := filepath.Join(dir, "b.sock")
	service := bridge.NewService(socketPath, hub, bridge.Deps{
		Monitor:     monitor,
		Store:       prefs,
		Permissions: perms,
		Apps:        infra.NewADBAppLister(adb, cat, companion, logger),
		Screens:     dispatcher,
	}, logger)
	service.WatchFile(prefs.Location())

	return &stack{
		dir:        dir,
		device:     device,
		prefs:      prefs,
		hub:        hub,
		dispatcher: dispatcher,
		monitor:    monitor,
		service:    service,
		socketPath: socketPath,
	}
}

func (s *stack) cleanup() {
	os.RemoveAll(s.dir)
}

// writePrefs replaces the shared preferences document as another process would.
func (s *stack) writePrefs(doc string) {
	Expect(os.WriteFile(s.prefs.Location(), []byte(doc), 0600)).To(Succeed())
}
