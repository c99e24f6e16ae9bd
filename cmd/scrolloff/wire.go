package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/scrolloff/internal/bridge"
	"github.com/eliteGoblin/focusd/scrolloff/internal/catalog"
	"github.com/eliteGoblin/focusd/scrolloff/internal/config"
	"github.com/eliteGoblin/focusd/scrolloff/internal/daemon"
	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
	"github.com/eliteGoblin/focusd/scrolloff/internal/infra"
	"github.com/eliteGoblin/focusd/scrolloff/internal/usecase"
)

// platform groups the adapters selected by the configured source.
type platform struct {
	source      domain.UsageEventSource
	permissions domain.PermissionChecker
	redirector  domain.Redirector
	overlay     domain.Overlay
	apps        domain.AppLister
}

func loadCatalog(cfg *config.Config, logger *zap.Logger) *catalog.Registry {
	reg := catalog.NewRegistry()
	if cfg.CatalogFile == "" {
		return reg
	}
	if err := catalog.LoadFile(reg, cfg.CatalogFile); err != nil {
		if os.IsNotExist(err) {
			logger.Debug("catalog file not found", zap.String("path", cfg.CatalogFile))
		} else {
			logger.Warn("failed to load catalog file", zap.Error(err))
		}
	}
	return reg
}

// openStore returns the configured blocked-set store and a close func.
func openStore(cfg *config.Config) (domain.BlockedSetStore, func(), error) {
	switch cfg.Storage {
	case config.StorageEncrypted:
		key, err := infra.LoadOrCreateKey(cfg.KeyPath())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load storage key: %w", err)
		}
		prefs, err := infra.NewEncryptedPrefs(cfg.DatabasePath(), key)
		if err != nil {
			return nil, nil, err
		}
		return prefs, func() { _ = prefs.Close() }, nil
	default:
		return infra.NewFilePrefs(cfg.PrefsPath), func() {}, nil
	}
}

func buildPlatform(cfg *config.Config, cat *catalog.Registry, pm domain.ProcessManager, logger *zap.Logger) (*platform, error) {
	if cfg.Source == config.SourceProcess {
		return &platform{
			source:      infra.NewProcessUsageSource(pm),
			permissions: infra.HostPermissions{},
			redirector:  infra.NewProcessTerminator(pm, logger),
			apps:        infra.NewCatalogAppLister(cat, catalogPackages(cat), cfg.Companion, logger),
		}, nil
	}

	adb, err := infra.NewADB(cfg.ADB.Path, cfg.ADB.Serial, cfg.ADB.ExtraArgs)
	if err != nil {
		return nil, err
	}
	launcher := infra.NewADBLauncher(adb, cfg.Companion, logger)
	return &platform{
		source:      infra.NewADBUsageSource(adb),
		permissions: infra.NewADBPermissions(adb, cfg.Companion),
		redirector:  launcher,
		overlay:     launcher,
		apps:        infra.NewADBAppLister(adb, cat, cfg.Companion, logger),
	}, nil
}

func catalogPackages(cat *catalog.Registry) func() []string {
	return func() []string {
		all := cat.GetAll()
		pkgs := make([]string, 0, len(all))
		for _, a := range all {
			pkgs = append(pkgs, a.Package)
		}
		return pkgs
	}
}

// buildHost wires the full daemon. The returned func releases the store.
func buildHost(cfg *config.Config, logger *zap.Logger) (*daemon.Host, func(), error) {
	pm := infra.NewProcessManager()
	cat := loadCatalog(cfg, logger)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	plat, err := buildPlatform(cfg, cat, pm, logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	hub := bridge.NewHub(logger)
	dispatcher := usecase.NewDispatcher(plat.redirector, plat.overlay, plat.permissions, cat, hub, logger)

	monitor := daemon.NewMonitor(daemon.MonitorConfig{
		Interval:          cfg.PollInterval,
		Window:            cfg.QueryWindow,
		Companion:         cfg.Companion,
		RedirectClosesApp: cfg.Source == config.SourceProcess,
	}, plat.source, store, plat.permissions, dispatcher, logger)

	svc := bridge.NewService(cfg.SocketPath, hub, bridge.Deps{
		Monitor:     monitor,
		Store:       store,
		Permissions: plat.permissions,
		Apps:        plat.apps,
		Screens:     dispatcher,
	}, logger)
	if cfg.Storage == config.StorageFile {
		svc.WatchFile(cfg.PrefsPath)
	}

	hostConfig := daemon.DefaultHostConfig()
	hostConfig.AutostartMonitoring = cfg.AutostartMonitoring

	host := daemon.NewHost(hostConfig, monitor, svc,
		infra.NewFileRegistry(cfg.RegistryPath(), pm),
		domain.DaemonState{
			PID:        pm.GetCurrentPID(),
			SocketPath: cfg.SocketPath,
			StartedAt:  time.Now(),
			Version:    Version,
			Source:     cfg.Source,
		}, logger)
	return host, closeStore, nil
}

// withStore runs fn against the local store when no daemon is reachable.
func withStore(cfg *config.Config, fn func(domain.BlockedSetStore) error) error {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(store)
}

func daemonUnreachable(err error) bool {
	return errors.Is(err, bridge.ErrDaemonNotRunning)
}
