package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/scrolloff/internal/bridge"
	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// Server is the bridge endpoint the host runs. Implemented by bridge.Service.
type Server interface {
	Run(ctx context.Context) error
}

// HostConfig holds daemon host configuration.
type HostConfig struct {
	AutostartMonitoring   bool          // Start the monitor without waiting for the UI shell
	RegistryCheckInterval time.Duration // How often to verify the registry entry
}

// DefaultHostConfig returns default host configuration.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		RegistryCheckInterval: 60 * time.Second,
	}
}

// Host is the long-running daemon process. It registers itself, serves the
// bridge and owns the monitor's lifetime.
type Host struct {
	config   HostConfig
	monitor  bridge.Monitoring
	server   Server
	registry domain.DaemonRegistry
	state    domain.DaemonState
	logger   *zap.Logger
}

// NewHost creates a daemon host.
func NewHost(
	config HostConfig,
	monitor bridge.Monitoring,
	server Server,
	registry domain.DaemonRegistry,
	state domain.DaemonState,
	logger *zap.Logger,
) *Host {
	return &Host{
		config:   config,
		monitor:  monitor,
		server:   server,
		registry: registry,
		state:    state,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled or the bridge fails.
func (h *Host) Run(ctx context.Context) error {
	if err := h.registry.Register(h.state); err != nil {
		h.logger.Error("failed to register daemon", zap.Error(err))
		return err
	}
	defer func() {
		if err := h.registry.Clear(); err != nil {
			h.logger.Warn("failed to clear registry", zap.Error(err))
		}
	}()

	h.logger.Info("daemon started",
		zap.Int("pid", h.state.PID),
		zap.String("socket", h.state.SocketPath),
		zap.String("source", h.state.Source))

	if h.config.AutostartMonitoring {
		h.startMonitoring(ctx)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() { serverErr <- h.server.Run(serverCtx) }()

	interval := h.config.RegistryCheckInterval
	if interval <= 0 {
		interval = DefaultHostConfig().RegistryCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("daemon stopping")
			cancel()
			runErr = <-serverErr
			break loop
		case err := <-serverErr:
			if err != nil {
				h.logger.Error("bridge failed", zap.Error(err))
				runErr = fmt.Errorf("bridge failed: %w", err)
			}
			break loop
		case <-ticker.C:
			h.ensureRegistered()
		}
	}

	// Detached from ctx so the overlay teardown still runs on shutdown.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := h.monitor.Stop(stopCtx); err != nil {
		h.logger.Warn("failed to stop monitor", zap.Error(err))
	}
	return runErr
}

func (h *Host) startMonitoring(ctx context.Context) {
	err := h.monitor.Start(ctx)
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		h.logger.Warn("autostart skipped: usage access not granted")
	case err != nil:
		h.logger.Error("autostart failed", zap.Error(err))
	default:
		h.logger.Info("monitoring autostarted")
	}
}

// ensureRegistered restores the registry entry if it was removed.
func (h *Host) ensureRegistered() {
	current, err := h.registry.Get()
	if err != nil {
		h.logger.Warn("failed to read registry", zap.Error(err))
	}
	if current != nil && current.PID == h.state.PID {
		return
	}
	h.logger.Info("registry entry missing, re-registering")
	if err := h.registry.Register(h.state); err != nil {
		h.logger.Error("failed to re-register daemon", zap.Error(err))
	}
}

// Ensure Monitor implements bridge.Monitoring.
var _ bridge.Monitoring = (*Monitor)(nil)
