package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/scrolloff/internal/bridge"
	"github.com/eliteGoblin/focusd/scrolloff/internal/config"
	"github.com/eliteGoblin/focusd/scrolloff/internal/daemon"
	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
	"github.com/eliteGoblin/focusd/scrolloff/internal/infra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	Long: `Runs the monitor and bridge in the foreground until interrupted.
Use --verbose to mirror the log to stderr.`,
	RunE: runDaemon,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon, monitoring and blocked-app status",
	RunE:  runStatus,
}

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Manage starting the daemon at login",
}

var autostartInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the login service (LaunchAgent or systemd user unit)",
	RunE:  runAutostartInstall,
}

var autostartUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the login service",
	RunE:  runAutostartUninstall,
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the login service is installed",
	RunE:  runAutostartStatus,
}

// Hidden daemon command - used for self-exec by "start"
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

func init() {
	autostartCmd.AddCommand(autostartInstallCmd, autostartUninstallCmd, autostartStatusCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	host, closeStore, err := buildHost(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize daemon", zap.Error(err))
		return err
	}
	defer closeStore()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	return host.Run(ctx)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry := infra.NewFileRegistry(cfg.RegistryPath(), infra.NewProcessManager())
	if alive, _ := registry.IsAlive(); alive {
		fmt.Println("scrolloff is already running")
		return nil
	}

	if err := daemon.StartDaemon(cfg.Path); err != nil {
		return err
	}

	// Wait for the bridge to come up.
	client := bridge.NewClient(cfg.SocketPath)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := client.MonitoringStatus(cmd.Context()); err == nil {
			fmt.Printf("scrolloff started (socket %s)\n", cfg.SocketPath)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not come up, see %s", cfg.LogFile)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry := infra.NewFileRegistry(cfg.RegistryPath(), infra.NewProcessManager())

	fmt.Println("\n=== scrolloff Status ===")
	fmt.Printf("Mode: %s\n", config.DetectExecMode())
	fmt.Printf("Source: %s\n", cfg.Source)
	if cfg.Path != "" {
		fmt.Printf("Config: %s\n", cfg.Path)
	}

	state, err := registry.Get()
	alive, _ := registry.IsAlive()
	if err != nil || state == nil || !alive {
		fmt.Println("Daemon: NOT RUNNING")
		fmt.Println("\nRun 'scrolloff start' to start it.")
		return printBlockedLocal(cfg)
	}

	fmt.Printf("Daemon: RUNNING (pid %d, up %s)\n", state.PID, time.Since(state.StartedAt).Round(time.Second))

	client := bridge.NewClient(cfg.SocketPath)
	ctx := cmd.Context()
	st, err := client.MonitoringStatus(ctx)
	if err != nil {
		fmt.Printf("Bridge: unreachable (%v)\n", err)
		return nil
	}
	printMonitoring(st)

	pkgs, err := client.BlockedApps(ctx)
	if err != nil {
		return err
	}
	printBlocked(pkgs)
	fmt.Println("========================")
	return nil
}

func printMonitoring(st bridge.MonitoringStatus) {
	if !st.Running {
		fmt.Println("Monitoring: stopped")
		return
	}
	fmt.Println("Monitoring: active")
	if st.State.CurrentlyBlockedPackage != "" {
		fmt.Printf("Blocking: %s\n", st.State.CurrentlyBlockedPackage)
	}
	if st.State.LastObservedPackage != "" {
		fmt.Printf("Foreground: %s\n", st.State.LastObservedPackage)
	}
}

func printBlockedLocal(cfg *config.Config) error {
	var pkgs []string
	err := withStore(cfg, func(store domain.BlockedSetStore) error {
		set, err := store.Load()
		pkgs = set.Sorted()
		return err
	})
	if err != nil {
		return err
	}
	printBlocked(pkgs)
	return nil
}

func printBlocked(pkgs []string) {
	fmt.Println("\nBlocked applications:")
	if len(pkgs) == 0 {
		fmt.Println("  (none)")
	}
	for _, p := range pkgs {
		fmt.Printf("  - %s\n", p)
	}
}

func autostartManager(cfg *config.Config) domain.AutostartManager {
	return infra.NewAutostartManager(cfg.LogFile)
}

func runAutostartInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	mgr := autostartManager(cfg)
	if err := mgr.Install(cmd.Context(), exe, cfg.Path); err != nil {
		return err
	}
	fmt.Printf("Installed login service at %s\n", mgr.Path())
	return nil
}

func runAutostartUninstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mgr := autostartManager(cfg)
	if err := mgr.Uninstall(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Login service removed")
	return nil
}

func runAutostartStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mgr := autostartManager(cfg)
	if mgr.IsInstalled() {
		fmt.Printf("Auto-start: enabled (%s)\n", mgr.Path())
	} else {
		fmt.Println("Auto-start: disabled")
	}
	return nil
}
