package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/scrolloff/internal/bridge"
	"github.com/eliteGoblin/focusd/scrolloff/internal/config"
	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
	"github.com/eliteGoblin/focusd/scrolloff/internal/infra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Control foreground monitoring in the running daemon",
}

var monitorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start monitoring (requires usage access)",
	RunE:  runMonitorStart,
}

var monitorStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop monitoring and dismiss any overlay",
	RunE:  runMonitorStop,
}

var monitorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitoring state",
	RunE:  runMonitorStatus,
}

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "Manage the blocked-app set",
	Long: `Manage the set of blocked package identifiers. Changes go through the
running daemon when there is one, otherwise straight to the store.`,
}

var blockedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blocked packages",
	RunE:  runBlockedList,
}

var blockedAddCmd = &cobra.Command{
	Use:   "add <package>...",
	Short: "Block packages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBlockedAdd,
}

var blockedRemoveCmd = &cobra.Command{
	Use:   "remove <package>...",
	Short: "Unblock packages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBlockedRemove,
}

var blockedSetCmd = &cobra.Command{
	Use:   "set [package]...",
	Short: "Replace the blocked set (no arguments clears it)",
	RunE:  runBlockedSet,
}

var blockedSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Add the catalog's suggested distracting apps",
	RunE:  runBlockedSuggest,
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List user-installed apps that can be blocked",
	RunE:  runApps,
}

var permissionCmd = &cobra.Command{
	Use:   "permission",
	Short: "Check or request platform permissions (USAGE_STATS, OVERLAY)",
}

var permissionCheckCmd = &cobra.Command{
	Use:   "check [kind]",
	Short: "Check whether permissions are granted",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPermissionCheck,
}

var permissionRequestCmd = &cobra.Command{
	Use:   "request <kind>",
	Short: "Open the settings screen that grants a permission",
	Args:  cobra.ExactArgs(1),
	RunE:  runPermissionRequest,
}

var showBlockedCmd = &cobra.Command{
	Use:   "show-blocked",
	Short: "Show the blocked screen for an app, as if it had been opened",
	RunE:  runShowBlocked,
}

var (
	showApp     string
	showPackage string
	appsJSON    bool
)

func init() {
	showBlockedCmd.Flags().StringVar(&showApp, "app", "", "Display name")
	showBlockedCmd.Flags().StringVar(&showPackage, "package", "", "Package identifier")
	_ = showBlockedCmd.MarkFlagRequired("package")
	appsCmd.Flags().BoolVar(&appsJSON, "json", false, "Output as JSON")

	monitorCmd.AddCommand(monitorStartCmd, monitorStopCmd, monitorStatusCmd)
	blockedCmd.AddCommand(blockedListCmd, blockedAddCmd, blockedRemoveCmd, blockedSetCmd, blockedSuggestCmd)
	permissionCmd.AddCommand(permissionCheckCmd, permissionRequestCmd)

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(blockedCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(permissionCmd)
	rootCmd.AddCommand(showBlockedCmd)
}

func newClient() (*bridge.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return bridge.NewClient(cfg.SocketPath), cfg, nil
}

func runMonitorStart(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	started, err := client.StartMonitoring(cmd.Context())
	if err != nil {
		return err
	}
	if !started {
		return fmt.Errorf("usage access not granted, run 'scrolloff permission request %s'", domain.PermissionUsageStats)
	}
	fmt.Println("Monitoring started")
	return nil
}

func runMonitorStop(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	if err := client.StopMonitoring(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Monitoring stopped")
	return nil
}

func runMonitorStatus(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	st, err := client.MonitoringStatus(cmd.Context())
	if err != nil {
		return err
	}
	printMonitoring(st)
	return nil
}

func runBlockedList(cmd *cobra.Command, args []string) error {
	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	pkgs, err := client.BlockedApps(cmd.Context())
	if daemonUnreachable(err) {
		return printBlockedLocal(cfg)
	}
	if err != nil {
		return err
	}
	printBlocked(pkgs)
	return nil
}

// mutateBlocked sends the change to the daemon, or applies it to the store
// when no daemon is running.
func mutateBlocked(remote func(*bridge.Client) ([]string, error), local func(*domain.BlockedSet)) error {
	client, cfg, err := newClient()
	if err != nil {
		return err
	}

	pkgs, err := remote(client)
	if daemonUnreachable(err) {
		err = withStore(cfg, func(store domain.BlockedSetStore) error {
			set, err := store.Load()
			if err != nil {
				return err
			}
			local(&set)
			if err := store.Save(set); err != nil {
				return err
			}
			pkgs = set.Sorted()
			return nil
		})
	}
	if err != nil {
		return err
	}
	printBlocked(pkgs)
	return nil
}

func runBlockedAdd(cmd *cobra.Command, args []string) error {
	return mutateBlocked(
		func(c *bridge.Client) ([]string, error) {
			var pkgs []string
			for _, p := range args {
				out, err := c.AddBlockedApp(cmd.Context(), p)
				if err != nil {
					return nil, err
				}
				pkgs = out
			}
			return pkgs, nil
		},
		func(set *domain.BlockedSet) {
			for _, p := range args {
				set.Add(p)
			}
		})
}

func runBlockedRemove(cmd *cobra.Command, args []string) error {
	return mutateBlocked(
		func(c *bridge.Client) ([]string, error) {
			var pkgs []string
			for _, p := range args {
				out, err := c.RemoveBlockedApp(cmd.Context(), p)
				if err != nil {
					return nil, err
				}
				pkgs = out
			}
			return pkgs, nil
		},
		func(set *domain.BlockedSet) {
			for _, p := range args {
				set.Remove(p)
			}
		})
}

func runBlockedSet(cmd *cobra.Command, args []string) error {
	return mutateBlocked(
		func(c *bridge.Client) ([]string, error) {
			return c.SetBlockedApps(cmd.Context(), args)
		},
		func(set *domain.BlockedSet) {
			*set = domain.NewBlockedSet(args...)
		})
}

func runBlockedSuggest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	suggested := loadCatalog(cfg, cliLogger()).Suggested().Sorted()
	return runBlockedAdd(cmd, suggested)
}

func runApps(cmd *cobra.Command, args []string) error {
	client, cfg, err := newClient()
	if err != nil {
		return err
	}

	apps, err := client.ListInstallableApps(cmd.Context())
	if daemonUnreachable(err) {
		logger := cliLogger()
		plat, perr := buildPlatform(cfg, loadCatalog(cfg, logger), infra.NewProcessManager(), logger)
		if perr != nil {
			return perr
		}
		apps, err = plat.apps.ListInstallableApps(cmd.Context())
	}
	if err != nil {
		return err
	}

	if appsJSON {
		return json.NewEncoder(os.Stdout).Encode(apps)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPACKAGE")
	for _, a := range apps {
		fmt.Fprintf(w, "%s\t%s\n", a.Name, a.Package)
	}
	return w.Flush()
}

func parseKind(s string) (domain.PermissionKind, error) {
	kind := domain.PermissionKind(strings.ToUpper(s))
	if !kind.Valid() {
		return "", fmt.Errorf("unknown permission %q (want %s or %s)", s, domain.PermissionUsageStats, domain.PermissionOverlay)
	}
	return kind, nil
}

func runPermissionCheck(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}

	kinds := []domain.PermissionKind{domain.PermissionUsageStats, domain.PermissionOverlay}
	if len(args) == 1 {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		kinds = []domain.PermissionKind{kind}
	}

	for _, kind := range kinds {
		granted, err := client.CheckPermission(cmd.Context(), kind)
		if err != nil {
			return err
		}
		state := "denied"
		if granted {
			state = "granted"
		}
		fmt.Printf("%s: %s\n", kind, state)
	}
	return nil
}

func runPermissionRequest(cmd *cobra.Command, args []string) error {
	kind, err := parseKind(args[0])
	if err != nil {
		return err
	}
	client, _, err := newClient()
	if err != nil {
		return err
	}
	if err := client.RequestPermission(cmd.Context(), kind); err != nil {
		return err
	}
	fmt.Printf("Opened settings for %s on the device\n", kind)
	return nil
}

func runShowBlocked(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	return client.ShowBlockedScreen(cmd.Context(), domain.BlockedScreen{
		AppName: showApp,
		Package: showPackage,
	})
}
