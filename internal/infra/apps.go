package infra

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// systemPrefixes mark platform and vendor packages that are never offered
// for blocking.
var systemPrefixes = []string{
	"android.",
	"com.android.",
	"com.google.android.gms",
	"com.samsung.",
	"com.sec.android.",
	"com.miui.",
	"com.oneplus.",
	"com.huawei.",
	"com.oppo.",
	"com.vivo.",
}

// IsSystemPackage reports whether pkg belongs to the platform or a vendor.
func IsSystemPackage(pkg string) bool {
	for _, p := range systemPrefixes {
		if strings.HasPrefix(pkg, p) {
			return true
		}
	}
	return false
}

// AppCatalog resolves labels and icons for known packages.
type AppCatalog interface {
	domain.AppLabeler
	IconBase64(pkg string) (string, error)
}

// ADBAppLister lists third-party packages installed on the device.
type ADBAppLister struct {
	adb       *ADB
	catalog   AppCatalog
	companion string
	logger    *zap.Logger
}

// NewADBAppLister creates a lister that excludes the companion package.
func NewADBAppLister(adb *ADB, catalog AppCatalog, companion string, logger *zap.Logger) *ADBAppLister {
	return &ADBAppLister{adb: adb, catalog: catalog, companion: companion, logger: logger}
}

// ListInstallableApps returns user-installed apps sorted by display name.
func (l *ADBAppLister) ListInstallableApps(ctx context.Context) ([]domain.InstalledApp, error) {
	out, err := l.adb.Shell(ctx, "pm", "list", "packages", "-3")
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}

	var pkgs []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		pkg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(scanner.Text()), "package:"))
		if pkg == "" {
			continue
		}
		pkgs = append(pkgs, pkg)
	}

	return buildAppList(ctx, pkgs, l.catalog, l.companion, l.logger), nil
}

// CatalogAppLister offers the catalog's entries. Used when there is no
// device to enumerate.
type CatalogAppLister struct {
	catalog   AppCatalog
	packages  func() []string
	companion string
	logger    *zap.Logger
}

// NewCatalogAppLister creates a lister over the given package source.
func NewCatalogAppLister(catalog AppCatalog, packages func() []string, companion string, logger *zap.Logger) *CatalogAppLister {
	return &CatalogAppLister{catalog: catalog, packages: packages, companion: companion, logger: logger}
}

// ListInstallableApps returns the catalog's apps sorted by display name.
func (l *CatalogAppLister) ListInstallableApps(ctx context.Context) ([]domain.InstalledApp, error) {
	return buildAppList(ctx, l.packages(), l.catalog, l.companion, l.logger), nil
}

func buildAppList(ctx context.Context, pkgs []string, catalog AppCatalog, companion string, logger *zap.Logger) []domain.InstalledApp {
	seen := make(map[string]bool, len(pkgs))
	apps := make([]domain.InstalledApp, 0, len(pkgs))

	for _, pkg := range pkgs {
		if pkg == companion || IsSystemPackage(pkg) || seen[pkg] {
			continue
		}
		seen[pkg] = true

		name, err := catalog.Label(ctx, pkg)
		if err != nil || name == "" {
			name = pkg
		}
		icon, err := catalog.IconBase64(pkg)
		if err != nil {
			logger.Debug("failed to load app icon", zap.String("package", pkg), zap.Error(err))
			icon = ""
		}

		apps = append(apps, domain.InstalledApp{Name: name, Package: pkg, IconBase64: icon})
	}

	sort.SliceStable(apps, func(i, j int) bool {
		if apps[i].Name != apps[j].Name {
			return apps[i].Name < apps[j].Name
		}
		return apps[i].Package < apps[j].Package
	})
	return apps
}

var (
	_ domain.AppLister = (*ADBAppLister)(nil)
	_ domain.AppLister = (*CatalogAppLister)(nil)
)
