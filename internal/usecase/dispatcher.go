package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// Dispatcher turns debouncer reactions into platform effects. Both the
// polling path and the external "show blocked screen" entry point go
// through ShowBlockedScreen.
type Dispatcher struct {
	redirector  domain.Redirector
	overlay     domain.Overlay
	permissions domain.PermissionChecker
	labeler     domain.AppLabeler
	navigator   domain.Navigator
	logger      *zap.Logger
}

// NewDispatcher creates a reaction dispatcher.
// overlay and navigator may be nil.
func NewDispatcher(
	redirector domain.Redirector,
	overlay domain.Overlay,
	permissions domain.PermissionChecker,
	labeler domain.AppLabeler,
	navigator domain.Navigator,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		redirector:  redirector,
		overlay:     overlay,
		permissions: permissions,
		labeler:     labeler,
		navigator:   navigator,
		logger:      logger,
	}
}

// React applies a single reaction.
func (d *Dispatcher) React(ctx context.Context, r domain.Reaction) error {
	switch r.Kind {
	case domain.ReactionEnterBlock:
		return d.EnterBlock(ctx, r.Package)
	case domain.ReactionExitBlock:
		return d.ExitBlock(ctx, r.Package)
	default:
		return fmt.Errorf("unknown reaction kind: %q", r.Kind)
	}
}

// EnterBlock resolves the app's display name and shows the blocked screen.
func (d *Dispatcher) EnterBlock(ctx context.Context, pkg string) error {
	d.logger.Info("blocking app", zap.String("package", pkg))
	return d.ShowBlockedScreen(ctx, domain.BlockedScreen{
		AppName: d.DisplayName(ctx, pkg),
		Package: pkg,
	})
}

// DisplayName returns the app's label, falling back to the identifier.
func (d *Dispatcher) DisplayName(ctx context.Context, pkg string) string {
	if d.labeler == nil {
		return pkg
	}
	name, err := d.labeler.Label(ctx, pkg)
	if err != nil || name == "" {
		d.logger.Debug("display name lookup failed, using package",
			zap.String("package", pkg),
			zap.Error(err))
		return pkg
	}
	return name
}

// ShowBlockedScreen redirects to the companion app, then decorates with the
// overlay when permitted, then notifies the UI shell. The redirect is always
// attempted; overlay failure never prevents it. Returns the redirect error.
func (d *Dispatcher) ShowBlockedScreen(ctx context.Context, screen domain.BlockedScreen) error {
	if screen.AppName == "" {
		screen.AppName = screen.Package
	}

	redirectErr := d.redirector.BringToForeground(ctx, screen)
	if redirectErr != nil {
		d.logger.Warn("failed to bring companion to foreground",
			zap.String("package", screen.Package),
			zap.Error(redirectErr))
	}

	if d.overlay != nil && d.overlayPermitted(ctx) {
		if err := d.overlay.Show(ctx, screen); err != nil {
			d.logger.Warn("failed to show blocking overlay",
				zap.String("package", screen.Package),
				zap.Error(err))
		}
	}

	if d.navigator != nil {
		d.navigator.NavigateToBlockedScreen(screen)
	}

	if redirectErr != nil {
		return fmt.Errorf("failed to redirect from %s: %w", screen.Package, redirectErr)
	}
	return nil
}

// ExitBlock tears down the overlay. Safe when none is shown.
func (d *Dispatcher) ExitBlock(ctx context.Context, pkg string) error {
	if pkg != "" {
		d.logger.Info("unblocking app", zap.String("package", pkg))
	}
	if d.overlay == nil {
		return nil
	}
	if err := d.overlay.Hide(ctx); err != nil {
		d.logger.Warn("failed to hide blocking overlay", zap.Error(err))
		return err
	}
	return nil
}

func (d *Dispatcher) overlayPermitted(ctx context.Context) bool {
	if d.permissions == nil {
		return false
	}
	ok, err := d.permissions.Check(ctx, domain.PermissionOverlay)
	if err != nil {
		d.logger.Debug("overlay permission check failed", zap.Error(err))
		return false
	}
	return ok
}
