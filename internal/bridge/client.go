package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// ErrDaemonNotRunning is returned when nothing listens on the bridge socket.
var ErrDaemonNotRunning = errors.New("daemon is not running")

const dialTimeout = 2 * time.Second

// Client talks to a running daemon. Each call uses its own connection.
type Client struct {
	socketPath string
}

// NewClient creates a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
	}
	return conn, nil
}

// Call sends one request and decodes the result into result (if non-nil).
func (c *Client) Call(ctx context.Context, method string, args, result any) error {
	req, err := NewRequest(method, args)
	if err != nil {
		return err
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send %s: %w", method, err)
	}

	var resp Response
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&resp); err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("response id mismatch: sent %s, got %s", req.ID, resp.ID)
	}
	if !resp.OK {
		return fmt.Errorf("%s: %s", method, resp.Error)
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// Subscribe streams daemon events to fn until ctx is cancelled or the
// daemon closes the connection. ready, if non-nil, is called once the
// subscription is acknowledged.
func (c *Client) Subscribe(ctx context.Context, ready func(), fn func(Event)) error {
	req, err := NewRequest(MethodSubscribe, nil)
	if err != nil {
		return err
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	dec := json.NewDecoder(bufio.NewReader(conn))
	var ack Response
	if err := dec.Decode(&ack); err != nil {
		return fmt.Errorf("failed to read subscribe ack: %w", err)
	}
	if !ack.OK {
		return fmt.Errorf("subscribe rejected: %s", ack.Error)
	}
	if ready != nil {
		ready()
	}

	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("event stream closed: %w", err)
		}
		fn(ev)
	}
}

// ListInstallableApps returns user-installed apps.
func (c *Client) ListInstallableApps(ctx context.Context) ([]domain.InstalledApp, error) {
	var apps []domain.InstalledApp
	err := c.Call(ctx, MethodListApps, nil, &apps)
	return apps, err
}

// BlockedApps returns the blocked set.
func (c *Client) BlockedApps(ctx context.Context) ([]string, error) {
	var pkgs []string
	err := c.Call(ctx, MethodBlockedGet, nil, &pkgs)
	return pkgs, err
}

// SetBlockedApps replaces the blocked set.
func (c *Client) SetBlockedApps(ctx context.Context, pkgs []string) ([]string, error) {
	var out []string
	err := c.Call(ctx, MethodBlockedSet, PackagesArgs{Packages: pkgs}, &out)
	return out, err
}

// AddBlockedApp adds pkg to the blocked set.
func (c *Client) AddBlockedApp(ctx context.Context, pkg string) ([]string, error) {
	var out []string
	err := c.Call(ctx, MethodBlockedAdd, PackageArgs{PackageName: pkg}, &out)
	return out, err
}

// RemoveBlockedApp removes pkg from the blocked set.
func (c *Client) RemoveBlockedApp(ctx context.Context, pkg string) ([]string, error) {
	var out []string
	err := c.Call(ctx, MethodBlockedRemove, PackageArgs{PackageName: pkg}, &out)
	return out, err
}

// CheckPermission reports whether kind is granted.
func (c *Client) CheckPermission(ctx context.Context, kind domain.PermissionKind) (bool, error) {
	var granted bool
	err := c.Call(ctx, MethodPermissionCheck, PermissionArgs{Kind: kind}, &granted)
	return granted, err
}

// RequestPermission opens the settings screen for kind.
func (c *Client) RequestPermission(ctx context.Context, kind domain.PermissionKind) error {
	return c.Call(ctx, MethodPermissionRequest, PermissionArgs{Kind: kind}, nil)
}

// StartMonitoring returns false when usage access is missing.
func (c *Client) StartMonitoring(ctx context.Context) (bool, error) {
	var started bool
	err := c.Call(ctx, MethodMonitoringStart, nil, &started)
	return started, err
}

// StopMonitoring stops the monitor.
func (c *Client) StopMonitoring(ctx context.Context) error {
	return c.Call(ctx, MethodMonitoringStop, nil, nil)
}

// MonitoringStatus returns whether the monitor runs and its state.
func (c *Client) MonitoringStatus(ctx context.Context) (MonitoringStatus, error) {
	var st MonitoringStatus
	err := c.Call(ctx, MethodMonitoringStatus, nil, &st)
	return st, err
}

// ShowBlockedScreen triggers the blocked-screen reaction for screen.
func (c *Client) ShowBlockedScreen(ctx context.Context, screen domain.BlockedScreen) error {
	return c.Call(ctx, MethodShowBlockedScreen, screen, nil)
}
