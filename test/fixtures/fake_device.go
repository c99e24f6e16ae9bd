// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// usageEventLayout matches the timestamp format of `dumpsys usagestats`.
const usageEventLayout = "2006-01-02 15:04:05"

type usageEvent struct {
	at   time.Time
	kind string
	pkg  string
}

// FakeDevice simulates the adb binary and the device shell behind it.
// It satisfies infra.CommandRunner without importing infra.
type FakeDevice struct {
	mu sync.Mutex

	// Now stamps usage events; defaults to time.Now.
	Now func() time.Time

	companion    string
	events       []usageEvent
	appOps       map[string]string
	packages     []string
	overlayShown bool
	commands     []string

	// FailActivity makes explicit activity starts report an error.
	FailActivity bool
	// FailAll makes every command exit with this error.
	FailAll error
}

// NewFakeDevice creates a device with the companion app installed and no
// permissions granted.
func NewFakeDevice(companion string) *FakeDevice {
	return &FakeDevice{
		Now:       time.Now,
		companion: companion,
		appOps:    make(map[string]string),
		packages:  []string{companion},
	}
}

// Install adds packages to the third-party package list.
func (d *FakeDevice) Install(pkgs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.packages = append(d.packages, pkgs...)
}

// Grant sets an app-op (e.g. GET_USAGE_STATS) to allow for the companion.
func (d *FakeDevice) Grant(op string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.appOps[op] = "allow"
}

// Revoke sets an app-op to ignore.
func (d *FakeDevice) Revoke(op string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.appOps[op] = "ignore"
}

// Launch brings pkg to the foreground now.
func (d *FakeDevice) Launch(pkg string) {
	d.LaunchAt(pkg, d.Now())
}

// LaunchAt records a foreground transition to pkg at t.
func (d *FakeDevice) LaunchAt(pkg string, t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, usageEvent{at: t, kind: "ACTIVITY_RESUMED", pkg: pkg})
}

// Background records a non-foreground event for pkg at t.
func (d *FakeDevice) Background(pkg string, t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, usageEvent{at: t, kind: "ACTIVITY_PAUSED", pkg: pkg})
}

// OverlayShown reports whether the overlay service is running.
func (d *FakeDevice) OverlayShown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overlayShown
}

// Commands returns every shell command run so far, space-joined.
func (d *FakeDevice) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

// CommandsWithPrefix returns the shell commands starting with prefix.
func (d *FakeDevice) CommandsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range d.Commands() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Run executes a command and discards its output.
func (d *FakeDevice) Run(ctx context.Context, name string, args ...string) error {
	_, err := d.Output(ctx, name, args...)
	return err
}

// Output emulates `adb [flags] shell <cmd...>`.
func (d *FakeDevice) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailAll != nil {
		return nil, d.FailAll
	}

	i := indexOf(args, "shell")
	if i < 0 {
		return nil, fmt.Errorf("fake device: only shell commands are supported: %v", args)
	}
	shell := make([]string, 0, len(args)-i-1)
	for _, a := range args[i+1:] {
		shell = append(shell, unquote(a))
	}
	d.commands = append(d.commands, strings.Join(shell, " "))

	if len(shell) == 0 {
		return nil, fmt.Errorf("fake device: empty shell command")
	}

	switch shell[0] {
	case "dumpsys":
		return d.dumpUsage(), nil
	case "appops":
		return d.appOpsGet(shell)
	case "am":
		return d.am(shell)
	case "monkey":
		d.foreground(d.companion)
		return []byte("Events injected: 1\n"), nil
	case "pm":
		return d.listPackages(), nil
	}
	return nil, fmt.Errorf("fake device: unknown command %q", shell[0])
}

func (d *FakeDevice) dumpUsage() []byte {
	events := append([]usageEvent(nil), d.events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })

	var b strings.Builder
	b.WriteString("user=0\n  In-memory daily stats\n")
	for _, e := range events {
		fmt.Fprintf(&b, "    time=\"%s\" type=%s package=%s class=%s.MainActivity flags=0x0\n",
			e.at.In(time.Local).Format(usageEventLayout), e.kind, e.pkg, e.pkg)
	}
	return []byte(b.String())
}

func (d *FakeDevice) appOpsGet(shell []string) ([]byte, error) {
	// appops get <pkg> <op>
	if len(shell) < 4 || shell[1] != "get" {
		return nil, fmt.Errorf("fake device: bad appops command %v", shell)
	}
	if shell[2] != d.companion {
		return []byte("No operations.\n"), nil
	}
	mode, ok := d.appOps[shell[3]]
	if !ok {
		return []byte("No operations.\n"), nil
	}
	return []byte(fmt.Sprintf("%s: %s; time=+1m2s ago\n", shell[3], mode)), nil
}

func (d *FakeDevice) am(shell []string) ([]byte, error) {
	if len(shell) < 2 {
		return nil, fmt.Errorf("fake device: bad am command %v", shell)
	}
	switch shell[1] {
	case "start":
		if indexOf(shell, "-a") >= 0 {
			return []byte("Starting: Intent { act=" + shell[indexOf(shell, "-a")+1] + " }\n"), nil
		}
		if d.FailActivity {
			return []byte("Error: Activity class does not exist.\n"), nil
		}
		d.foreground(d.companion)
		return []byte("Starting: Intent { cmp=" + d.companion + "/.MainActivity }\n"), nil
	case "startservice":
		d.overlayShown = true
		return []byte("Starting service: Intent { cmp=" + d.companion + "/.BlockingOverlayService }\n"), nil
	case "stopservice":
		d.overlayShown = false
		return []byte("Stopping service: Intent { cmp=" + d.companion + "/.BlockingOverlayService }\nService stopped\n"), nil
	}
	return nil, fmt.Errorf("fake device: unknown am subcommand %q", shell[1])
}

func (d *FakeDevice) listPackages() []byte {
	var b strings.Builder
	for _, p := range d.packages {
		b.WriteString("package:" + p + "\n")
	}
	return []byte(b.String())
}

// foreground records a transition; callers hold d.mu.
func (d *FakeDevice) foreground(pkg string) {
	d.events = append(d.events, usageEvent{at: d.Now(), kind: "ACTIVITY_RESUMED", pkg: pkg})
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}

// unquote reverses the single-quoting applied for the device shell.
func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		return strings.ReplaceAll(s[1:len(s)-1], `'\''`, `'`)
	}
	return s
}
