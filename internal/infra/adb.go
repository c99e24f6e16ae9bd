package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// ADB runs shell commands on the connected device through the adb binary.
type ADB struct {
	path      string
	serial    string
	extraArgs []string
	runner    CommandRunner
}

// NewADB creates a device bridge. extraArgs is a shell-quoted string of
// global adb flags placed before the subcommand.
func NewADB(path, serial, extraArgs string) (*ADB, error) {
	return NewADBWithRunner(path, serial, extraArgs, &RealCommandRunner{})
}

// NewADBWithRunner creates a device bridge with an injectable runner (for testing).
func NewADBWithRunner(path, serial, extraArgs string, runner CommandRunner) (*ADB, error) {
	extra, err := shlex.Split(extraArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse adb extra args %q: %w", extraArgs, err)
	}
	if path == "" {
		path = "adb"
	}
	return &ADB{
		path:      path,
		serial:    serial,
		extraArgs: extra,
		runner:    runner,
	}, nil
}

// Args builds the full adb argument list for a device shell command.
// Arguments are quoted for the device shell, which re-splits them.
func (a *ADB) Args(shellArgs ...string) []string {
	args := make([]string, 0, len(a.extraArgs)+len(shellArgs)+3)
	if a.serial != "" {
		args = append(args, "-s", a.serial)
	}
	args = append(args, a.extraArgs...)
	args = append(args, "shell")
	for _, s := range shellArgs {
		args = append(args, quoteDeviceArg(s))
	}
	return args
}

// Shell runs a device shell command and returns its stdout.
func (a *ADB) Shell(ctx context.Context, shellArgs ...string) ([]byte, error) {
	out, err := a.runner.Output(ctx, a.path, a.Args(shellArgs...)...)
	if err != nil {
		return out, fmt.Errorf("adb shell %s: %w", strings.Join(shellArgs, " "), err)
	}
	return out, nil
}

// quoteDeviceArg single-quotes s unless it is made only of characters the
// device shell passes through unchanged.
func quoteDeviceArg(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@%+,", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
