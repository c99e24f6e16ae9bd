package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

const testCompanion = "com.example.scrolloff"

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
	killedPIDs  []int
	names       map[int]string
	started     []domain.ProcessStart
	killErr     error
	listErr     error
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		names:       make(map[int]string),
	}
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var pids []int
	for pid, name := range m.names {
		if strings.EqualFold(name, pattern) {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

func (m *mockProcessManager) Kill(pid int) error {
	if m.killErr != nil {
		return m.killErr
	}
	m.killedPIDs = append(m.killedPIDs, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) StartedSince(since time.Time) ([]domain.ProcessStart, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.ProcessStart
	for _, p := range m.started {
		if !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// mockCommandRunner answers commands from a table keyed by the joined
// device shell command; unknown commands fail.
type mockCommandRunner struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     [][]string
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

func (m *mockCommandRunner) on(cmd, output string) *mockCommandRunner {
	m.responses[cmd] = output
	return m
}

func (m *mockCommandRunner) fail(cmd string, err error) *mockCommandRunner {
	m.errs[cmd] = err
	return m
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	_, err := m.Output(ctx, name, args...)
	return err
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]string{name}, args...))
	key := shellKey(args)
	if err, ok := m.errs[key]; ok {
		return nil, err
	}
	if out, ok := m.responses[key]; ok {
		return []byte(out), nil
	}
	return nil, fmt.Errorf("unexpected command: %s", key)
}

// shellCalls returns the shell portion of every call.
func (m *mockCommandRunner) shellCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		out = append(out, shellKey(c[1:]))
	}
	return out
}

// shellKey returns the words after "shell", or all args for host commands.
func shellKey(args []string) string {
	for i, a := range args {
		if a == "shell" {
			return strings.Join(args[i+1:], " ")
		}
	}
	return strings.Join(args, " ")
}

var errCommandFailed = errors.New("exit status 1")

func newTestADB(runner CommandRunner) *ADB {
	adb, err := NewADBWithRunner("adb", "", "", runner)
	if err != nil {
		panic(err)
	}
	return adb
}
