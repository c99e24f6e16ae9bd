// Package daemon implements the foreground monitor and the long-running
// process that hosts it next to the bridge.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
	"github.com/eliteGoblin/focusd/scrolloff/internal/usecase"
)

// ErrNotRunning is returned by operations that need an active monitoring session.
var ErrNotRunning = errors.New("monitor is not running")

// MonitorConfig holds monitor timing and identity.
type MonitorConfig struct {
	Interval  time.Duration // Tick period
	Window    time.Duration // Usage query window, must be >= Interval
	Companion string        // Companion app package; never blocked

	// RedirectClosesApp is set when the redirect terminates the blocked app
	// rather than raising the companion. The platform then reports no
	// companion transition, so a successful redirect ends the block itself.
	RedirectClosesApp bool
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:  1 * time.Second,
		Window:    2 * time.Second,
		Companion: "com.example.scrolloff",
	}
}

// Reactor applies debouncer reactions. Implemented by usecase.Dispatcher.
type Reactor interface {
	React(ctx context.Context, r domain.Reaction) error
	ExitBlock(ctx context.Context, pkg string) error
}

// Monitor owns one monitoring session at a time: a ticker, its goroutine and
// the debouncer state. Start and Stop may be called from any goroutine.
type Monitor struct {
	config      MonitorConfig
	source      domain.UsageEventSource
	blocked     domain.BlockedSetProvider
	permissions domain.PermissionChecker
	reactor     Reactor
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	session *session
}

type session struct {
	cancel    context.CancelFunc
	done      chan struct{}
	poller    *usecase.Poller
	debouncer *usecase.Debouncer

	tickMu  sync.Mutex // held for the duration of one poll
	stopped bool       // guarded by tickMu

	stateMu  sync.Mutex
	snapshot domain.MonitorState
}

// NewMonitor creates a stopped monitor.
func NewMonitor(
	config MonitorConfig,
	source domain.UsageEventSource,
	blocked domain.BlockedSetProvider,
	permissions domain.PermissionChecker,
	reactor Reactor,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		config:      config,
		source:      source,
		blocked:     blocked,
		permissions: permissions,
		reactor:     reactor,
		logger:      logger,
		now:         time.Now,
	}
}

// Start begins polling. Returns domain.ErrPermissionDenied when usage access
// is not granted; monitoring does not start in that case. Starting a running
// monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil
	}

	granted, err := m.permissions.Check(ctx, domain.PermissionUsageStats)
	if err != nil {
		return fmt.Errorf("failed to check usage access: %w", err)
	}
	if !granted {
		m.logger.Warn("usage access not granted, monitoring not started")
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, domain.PermissionUsageStats)
	}

	poller, err := usecase.NewPoller(m.source, m.config.Interval, m.config.Window)
	if err != nil {
		return err
	}

	// The session outlives the caller's context; only Stop ends it.
	loopCtx, cancel := context.WithCancel(context.Background())
	s := &session{
		cancel:    cancel,
		done:      make(chan struct{}),
		poller:    poller,
		debouncer: usecase.NewDebouncer(m.config.Companion),
	}
	m.session = s

	m.logger.Info("monitoring started",
		zap.Duration("interval", m.config.Interval),
		zap.Duration("window", m.config.Window))

	go m.run(loopCtx, s)
	return nil
}

// Stop cancels the ticker and waits for the loop to exit, so no tick fires
// after Stop returns. Any overlay is torn down. Stopping a stopped monitor is
// a no-op.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}

	s.cancel()
	<-s.done

	// Wait out a poll started outside the ticker.
	s.tickMu.Lock()
	s.stopped = true
	s.tickMu.Unlock()

	state := s.state()
	if err := m.reactor.ExitBlock(ctx, state.CurrentlyBlockedPackage); err != nil {
		m.logger.Warn("failed to tear down overlay on stop", zap.Error(err))
	}

	m.logger.Info("monitoring stopped")
	return nil
}

// IsRunning reports whether a session is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// State returns the current session's state.
func (m *Monitor) State() (domain.MonitorState, bool) {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()

	if s == nil {
		return domain.MonitorState{}, false
	}
	return s.state(), true
}

// pollOnce runs a poll immediately, outside the ticker. It is skipped (false)
// when a tick is already in progress.
func (m *Monitor) pollOnce(ctx context.Context) (bool, error) {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()

	if s == nil {
		return false, ErrNotRunning
	}
	return m.tick(ctx, s), nil
}

func (m *Monitor) run(ctx context.Context, s *session) {
	defer close(s.done)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx, s)
		}
	}
}

// tick performs one poll cycle. Returns false if skipped because another
// poll holds the session.
func (m *Monitor) tick(ctx context.Context, s *session) bool {
	if !s.tickMu.TryLock() {
		m.logger.Debug("previous poll still running, skipping tick")
		return false
	}
	defer s.tickMu.Unlock()

	if s.stopped {
		return false
	}

	pkg, ok, err := s.poller.Observe(ctx, m.now())
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("poll failed", zap.Error(err))
		}
		return true
	}
	if !ok {
		return true
	}

	blocked, err := m.blocked.Load()
	if err != nil {
		m.logger.Warn("failed to load blocked apps", zap.Error(err))
		return true
	}

	prev := s.debouncer.State()
	reactions := s.debouncer.Observe(pkg, blocked)
	s.setState(s.debouncer.State())

	if pkg != prev.LastObservedPackage {
		m.logger.Debug("foreground app changed",
			zap.String("from", prev.LastObservedPackage),
			zap.String("to", pkg))
	}

	m.react(ctx, s, reactions, blocked)
	return true
}

func (m *Monitor) react(ctx context.Context, s *session, reactions []domain.Reaction, blocked domain.BlockedSet) {
	for _, r := range reactions {
		err := m.reactor.React(ctx, r)
		if err != nil {
			m.logger.Warn("reaction failed",
				zap.String("reaction", string(r.Kind)),
				zap.String("package", r.Package),
				zap.Error(err))
			continue
		}
		if r.Kind != domain.ReactionEnterBlock || !m.config.RedirectClosesApp {
			continue
		}

		// The app is gone; a relaunch must block again.
		m.logger.Debug("redirect closed app, returning to companion",
			zap.String("package", r.Package))
		cleared := s.debouncer.Observe(m.config.Companion, blocked)
		s.setState(s.debouncer.State())
		m.react(ctx, s, cleared, blocked)
	}
}

func (s *session) state() domain.MonitorState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.snapshot
}

func (s *session) setState(st domain.MonitorState) {
	s.stateMu.Lock()
	s.snapshot = st
	s.stateMu.Unlock()
}
