package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// Monitoring is the monitor control surface exposed to the UI shell.
type Monitoring interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
	State() (domain.MonitorState, bool)
}

// ScreenShower runs the shared "show blocked screen" reaction.
type ScreenShower interface {
	ShowBlockedScreen(ctx context.Context, screen domain.BlockedScreen) error
}

// Deps are the collaborators a Service routes requests to.
type Deps struct {
	Monitor     Monitoring
	Store       domain.BlockedSetStore
	Permissions domain.PermissionChecker
	Apps        domain.AppLister
	Screens     ScreenShower
}

// Service listens on the bridge socket and dispatches requests.
type Service struct {
	socketPath string
	hub        *Hub
	deps       Deps
	logger     *zap.Logger

	// watchPath, when set, is watched for external edits to the blocked set.
	watchPath string

	storeMu sync.Mutex // serializes read-modify-write of the blocked set
	conns   sync.WaitGroup
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

type handlerFunc func(ctx context.Context, args json.RawMessage) (any, error)

// NewService creates a bridge service.
func NewService(socketPath string, hub *Hub, deps Deps, logger *zap.Logger) *Service {
	return &Service{
		socketPath: socketPath,
		hub:        hub,
		deps:       deps,
		logger:     logger,
	}
}

// WatchFile enables blockedAppsChanged pushes for edits made to path by
// other processes.
func (s *Service) WatchFile(path string) {
	s.watchPath = path
}

// Run listens on the socket until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("failed to create socket dir: %w", err)
	}
	if err := probeSocket(s.socketPath); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on bridge socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("failed to restrict bridge socket: %w", err)
	}

	if set, err := s.deps.Store.Load(); err == nil {
		s.hub.BlockedAppsChanged(set)
	}

	if s.watchPath != "" {
		watcher, err := s.startWatcher(ctx)
		if err != nil {
			s.logger.Warn("blocked-apps file watch disabled", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	s.logger.Info("bridge listening", zap.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	err = s.serve(ctx, ln)

	s.conns.Wait()
	os.Remove(s.socketPath)
	s.logger.Info("bridge stopped")
	return err
}

// serve accepts connections until ctx is cancelled. Accept errors back off
// up to maxAcceptDelay; a listener closed under a live ctx is fatal.
func (s *Service) serve(ctx context.Context, ln net.Listener) error {
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("bridge listener closed: %w", err)
			}

			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(delay*2, maxAcceptDelay)
			}
			s.logger.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// probeSocket fails if a live daemon owns path and removes a stale socket.
func probeSocket(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err == nil {
		conn.Close()
		return fmt.Errorf("bridge socket %s is in use by another daemon", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	return nil
}

func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Unblock the decoder when the daemon shuts down.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}

		if req.Method == MethodSubscribe {
			if err := enc.Encode(okResponse(req.ID, true)); err != nil {
				return
			}
			s.stream(ctx, conn, enc)
			return
		}

		if err := enc.Encode(s.Handle(ctx, &req)); err != nil {
			return
		}
	}
}

// stream forwards hub events until the peer hangs up or ctx ends.
func (s *Service) stream(ctx context.Context, conn net.Conn, enc *json.Encoder) {
	events, cancel := s.hub.Subscribe()
	defer cancel()

	// Detect the peer closing its end.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		buf := make([]byte, 1)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
		}
	}
}

// Handle dispatches one request.
func (s *Service) Handle(ctx context.Context, req *Request) *Response {
	h, ok := s.handlers()[req.Method]
	if !ok {
		return errResponse(req.ID, fmt.Errorf("%w: %s", ErrUnknownMethod, req.Method))
	}

	result, err := h(ctx, req.Args)
	if err != nil {
		s.logger.Debug("request failed", zap.String("method", req.Method), zap.Error(err))
		return errResponse(req.ID, err)
	}
	return okResponse(req.ID, result)
}

func (s *Service) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		MethodListApps:          s.listApps,
		MethodBlockedGet:        s.blockedGet,
		MethodBlockedSet:        s.blockedSet,
		MethodBlockedAdd:        s.blockedAdd,
		MethodBlockedRemove:     s.blockedRemove,
		MethodPermissionCheck:   s.permissionCheck,
		MethodPermissionRequest: s.permissionRequest,
		MethodMonitoringStart:   s.monitoringStart,
		MethodMonitoringStop:    s.monitoringStop,
		MethodMonitoringStatus:  s.monitoringStatus,
		MethodShowBlockedScreen: s.showBlockedScreen,
	}
}

func (s *Service) listApps(ctx context.Context, _ json.RawMessage) (any, error) {
	apps, err := s.deps.Apps.ListInstallableApps(ctx)
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []domain.InstalledApp{}
	}
	return apps, nil
}

func (s *Service) blockedGet(_ context.Context, _ json.RawMessage) (any, error) {
	set, err := s.deps.Store.Load()
	if err != nil {
		return nil, err
	}
	return set.Sorted(), nil
}

func (s *Service) blockedSet(_ context.Context, args json.RawMessage) (any, error) {
	var a PackagesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.mutateBlocked(func(set *domain.BlockedSet) {
		*set = domain.NewBlockedSet(a.Packages...)
	})
}

func (s *Service) blockedAdd(_ context.Context, args json.RawMessage) (any, error) {
	var a PackageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.PackageName == "" {
		return nil, errors.New("packageName is required")
	}
	return s.mutateBlocked(func(set *domain.BlockedSet) { set.Add(a.PackageName) })
}

func (s *Service) blockedRemove(_ context.Context, args json.RawMessage) (any, error) {
	var a PackageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.PackageName == "" {
		return nil, errors.New("packageName is required")
	}
	return s.mutateBlocked(func(set *domain.BlockedSet) { set.Remove(a.PackageName) })
}

// mutateBlocked applies fn to the stored set, saves it and notifies
// subscribers. Returns the new sorted set.
func (s *Service) mutateBlocked(fn func(set *domain.BlockedSet)) (any, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	set, err := s.deps.Store.Load()
	if err != nil {
		return nil, err
	}
	fn(&set)
	if err := s.deps.Store.Save(set); err != nil {
		return nil, err
	}
	s.hub.BlockedAppsChanged(set)
	return set.Sorted(), nil
}

func (s *Service) permissionCheck(ctx context.Context, args json.RawMessage) (any, error) {
	kind, err := permissionKind(args)
	if err != nil {
		return nil, err
	}
	return s.deps.Permissions.Check(ctx, kind)
}

func (s *Service) permissionRequest(ctx context.Context, args json.RawMessage) (any, error) {
	kind, err := permissionKind(args)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Permissions.Request(ctx, kind); err != nil {
		return nil, err
	}
	return true, nil
}

// monitoringStart reports false, not an error, when usage access is missing.
func (s *Service) monitoringStart(ctx context.Context, _ json.RawMessage) (any, error) {
	err := s.deps.Monitor.Start(ctx)
	if errors.Is(err, domain.ErrPermissionDenied) {
		return false, nil
	}
	if err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Service) monitoringStop(ctx context.Context, _ json.RawMessage) (any, error) {
	if err := s.deps.Monitor.Stop(ctx); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Service) monitoringStatus(_ context.Context, _ json.RawMessage) (any, error) {
	state, running := s.deps.Monitor.State()
	return MonitoringStatus{Running: running, State: state}, nil
}

func (s *Service) showBlockedScreen(ctx context.Context, args json.RawMessage) (any, error) {
	var screen domain.BlockedScreen
	if err := decodeArgs(args, &screen); err != nil {
		return nil, err
	}
	if screen.Package == "" {
		return nil, errors.New("packageName is required")
	}
	if err := s.deps.Screens.ShowBlockedScreen(ctx, screen); err != nil {
		return nil, err
	}
	return true, nil
}

// startWatcher watches the directory holding watchPath; atomic writes
// replace the file, so watching the file itself would lose the inode.
func (s *Service) startWatcher(ctx context.Context) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(s.watchPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(s.watchPath)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				set, err := s.deps.Store.Load()
				if err != nil {
					s.logger.Warn("failed to reload blocked apps", zap.Error(err))
					continue
				}
				s.hub.BlockedAppsChanged(set)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("blocked-apps watch error", zap.Error(err))
			}
		}
	}()
	return watcher, nil
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return errors.New("missing args")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid args: %w", err)
	}
	return nil
}

func permissionKind(args json.RawMessage) (domain.PermissionKind, error) {
	var a PermissionArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	if !a.Kind.Valid() {
		return "", fmt.Errorf("unknown permission kind %q", a.Kind)
	}
	return a.Kind, nil
}
