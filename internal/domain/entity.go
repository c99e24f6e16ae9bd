// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"sort"
	"time"
)

// ErrPermissionDenied is returned when a required platform permission is missing.
var ErrPermissionDenied = errors.New("permission denied")

// EventKind classifies a usage event.
type EventKind int

const (
	EventOther EventKind = iota
	EventForeground
)

func (k EventKind) String() string {
	if k == EventForeground {
		return "FOREGROUND"
	}
	return "OTHER"
}

// ForegroundEvent is a single usage-log entry. Transient, never persisted.
type ForegroundEvent struct {
	Package   string
	Timestamp time.Time
	Kind      EventKind
}

// BlockedSet is the user-configured set of package identifiers subject to blocking.
type BlockedSet struct {
	items map[string]struct{}
}

// NewBlockedSet builds a set from identifiers, skipping empty strings.
func NewBlockedSet(packages ...string) BlockedSet {
	s := BlockedSet{items: make(map[string]struct{}, len(packages))}
	for _, p := range packages {
		s.Add(p)
	}
	return s
}

// Contains reports whether pkg is blocked. Safe on the zero value.
func (s BlockedSet) Contains(pkg string) bool {
	_, ok := s.items[pkg]
	return ok
}

// Add inserts pkg. Empty identifiers are ignored.
func (s *BlockedSet) Add(pkg string) {
	if pkg == "" {
		return
	}
	if s.items == nil {
		s.items = make(map[string]struct{})
	}
	s.items[pkg] = struct{}{}
}

// Remove deletes pkg if present.
func (s *BlockedSet) Remove(pkg string) {
	delete(s.items, pkg)
}

// Len returns the number of blocked packages.
func (s BlockedSet) Len() int {
	return len(s.items)
}

// Sorted returns the identifiers in lexical order.
func (s BlockedSet) Sorted() []string {
	out := make([]string, 0, len(s.items))
	for p := range s.items {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MonitorState is the debouncer's memory for one monitoring session.
// Empty strings mean "none".
type MonitorState struct {
	LastObservedPackage     string `json:"last_observed_package,omitempty"`
	CurrentlyBlockedPackage string `json:"currently_blocked_package,omitempty"`
}

// Blocking reports whether a package is currently blocked.
func (s MonitorState) Blocking() bool {
	return s.CurrentlyBlockedPackage != ""
}

// ReactionKind identifies an edge of the block state machine.
type ReactionKind string

const (
	ReactionEnterBlock ReactionKind = "enter-block"
	ReactionExitBlock  ReactionKind = "exit-block"
)

// Reaction is an edge-triggered action emitted by the debouncer.
type Reaction struct {
	Kind    ReactionKind
	Package string
}

// BlockedScreen is the payload of the "show blocked screen" reaction.
type BlockedScreen struct {
	AppName string `json:"appName"`
	Package string `json:"packageName"`
}

// InstalledApp describes an app the user may add to the blocked set.
type InstalledApp struct {
	Name       string `json:"appName"`
	Package    string `json:"packageName"`
	IconBase64 string `json:"iconBase64"`
}

// PermissionKind names a platform capability the monitor depends on.
type PermissionKind string

const (
	PermissionUsageStats PermissionKind = "USAGE_STATS"
	PermissionOverlay    PermissionKind = "OVERLAY"
)

// Valid reports whether k is a known permission kind.
func (k PermissionKind) Valid() bool {
	return k == PermissionUsageStats || k == PermissionOverlay
}

// DaemonState describes the running daemon for the status command.
// Persisted to a JSON file in the data directory.
type DaemonState struct {
	PID        int       `json:"pid"`
	SocketPath string    `json:"socket_path"`
	StartedAt  time.Time `json:"started_at"`
	Version    string    `json:"version,omitempty"`
	Source     string    `json:"source,omitempty"` // "adb" or "process"
}
