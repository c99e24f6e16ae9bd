package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// ErrWindowTooSmall is returned when the query window is shorter than the
// poll interval; app switches between ticks would be missed.
var ErrWindowTooSmall = errors.New("query window must be at least the poll interval")

// Poller turns a usage-event window into a single foreground observation.
type Poller struct {
	source domain.UsageEventSource
	window time.Duration
}

// NewPoller creates a poller querying the last window of events each tick.
func NewPoller(source domain.UsageEventSource, interval, window time.Duration) (*Poller, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	if window < interval {
		return nil, fmt.Errorf("%w: window %s, interval %s", ErrWindowTooSmall, window, interval)
	}
	return &Poller{source: source, window: window}, nil
}

// Window returns the configured query window.
func (p *Poller) Window() time.Duration {
	return p.window
}

// Observe queries [now-window, now) and returns the package of the last
// foreground transition. ok is false when the window holds none.
func (p *Poller) Observe(ctx context.Context, now time.Time) (pkg string, ok bool, err error) {
	start := now.Add(-p.window)
	events, err := p.source.Query(ctx, start, now)
	if err != nil {
		return "", false, fmt.Errorf("failed to query usage events: %w", err)
	}
	pkg, ok = LastForeground(events, start, now)
	return pkg, ok, nil
}

// LastForeground scans events in chronological order and returns the package
// of the last foreground event inside [start, end).
func LastForeground(events []domain.ForegroundEvent, start, end time.Time) (string, bool) {
	sorted := make([]domain.ForegroundEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var last string
	found := false
	for _, e := range sorted {
		if e.Timestamp.Before(start) || !e.Timestamp.Before(end) {
			continue
		}
		if e.Kind != domain.EventForeground || e.Package == "" {
			continue
		}
		last = e.Package
		found = true
	}
	return last, found
}
