package infra

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// usageEventLayout is the timestamp format of `dumpsys usagestats` event lines.
const usageEventLayout = "2006-01-02 15:04:05"

// usageEventLine matches event rows such as
//
//	time="2024-05-01 10:23:45" type=ACTIVITY_RESUMED package=com.instagram.android class=...
var usageEventLine = regexp.MustCompile(`time="([^"]+)"\s+type=(\S+)\s+package=(\S+)`)

// foregroundTypes are the event types that mark a foreground transition.
var foregroundTypes = map[string]bool{
	"MOVE_TO_FOREGROUND": true,
	"ACTIVITY_RESUMED":   true,
}

// ADBUsageSource reads foreground transitions from the device usage log.
type ADBUsageSource struct {
	adb      *ADB
	location *time.Location
}

// NewADBUsageSource creates a source that interprets device timestamps in
// the host's local zone.
func NewADBUsageSource(adb *ADB) *ADBUsageSource {
	return NewADBUsageSourceInLocation(adb, time.Local)
}

// NewADBUsageSourceInLocation creates a source with an explicit device time zone.
func NewADBUsageSourceInLocation(adb *ADB, loc *time.Location) *ADBUsageSource {
	return &ADBUsageSource{adb: adb, location: loc}
}

// Query returns events recorded in [start, end).
func (s *ADBUsageSource) Query(ctx context.Context, start, end time.Time) ([]domain.ForegroundEvent, error) {
	out, err := s.adb.Shell(ctx, "dumpsys", "usagestats")
	if err != nil {
		return nil, fmt.Errorf("failed to read usage stats: %w", err)
	}

	events := ParseUsageEvents(out, s.location)
	inWindow := events[:0]
	for _, e := range events {
		if !e.Timestamp.Before(start) && e.Timestamp.Before(end) {
			inWindow = append(inWindow, e)
		}
	}
	return inWindow, nil
}

// ParseUsageEvents extracts events from `dumpsys usagestats` output. Lines
// that do not look like events are skipped. The dump lists the same event
// under several interval buckets; duplicates are dropped.
func ParseUsageEvents(out []byte, loc *time.Location) []domain.ForegroundEvent {
	type key struct {
		pkg  string
		ts   int64
		kind domain.EventKind
	}
	seen := make(map[key]bool)

	var events []domain.ForegroundEvent
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := usageEventLine.FindSubmatch(scanner.Bytes())
		if m == nil {
			continue
		}
		ts, err := time.ParseInLocation(usageEventLayout, string(m[1]), loc)
		if err != nil {
			continue
		}
		kind := domain.EventOther
		if foregroundTypes[string(m[2])] {
			kind = domain.EventForeground
		}
		e := domain.ForegroundEvent{Package: string(m[3]), Timestamp: ts, Kind: kind}

		k := key{e.Package, ts.UnixNano(), kind}
		if seen[k] {
			continue
		}
		seen[k] = true
		events = append(events, e)
	}
	return events
}

// Ensure ADBUsageSource implements domain.UsageEventSource.
var _ domain.UsageEventSource = (*ADBUsageSource)(nil)
