package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// ProcessUsageSource treats host process launches as foreground transitions,
// with the process name standing in for the package identifier.
type ProcessUsageSource struct {
	pm domain.ProcessManager
}

// NewProcessUsageSource creates a desktop usage source.
func NewProcessUsageSource(pm domain.ProcessManager) *ProcessUsageSource {
	return &ProcessUsageSource{pm: pm}
}

// Query returns process launches in [start, end).
func (s *ProcessUsageSource) Query(ctx context.Context, start, end time.Time) ([]domain.ForegroundEvent, error) {
	procs, err := s.pm.StartedSince(start)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var events []domain.ForegroundEvent
	for _, p := range procs {
		if p.CreatedAt.Before(start) || !p.CreatedAt.Before(end) {
			continue
		}
		events = append(events, domain.ForegroundEvent{
			Package:   p.Name,
			Timestamp: p.CreatedAt,
			Kind:      domain.EventForeground,
		})
	}
	return events, nil
}

// Ensure ProcessUsageSource implements domain.UsageEventSource.
var _ domain.UsageEventSource = (*ProcessUsageSource)(nil)
