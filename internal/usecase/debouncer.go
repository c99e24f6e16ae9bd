// Package usecase contains application business logic.
package usecase

import (
	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// Debouncer is the block/unblock state machine. It has two states, Clear and
// Blocking(p), and emits one enter reaction per continuous occupancy of a
// blocked app instead of one per tick.
//
// Not safe for concurrent use; the monitor drives it from a single goroutine.
type Debouncer struct {
	companion string
	state     domain.MonitorState
}

// NewDebouncer creates a debouncer in the Clear state. companion is the
// companion app's own package identifier, which is never blocked and always
// clears an active block.
func NewDebouncer(companion string) *Debouncer {
	return &Debouncer{companion: companion}
}

// State returns a copy of the current monitor state.
func (d *Debouncer) State() domain.MonitorState {
	return d.state
}

// Observe feeds one foreground observation and returns the reactions to fire,
// in order. Callers must not call Observe for ticks without an observation.
func (d *Debouncer) Observe(pkg string, blocked domain.BlockedSet) []domain.Reaction {
	d.state.LastObservedPackage = pkg
	current := d.state.CurrentlyBlockedPackage

	if pkg == d.companion {
		return d.clear()
	}

	if !blocked.Contains(pkg) {
		// Unrelated app, or the blocked app itself after it left the set.
		return d.clear()
	}

	if current == pkg {
		return nil
	}

	reactions := d.clear()
	d.state.CurrentlyBlockedPackage = pkg
	return append(reactions, domain.Reaction{Kind: domain.ReactionEnterBlock, Package: pkg})
}

func (d *Debouncer) clear() []domain.Reaction {
	current := d.state.CurrentlyBlockedPackage
	if current == "" {
		return nil
	}
	d.state.CurrentlyBlockedPackage = ""
	return []domain.Reaction{{Kind: domain.ReactionExitBlock, Package: current}}
}
