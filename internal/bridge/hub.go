package bridge

import (
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// subscriberBuffer bounds how far a slow subscriber may fall behind before
// events to it are dropped.
const subscriberBuffer = 32

// Hub fans events out to subscribed connections. It is the daemon's
// domain.Navigator: blocked-screen reactions reach the UI shell through it.
type Hub struct {
	logger *zap.Logger

	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	lastBlocked []string
	blockedSeen bool
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:      logger,
		subscribers: make(map[int]chan Event),
	}
}

// Subscribe registers a listener. The returned cancel func unregisters it
// and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers, id)
			close(ch)
		})
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish delivers ev to every subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publishLocked(ev)
}

func (h *Hub) publishLocked(ev Event) {
	for id, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("subscriber is not keeping up, dropping event",
				zap.Int("subscriber", id),
				zap.String("event", ev.Event))
		}
	}
}

// NavigateToBlockedScreen pushes a navigateToBlockedScreen event.
func (h *Hub) NavigateToBlockedScreen(screen domain.BlockedScreen) {
	ev, err := NewEvent(EventNavigateToBlockedScreen, screen)
	if err != nil {
		h.logger.Error("failed to build navigation event", zap.Error(err))
		return
	}
	h.Publish(ev)
}

// BlockedAppsChanged pushes a blockedAppsChanged event unless the set is
// unchanged since the last push.
func (h *Hub) BlockedAppsChanged(set domain.BlockedSet) {
	packages := set.Sorted()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.blockedSeen && slices.Equal(h.lastBlocked, packages) {
		return
	}
	h.lastBlocked = packages
	h.blockedSeen = true

	ev, err := NewEvent(EventBlockedAppsChanged, PackagesArgs{Packages: packages})
	if err != nil {
		h.logger.Error("failed to build blocked-apps event", zap.Error(err))
		return
	}
	h.publishLocked(ev)
}

// Ensure Hub implements domain.Navigator.
var _ domain.Navigator = (*Hub)(nil)
