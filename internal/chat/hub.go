package chat

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Hub is the in-process presence source. Watchers register a callback per
// friend; SetStatus fans an update out to every callback watching that friend.
type Hub struct {
	mu sync.RWMutex

	// friendID -> registered callbacks, in registration order
	watchers map[FriendID][]StatusCallback
	// last known status per friend, bounded
	statuses *lru.Cache[FriendID, Status]

	maxWatchers int
	closed      bool
	now         func() time.Time
	onPublish   func(Status)
	logger      zerolog.Logger
}

// NewHub creates a hub that remembers up to cacheSize last known statuses
func NewHub(cacheSize int, logger zerolog.Logger) (*Hub, error) {
	statuses, err := lru.New[FriendID, Status](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create status cache: %w", err)
	}
	return &Hub{
		watchers: make(map[FriendID][]StatusCallback),
		statuses: statuses,
		now:      time.Now,
		logger:   logger.With().Str("component", "presence-hub").Logger(),
	}, nil
}

// SetMaxWatchers limits callbacks per friend. Zero means unlimited.
func (h *Hub) SetMaxWatchers(n int) {
	h.mu.Lock()
	h.maxWatchers = n
	h.mu.Unlock()
}

// SetOnPublish sets a hook called for every status that is fanned out
func (h *Hub) SetOnPublish(fn func(Status)) {
	h.mu.Lock()
	h.onPublish = fn
	h.mu.Unlock()
}

// SubscribeToFriendStatus registers cb for updates about id. If a status for
// id is already known, cb receives it before this call returns.
func (h *Hub) SubscribeToFriendStatus(id FriendID, cb StatusCallback) error {
	if cb == nil {
		return ErrNilCallback
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	if h.maxWatchers > 0 && len(h.watchers[id]) >= h.maxWatchers {
		h.mu.Unlock()
		return fmt.Errorf("friend %d: %w (%d)", id, ErrTooManyWatchers, h.maxWatchers)
	}
	h.watchers[id] = append(h.watchers[id], cb)
	last, known := h.statuses.Get(id)
	count := len(h.watchers[id])
	h.mu.Unlock()

	h.logger.Debug().Int64("friendID", int64(id)).Int("watchers", count).Msg("watcher subscribed")

	// Prime outside the lock
	if known {
		cb.Invoke(last)
	}
	return nil
}

// UnsubscribeFromFriendStatus removes the registration of cb for id. The
// callback is matched by pointer, so it must be the one passed to subscribe.
func (h *Hub) UnsubscribeFromFriendStatus(id FriendID, cb StatusCallback) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cbs := h.watchers[id]
	for i, c := range cbs {
		if c != cb {
			continue
		}
		cbs = append(cbs[:i:i], cbs[i+1:]...)
		if len(cbs) == 0 {
			delete(h.watchers, id)
		} else {
			h.watchers[id] = cbs
		}
		h.logger.Debug().Int64("friendID", int64(id)).Int("watchers", len(cbs)).Msg("watcher unsubscribed")
		return nil
	}
	return fmt.Errorf("friend %d: %w", id, ErrNotSubscribed)
}

// SetStatus records the presence of id and notifies its watchers.
// Publishing the same online state twice in a row notifies nobody.
// Returns true if the status changed.
func (h *Hub) SetStatus(id FriendID, online bool) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	if last, ok := h.statuses.Get(id); ok && last.IsOnline == online {
		h.mu.Unlock()
		return false
	}
	status := Status{FriendID: id, IsOnline: online, UpdatedAt: h.now()}
	h.statuses.Add(id, status)

	// Copy callbacks to call without holding lock
	cbs := make([]StatusCallback, len(h.watchers[id]))
	copy(cbs, h.watchers[id])
	onPublish := h.onPublish
	h.mu.Unlock()

	h.logger.Debug().
		Int64("friendID", int64(id)).
		Bool("online", online).
		Int("watchers", len(cbs)).
		Msg("status published")

	if onPublish != nil {
		onPublish(status)
	}
	for _, cb := range cbs {
		cb.Invoke(status)
	}
	return true
}

// Status returns the last known status of id
func (h *Hub) Status(id FriendID) (Status, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.statuses.Peek(id)
}

// WatcherCount returns the number of callbacks watching id
func (h *Hub) WatcherCount(id FriendID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[id])
}

// TotalWatchers returns the number of callbacks across all friends
func (h *Hub) TotalWatchers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, cbs := range h.watchers {
		total += len(cbs)
	}
	return total
}

// Close drops all watchers and statuses. Later subscribes fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	watchers := 0
	for _, cbs := range h.watchers {
		watchers += len(cbs)
	}
	h.closed = true
	h.watchers = make(map[FriendID][]StatusCallback)
	h.statuses.Purge()
	h.mu.Unlock()
	h.logger.Info().Int("watchers", watchers).Msg("presence hub closed")
}
