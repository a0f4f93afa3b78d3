package friendstatus

import (
	"sync"

	"github.com/rs/zerolog"

	"presencegofer/internal/chat"
	"presencegofer/internal/effect"
)

// Render outputs
const (
	RenderLoading = "Loading..."
	RenderOnline  = "Online"
	RenderOffline = "Offline"
)

// API is the presence source a FriendStatus subscribes to
type API interface {
	SubscribeToFriendStatus(id chat.FriendID, cb chat.StatusCallback) error
	UnsubscribeFromFriendStatus(id chat.FriendID, cb chat.StatusCallback) error
}

// FriendStatus tracks whether one friend is online. The friend can change
// over time; the component keeps exactly one subscription for the current one.
type FriendStatus struct {
	// mu serializes SetFriend and Unmount
	mu        sync.Mutex
	lifecycle *effect.Lifecycle[chat.FriendID, chat.Status]

	stateMu   sync.RWMutex
	friend    chat.FriendID
	hasFriend bool
	isOnline  bool
	known     bool
	onChange  func(chat.Status)

	logger zerolog.Logger
}

// New creates an unmounted FriendStatus
func New(api API, logger zerolog.Logger) *FriendStatus {
	return &FriendStatus{
		lifecycle: effect.NewLifecycle[chat.FriendID, chat.Status](api.SubscribeToFriendStatus, api.UnsubscribeFromFriendStatus, logger),
		logger:    logger.With().Str("component", "friend-status").Logger(),
	}
}

// SetObserver forwards lifecycle calls to o
func (fs *FriendStatus) SetObserver(o effect.Observer) {
	fs.mu.Lock()
	fs.lifecycle.SetObserver(o)
	fs.mu.Unlock()
}

// OnChange sets the hook called after every accepted status update
func (fs *FriendStatus) OnChange(fn func(chat.Status)) {
	fs.stateMu.Lock()
	fs.onChange = fn
	fs.stateMu.Unlock()
}

// SetFriend points the component at id. Changing friends drops the old
// subscription before subscribing to the new one and resets the status to
// unknown.
func (fs *FriendStatus) SetFriend(id chat.FriendID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.stateMu.Lock()
	if !fs.hasFriend || fs.friend != id {
		fs.friend = id
		fs.hasFriend = true
		fs.known = false
		fs.isOnline = false
	}
	fs.stateMu.Unlock()

	if err := fs.lifecycle.Bind(id, fs.handleStatusChange); err != nil {
		fs.logger.Warn().Err(err).Int64("friendID", int64(id)).Msg("failed to bind friend")
		return err
	}
	return nil
}

// Unmount drops the subscription. The component may be pointed at a friend again later.
func (fs *FriendStatus) Unmount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.stateMu.Lock()
	fs.hasFriend = false
	fs.known = false
	fs.stateMu.Unlock()

	return fs.lifecycle.Dispose()
}

// Friend returns the friend the component points at
func (fs *FriendStatus) Friend() (chat.FriendID, bool) {
	fs.stateMu.RLock()
	defer fs.stateMu.RUnlock()
	return fs.friend, fs.hasFriend
}

// Subscribed reports whether a subscription is currently held
func (fs *FriendStatus) Subscribed() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.lifecycle.Active()
}

// IsOnline returns the last received status and whether one was received
func (fs *FriendStatus) IsOnline() (online, known bool) {
	fs.stateMu.RLock()
	defer fs.stateMu.RUnlock()
	return fs.isOnline, fs.known
}

// Render returns the text shown for the current status
func (fs *FriendStatus) Render() string {
	online, known := fs.IsOnline()
	if !known {
		return RenderLoading
	}
	if online {
		return RenderOnline
	}
	return RenderOffline
}

func (fs *FriendStatus) handleStatusChange(status chat.Status) {
	fs.stateMu.Lock()
	// late delivery for a friend we already left
	if !fs.hasFriend || status.FriendID != fs.friend {
		fs.stateMu.Unlock()
		return
	}
	fs.isOnline = status.IsOnline
	fs.known = true
	onChange := fs.onChange
	fs.stateMu.Unlock()

	if onChange != nil {
		onChange(status)
	}
}
