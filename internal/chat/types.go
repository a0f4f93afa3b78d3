package chat

import (
	"errors"
	"time"

	"presencegofer/internal/effect"
)

// Hub errors
var (
	ErrNotSubscribed   = errors.New("callback not subscribed to friend")
	ErrTooManyWatchers = errors.New("maximum watchers reached for friend")
	ErrHubClosed       = errors.New("presence hub is closed")
	ErrNilCallback     = errors.New("callback is nil")
)

// FriendID identifies a friend whose presence can be watched
type FriendID int64

// Status is a presence update for one friend
type Status struct {
	FriendID  FriendID  `json:"friendId"`
	IsOnline  bool      `json:"isOnline"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusCallback is the handler reference registered with the hub
type StatusCallback = *effect.Callback[Status]
