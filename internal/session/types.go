package session

import (
	"errors"

	"presencegofer/internal/effect"
)

// Session errors
var (
	ErrTooManySessions = errors.New("maximum sessions reached")
	ErrSessionClosed   = errors.New("session is closed")
)

// SendFunc is a callback function for sending data to the client
type SendFunc func(data []byte)

// Observer receives lifecycle calls of every session component plus session open/close events
type Observer interface {
	effect.Observer
	SessionOpened()
	SessionClosed()
}
