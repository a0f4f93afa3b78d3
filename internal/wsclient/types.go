package wsclient

import (
	"errors"
	"time"

	"presencegofer/internal/chat"
)

// Client errors
var (
	ErrNotConnected     = errors.New("websocket not connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrClientClosed     = errors.New("client is closed")
)

// Default values
const (
	DefaultInitialInterval  = 500 * time.Millisecond
	DefaultMaxInterval      = 30 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultReadTimeout      = 60 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultRebindTimeout    = 10 * time.Second
)

// Options configures a Client
type Options struct {
	URL string
	// Reconnect backoff bounds
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Zero disables pings
	PingInterval time.Duration
	ReadTimeout  time.Duration
}

func (o *Options) applyDefaults() {
	if o.InitialInterval <= 0 {
		o.InitialInterval = DefaultInitialInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = DefaultMaxInterval
	}
	if o.MaxInterval < o.InitialInterval {
		o.MaxInterval = o.InitialInterval
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
}

// StatusHandler receives friend_status pushes
type StatusHandler func(status chat.Status)

// TitleHandler receives document_title pushes
type TitleHandler func(title string)
