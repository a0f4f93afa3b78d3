package ws

import (
	"time"

	"presencegofer/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	defaultSendBufferSize = 256
)

// Publisher receives presence_set calls
type Publisher interface {
	SetStatus(id chat.FriendID, online bool) bool
}
