package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"presencegofer/internal/chat"
	"presencegofer/internal/friendstatus"
	"presencegofer/internal/jsonrpc"
)

// Session owns the friend status component of one client connection and
// pushes its status and title changes to the client.
type Session struct {
	id        string
	component *friendstatus.WithCounter
	sendFunc  SendFunc

	mu     sync.RWMutex
	title  string
	closed bool

	logger zerolog.Logger
}

// NewSession creates and mounts a session component. observer may be nil.
func NewSession(api friendstatus.API, sendFunc SendFunc, observer Observer, logger zerolog.Logger) *Session {
	id := uuid.New().String()
	s := &Session{
		id:       id,
		sendFunc: sendFunc,
		logger:   logger.With().Str("session", id).Logger(),
	}

	s.component = friendstatus.NewWithCounter(api, friendstatus.TitleFunc(s.pushTitle), s.logger)
	s.component.OnChange(s.pushStatus)
	if observer != nil {
		s.component.SetObserver(observer)
	}
	s.component.Mount()
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Bind points the session at a friend and returns the rendered status
func (s *Session) Bind(friendID chat.FriendID) (string, error) {
	if s.isClosed() {
		return "", ErrSessionClosed
	}
	if err := s.component.SetFriend(friendID); err != nil {
		return "", fmt.Errorf("failed to bind friend %d: %w", friendID, err)
	}
	return s.component.Render(), nil
}

// Unbind drops the friend subscription, keeping the session open
func (s *Session) Unbind() error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.component.FriendStatus.Unmount()
}

// Click increments the session counter
func (s *Session) Click() (int, error) {
	if s.isClosed() {
		return 0, ErrSessionClosed
	}
	return s.component.Click(), nil
}

// Render returns the current component output
func (s *Session) Render() jsonrpc.RenderResult {
	s.mu.RLock()
	title := s.title
	s.mu.RUnlock()

	res := jsonrpc.RenderResult{
		Status: s.component.Render(),
		Title:  title,
		Count:  s.component.Count(),
	}
	if id, ok := s.component.Friend(); ok {
		v := int64(id)
		res.Friend = &v
	}
	return res
}

// Subscribed reports whether the session holds a friend subscription
func (s *Session) Subscribed() bool {
	return s.component.Subscribed()
}

// Close unmounts the component. Calling it again is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.component.Unmount()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmount session component")
	}
	s.logger.Debug().Msg("session closed")
	return err
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) pushStatus(status chat.Status) {
	s.notify(jsonrpc.NotifyFriendStatus, status)
}

func (s *Session) pushTitle(title string) {
	s.mu.Lock()
	s.title = title
	s.mu.Unlock()
	s.notify(jsonrpc.NotifyDocumentTitle, title)
}

func (s *Session) notify(method string, result interface{}) {
	if s.isClosed() || s.sendFunc == nil {
		return
	}
	n, err := jsonrpc.NewNotification(method, s.id, result)
	if err != nil {
		s.logger.Warn().Err(err).Str("method", method).Msg("failed to build notification")
		return
	}
	data, err := n.Bytes()
	if err != nil {
		s.logger.Warn().Err(err).Str("method", method).Msg("failed to marshal notification")
		return
	}
	s.sendFunc(data)
}
