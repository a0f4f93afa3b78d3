package session

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"presencegofer/internal/friendstatus"
)

// Manager manages all client sessions, one per connection
type Manager struct {
	sessions    map[*websocket.Conn]*Session
	mu          sync.RWMutex
	api         friendstatus.API
	observer    Observer
	maxSessions int
	logger      zerolog.Logger
}

// NewManager creates a new session Manager. maxSessions of 0 means unlimited.
func NewManager(api friendstatus.API, maxSessions int, logger zerolog.Logger) *Manager {
	return &Manager{
		sessions:    make(map[*websocket.Conn]*Session),
		api:         api,
		maxSessions: maxSessions,
		logger:      logger.With().Str("component", "session").Logger(),
	}
}

// SetObserver sets the observer given to sessions created afterwards
func (m *Manager) SetObserver(o Observer) {
	m.mu.Lock()
	m.observer = o
	m.mu.Unlock()
}

// GetOrCreate gets or creates the session for the given connection
func (m *Manager) GetOrCreate(conn *websocket.Conn, sendFunc SendFunc) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[conn]; ok {
		return s, nil
	}
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, ErrTooManySessions
	}

	s := NewSession(m.api, sendFunc, m.observer, m.logger)
	m.sessions[conn] = s
	if m.observer != nil {
		m.observer.SessionOpened()
	}
	m.logger.Debug().Str("session", s.ID()).Int("sessions", len(m.sessions)).Msg("created new client session")
	return s, nil
}

// Get returns the session for the given connection
func (m *Manager) Get(conn *websocket.Conn) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[conn]
}

// Remove removes and closes a session
func (m *Manager) Remove(conn *websocket.Conn) {
	m.mu.Lock()
	s, ok := m.sessions[conn]
	if ok {
		delete(m.sessions, conn)
	}
	observer := m.observer
	m.mu.Unlock()

	if s == nil {
		return
	}
	s.Close()
	if observer != nil {
		observer.SessionClosed()
	}
	m.logger.Debug().Str("session", s.ID()).Msg("removed client session")
}

// CloseAll closes all sessions
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[*websocket.Conn]*Session)
	observer := m.observer
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		if observer != nil {
			observer.SessionClosed()
		}
	}
	m.logger.Info().Int("sessions", len(sessions)).Msg("closed all sessions")
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SubscribedCount returns the number of sessions holding a friend subscription
func (m *Manager) SubscribedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, s := range m.sessions {
		if s.Subscribed() {
			total++
		}
	}
	return total
}
