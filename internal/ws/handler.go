package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"presencegofer/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// Handler handles WebSocket connections
type Handler struct {
	sessions       *session.Manager
	publisher      Publisher
	sendBufferSize int
	logger         zerolog.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
}

// NewHandler creates a new WebSocket handler. publisher may be nil, in which
// case presence_set is rejected.
func NewHandler(sessions *session.Manager, publisher Publisher, sendBufferSize int, logger zerolog.Logger) *Handler {
	if sendBufferSize <= 0 {
		sendBufferSize = defaultSendBufferSize
	}
	return &Handler{
		sessions:       sessions,
		publisher:      publisher,
		sendBufferSize: sendBufferSize,
		logger:         logger.With().Str("component", "ws").Logger(),
		clients:        make(map[*Client]struct{}),
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	logger := h.logger.With().Str("remoteAddr", r.RemoteAddr).Logger()
	logger.Info().Msg("new WebSocket connection")

	client := NewClient(conn, h.sessions, h.publisher, h.sendBufferSize, logger)
	if !h.track(client) {
		client.Close()
		return
	}
	defer h.untrack(client)

	client.Run(r.Context())
}

// CloseAll closes every open connection and refuses new ones
func (h *Handler) CloseAll() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	h.logger.Info().Int("clients", len(clients)).Msg("closed all connections")
}

// ClientCount returns the number of open connections
func (h *Handler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Handler) track(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Handler) untrack(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}
