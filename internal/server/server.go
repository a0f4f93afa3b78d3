package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/rs/zerolog"

	"presencegofer/internal/chat"
	"presencegofer/internal/config"
	"presencegofer/internal/metrics"
	"presencegofer/internal/session"
	"presencegofer/internal/ws"
)

const maxGoroutines = 10000

// Server represents the main server
type Server struct {
	cfg        *config.Config
	hub        *chat.Hub
	metrics    *metrics.Metrics
	sessions   *session.Manager
	wsHandler  *ws.Handler
	health     healthcheck.Handler
	mux        *http.ServeMux
	httpServer *http.Server
	listener   net.Listener
	stopping   atomic.Bool
	logger     zerolog.Logger
}

// New creates a new Server
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	hub, err := chat.NewHub(cfg.StatusCacheSize, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create presence hub: %w", err)
	}
	hub.SetMaxWatchers(cfg.MaxWatchersPerFriend)

	m := metrics.New()
	hub.SetOnPublish(m.StatusPublished)

	sessions := session.NewManager(hub, cfg.MaxSessions, logger)
	sessions.SetObserver(m)

	s := &Server{
		cfg:       cfg,
		hub:       hub,
		metrics:   m,
		sessions:  sessions,
		wsHandler: ws.NewHandler(sessions, hub, cfg.SendBufferSize, logger),
		health:    healthcheck.NewHandler(),
		mux:       http.NewServeMux(),
		logger:    logger.With().Str("component", "server").Logger(),
	}

	s.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	s.health.AddReadinessCheck("accepting", s.acceptingCheck)
	s.health.AddReadinessCheck("session-capacity", s.capacityCheck)

	s.mux.Handle("/ws", s.wsHandler)
	s.mux.HandleFunc("/live", s.health.LiveEndpoint)
	s.mux.HandleFunc("/ready", s.health.ReadyEndpoint)
	if cfg.MetricsEnabled {
		s.mux.Handle("/metrics", m.Handler())
		s.logger.Info().Msg("metrics enabled")
	} else {
		s.logger.Info().Msg("metrics disabled")
	}

	return s, nil
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts listening and serving in the background
func (s *Server) Start() error {
	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:     s.mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("starting server")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("server error")
		}
	}()

	s.logger.Info().
		Str("ws", fmt.Sprintf("ws://%s/ws", ln.Addr())).
		Str("live", fmt.Sprintf("http://%s/live", ln.Addr())).
		Str("ready", fmt.Sprintf("http://%s/ready", ln.Addr())).
		Bool("metrics", s.cfg.MetricsEnabled).
		Msg("endpoint available")

	return nil
}

// Addr returns the address the server listens on, or "" before Start
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server...")
	s.stopping.Store(true)

	// WebSocket connections are hijacked and not closed by Shutdown
	s.wsHandler.CloseAll()
	s.sessions.CloseAll()

	var httpErr error
	if s.httpServer != nil {
		httpErr = s.httpServer.Shutdown(ctx)
	}

	s.hub.Close()

	if httpErr != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", httpErr)
	}

	s.logger.Info().Msg("server stopped")
	return nil
}

// Hub returns the presence hub
func (s *Server) Hub() *chat.Hub {
	return s.hub
}

// Sessions returns the session manager
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Metrics returns the service collectors
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *Server) acceptingCheck() error {
	if s.stopping.Load() {
		return errors.New("server is shutting down")
	}
	return nil
}

func (s *Server) capacityCheck() error {
	if s.cfg.MaxSessions > 0 && s.sessions.Count() >= s.cfg.MaxSessions {
		return fmt.Errorf("session limit %d reached", s.cfg.MaxSessions)
	}
	return nil
}
