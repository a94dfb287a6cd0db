package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/chukrum/internal/auth"
	"github.com/lox/chukrum/internal/multiplayer"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Server relays shared game records between clients over WebSocket
type Server struct {
	addr        string
	store       multiplayer.Store
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	runOnce     sync.Once
	mux         *http.ServeMux
	validator   auth.Validator
	failOpen    bool
}

// Option configures a Server
type Option func(*Server)

// WithValidator requires clients to present a token accepted by v. With
// failOpen, connections are allowed while the validator is unavailable.
func WithValidator(v auth.Validator, failOpen bool) Option {
	return func(s *Server) {
		s.validator = v
		s.failOpen = failOpen
	}
}

// NewServer creates a relay serving store on addr
func NewServer(addr string, store multiplayer.Store, logger *log.Logger, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr:  addr,
		store: store,
		upgrader: websocket.Upgrader{
			// Clients are game processes, not browsers
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
		mux:         http.NewServeMux(),
		validator:   auth.OpenValidator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

// Handler returns the relay's HTTP handler and starts the connection hub
func (s *Server) Handler() http.Handler {
	s.runOnce.Do(func() { go s.run() })
	return s.mux
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting WebSocket server", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", s.addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down WebSocket server")
		_ = s.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Stop closes every connection and stops the hub
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	return nil
}

// ConnectionCount returns the number of connected clients
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// run handles connection lifecycle
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client connected", "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.connections[conn]; ok {
				delete(s.connections, conn)
				_ = conn.Close()
			}
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client disconnected", "total", total)

		case <-s.ctx.Done():
			return
		}
	}
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.store, s.logger)
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		_ = client.Close()
		return
	}
	client.Start()

	go func() {
		<-client.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

// authorize validates the request's token, writing an error response and
// returning false when the connection must be refused
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	err := s.validator.Validate(r.Context(), auth.TokenFromRequest(r))
	switch {
	case err == nil:
		return true
	case errors.Is(err, auth.ErrInvalidToken):
		s.logger.Warn("Rejected client with invalid token", "remote", r.RemoteAddr)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return false
	case s.failOpen:
		s.logger.Warn("Auth unavailable, allowing connection", "error", err)
		return true
	default:
		s.logger.Error("Auth unavailable, rejecting connection", "error", err)
		http.Error(w, "authentication unavailable", http.StatusServiceUnavailable)
		return false
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}
