// Package client implements multiplayer.Store against a remote record-store
// relay.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/chukrum/internal/auth"
	"github.com/lox/chukrum/internal/multiplayer"
	"github.com/lox/chukrum/internal/server" // Reuse message types
)

const (
	DefaultRequestTimeout = 10 * time.Second

	subscriberBuffer = 16
	writeWait        = 10 * time.Second
	pingPeriod       = 54 * time.Second
)

var ErrClosed = errors.New("client closed")

// Option configures a Store
type Option func(*Store)

// WithLogger sets the client logger
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.logger = logger.WithPrefix("client") }
}

// WithRequestTimeout bounds how long a request waits for its reply
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithDialer replaces websocket.DefaultDialer
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Store) { s.dialer = d }
}

// WithToken authenticates to a relay that requires a token
func WithToken(token string) Option {
	return func(s *Store) { s.header = auth.BearerHeader(token) }
}

// Store is a multiplayer.Store served by a relay over one WebSocket
type Store struct {
	serverURL string
	conn      *websocket.Conn
	dialer    *websocket.Dialer
	header    http.Header
	send      chan *server.Message
	logger    *log.Logger
	timeout   time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	readDone  chan struct{}
	nextID    atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan *server.Message
	subs    map[string]map[chan *multiplayer.Record]struct{}
}

// Dial connects to the relay at serverURL. http and https URLs are
// converted, and a URL without a path gets /ws.
func Dial(ctx context.Context, serverURL string, opts ...Option) (*Store, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("invalid server URL %q: unsupported scheme", serverURL)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		serverURL: u.String(),
		dialer:    websocket.DefaultDialer,
		send:      make(chan *server.Message, 256),
		logger:    log.New(io.Discard),
		timeout:   DefaultRequestTimeout,
		ctx:       runCtx,
		cancel:    cancel,
		readDone:  make(chan struct{}),
		pending:   make(map[string]chan *server.Message),
		subs:      make(map[string]map[chan *multiplayer.Record]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Info("Connecting to server", "url", s.serverURL)
	conn, _, err := s.dialer.DialContext(ctx, s.serverURL, s.header)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	s.conn = conn

	go s.readPump()
	go s.writePump()

	s.logger.Info("Connected to server")
	return s, nil
}

// Close disconnects from the relay. Pending requests fail and every
// subscription channel is closed.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.readDone
		s.logger.Info("Disconnected from server")
	})
	return nil
}

// Create implements multiplayer.Store. The relay assigns the id, version
// and creation time, which are copied back into r.
func (s *Store) Create(ctx context.Context, r *multiplayer.Record) error {
	reply, err := s.request(ctx, server.MessageTypeCreate, server.CreateData{Record: r})
	if err != nil {
		return err
	}
	rec, err := recordOf(reply)
	if err != nil {
		return err
	}
	r.ID, r.Version, r.CreatedAt = rec.ID, rec.Version, rec.CreatedAt
	return nil
}

// Get implements multiplayer.Store
func (s *Store) Get(ctx context.Context, id string) (*multiplayer.Record, error) {
	reply, err := s.request(ctx, server.MessageTypeGet, server.IDData{ID: id})
	if err != nil {
		return nil, err
	}
	return recordOf(reply)
}

// Update implements multiplayer.Store
func (s *Store) Update(ctx context.Context, id string, p multiplayer.Patch, ifVersion int64) (*multiplayer.Record, error) {
	reply, err := s.request(ctx, server.MessageTypeUpdate, server.UpdateData{ID: id, Patch: p, IfVersion: ifVersion})
	if err != nil {
		return nil, err
	}
	return recordOf(reply)
}

// Delete implements multiplayer.Store
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.request(ctx, server.MessageTypeDelete, server.IDData{ID: id})
	return err
}

// Subscribe implements multiplayer.Store. Every local subscriber of a
// record shares one relay subscription.
func (s *Store) Subscribe(ctx context.Context, id string) (<-chan *multiplayer.Record, error) {
	ch := make(chan *multiplayer.Record, subscriberBuffer)
	s.mu.Lock()
	if s.subs[id] == nil {
		s.subs[id] = make(map[chan *multiplayer.Record]struct{})
	}
	s.subs[id][ch] = struct{}{}
	s.mu.Unlock()

	// Subscribing again makes the relay resend the current record, which
	// is the first value every subscriber expects.
	if _, err := s.request(ctx, server.MessageTypeSubscribe, server.IDData{ID: id}); err != nil {
		s.drop(id, ch)
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
		}
		if last := s.drop(id, ch); last && s.ctx.Err() == nil {
			s.unsubscribe(id)
		}
	}()
	return ch, nil
}

// drop removes and closes ch, reporting whether it was the record's last
// subscriber
func (s *Store) drop(id string, ch chan *multiplayer.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subs[id]
	if _, ok := subs[ch]; !ok {
		return false
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(s.subs, id)
		return true
	}
	return false
}

func (s *Store) unsubscribe(id string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	if _, err := s.request(ctx, server.MessageTypeUnsubscribe, server.IDData{ID: id}); err != nil {
		s.logger.Debug("Unsubscribe failed", "id", id, "error", err)
	}
}

// request sends one message and waits for the reply carrying its id
func (s *Store) request(ctx context.Context, typ server.MessageType, data any) (*server.Message, error) {
	msg, err := server.NewMessage(typ, data)
	if err != nil {
		return nil, err
	}
	msg.RequestID = strconv.FormatUint(s.nextID.Add(1), 10)

	reply := make(chan *server.Message, 1)
	s.mu.Lock()
	s.pending[msg.RequestID] = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, msg.RequestID)
		s.mu.Unlock()
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case s.send <- msg:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, ErrClosed
	}

	select {
	case r := <-reply:
		if r.Type == server.MessageTypeError {
			return nil, errorOf(r)
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("timeout waiting for %s reply", typ)
	case <-s.readDone:
		return nil, ErrClosed
	}
}

// readPump handles incoming messages from the server
func (s *Store) readPump() {
	defer func() {
		s.cancel()
		s.mu.Lock()
		for id, subs := range s.subs {
			for ch := range subs {
				close(ch)
			}
			delete(s.subs, id)
		}
		s.mu.Unlock()
		close(s.readDone)
	}()

	for {
		var msg server.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if s.ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		s.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the server
func (s *Store) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case message := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(message); err != nil {
				s.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage routes replies to their request and pushes to subscribers
func (s *Store) handleMessage(msg *server.Message) {
	s.logger.Debug("Received message", "type", msg.Type, "request", msg.RequestID)

	if msg.RequestID != "" {
		s.mu.Lock()
		reply, ok := s.pending[msg.RequestID]
		s.mu.Unlock()
		if ok {
			reply <- msg
		}
		return
	}

	switch msg.Type {
	case server.MessageTypeRecordChanged:
		rec, err := recordOf(msg)
		if err != nil {
			s.logger.Warn("Bad record push", "error", err)
			return
		}
		s.mu.Lock()
		for ch := range s.subs[rec.ID] {
			offer(ch, rec.Clone())
		}
		s.mu.Unlock()

	case server.MessageTypeSubscriptionClosed:
		var data server.IDData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		s.mu.Lock()
		for ch := range s.subs[data.ID] {
			close(ch)
		}
		delete(s.subs, data.ID)
		s.mu.Unlock()

	default:
		s.logger.Debug("No handler for message type", "type", msg.Type)
	}
}

// offer delivers r without blocking, dropping the oldest pending record
func offer(ch chan *multiplayer.Record, r *multiplayer.Record) {
	for {
		select {
		case ch <- r:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func recordOf(msg *server.Message) (*multiplayer.Record, error) {
	var data server.RecordData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	if data.Record == nil {
		return nil, fmt.Errorf("%s without a record", msg.Type)
	}
	return data.Record, nil
}

// errorOf maps a relay error back to the store's sentinel errors
func errorOf(msg *server.Message) error {
	var data server.ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return fmt.Errorf("decode error reply: %w", err)
	}
	switch data.Code {
	case server.CodeNotFound:
		return fmt.Errorf("%w: %s", multiplayer.ErrNotFound, data.Message)
	case server.CodeVersionConflict:
		return fmt.Errorf("%w: %s", multiplayer.ErrVersionConflict, data.Message)
	case server.CodeExists:
		return fmt.Errorf("%w: %s", multiplayer.ErrExists, data.Message)
	default:
		return fmt.Errorf("relay %s: %s", data.Code, data.Message)
	}
}

var _ multiplayer.Store = (*Store)(nil)
