package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/chukrum/internal/multiplayer"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	store     multiplayer.Store
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu   sync.Mutex
	subs map[string]context.CancelFunc
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, store multiplayer.Store, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 256),
		store:  store,
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]context.CancelFunc),
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection has shut down
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection and ends its subscriptions
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// Subscriptions returns the number of records the client follows
func (c *Connection) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. A record with all 52
	// cards and a chat log fits comfortably.
	maxMessageSize = 256 << 10
)

var ErrConnectionClosed = errors.New("connection closed")

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage serves one request. The relay stores and forwards
// records; it never looks inside them.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "request", msg.RequestID)

	switch msg.Type {
	case MessageTypeCreate:
		var data CreateData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Record == nil {
			c.sendError(msg.RequestID, CodeInvalidMessage, "Failed to parse create data")
			return
		}
		if err := c.store.Create(c.ctx, data.Record); err != nil {
			c.sendStoreError(msg.RequestID, err)
			return
		}
		c.reply(msg.RequestID, MessageTypeRecord, RecordData{Record: data.Record})

	case MessageTypeGet:
		data, ok := c.parseID(msg)
		if !ok {
			return
		}
		rec, err := c.store.Get(c.ctx, data.ID)
		if err != nil {
			c.sendStoreError(msg.RequestID, err)
			return
		}
		c.reply(msg.RequestID, MessageTypeRecord, RecordData{Record: rec})

	case MessageTypeUpdate:
		var data UpdateData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.ID == "" {
			c.sendError(msg.RequestID, CodeInvalidMessage, "Failed to parse update data")
			return
		}
		rec, err := c.store.Update(c.ctx, data.ID, data.Patch, data.IfVersion)
		if err != nil {
			c.sendStoreError(msg.RequestID, err)
			return
		}
		c.reply(msg.RequestID, MessageTypeRecord, RecordData{Record: rec})

	case MessageTypeDelete:
		data, ok := c.parseID(msg)
		if !ok {
			return
		}
		if err := c.store.Delete(c.ctx, data.ID); err != nil {
			c.sendStoreError(msg.RequestID, err)
			return
		}
		c.reply(msg.RequestID, MessageTypeOK, data)

	case MessageTypeSubscribe:
		data, ok := c.parseID(msg)
		if !ok {
			return
		}
		c.handleSubscribe(msg.RequestID, data.ID)

	case MessageTypeUnsubscribe:
		data, ok := c.parseID(msg)
		if !ok {
			return
		}
		c.mu.Lock()
		if cancel, ok := c.subs[data.ID]; ok {
			cancel()
			delete(c.subs, data.ID)
		}
		c.mu.Unlock()
		c.reply(msg.RequestID, MessageTypeOK, data)

	default:
		c.sendError(msg.RequestID, CodeUnknownType, "Unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) parseID(msg *Message) (IDData, bool) {
	var data IDData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.ID == "" {
		c.sendError(msg.RequestID, CodeInvalidMessage, "Failed to parse "+msg.Type.String()+" data")
		return IDData{}, false
	}
	return data, true
}

// handleSubscribe forwards every version of a record to the client. A
// second subscribe to the same record replaces the first, which resends
// the current record.
func (c *Connection) handleSubscribe(requestID, id string) {
	ctx, cancel := context.WithCancel(c.ctx)
	ch, err := c.store.Subscribe(ctx, id)
	if err != nil {
		cancel()
		c.sendStoreError(requestID, err)
		return
	}

	c.mu.Lock()
	if prev, ok := c.subs[id]; ok {
		prev()
	}
	c.subs[id] = cancel
	c.mu.Unlock()

	c.reply(requestID, MessageTypeOK, IDData{ID: id})
	go c.forward(ctx, id, ch)
}

func (c *Connection) forward(ctx context.Context, id string, ch <-chan *multiplayer.Record) {
	for rec := range ch {
		if ctx.Err() != nil {
			continue
		}
		msg, err := NewMessage(MessageTypeRecordChanged, RecordData{Record: rec})
		if err != nil {
			c.logger.Error("Failed to create record message", "error", err)
			continue
		}
		if err := c.SendMessage(msg); err != nil {
			return
		}
	}
	// A closed channel with a live context means the record is gone
	if ctx.Err() == nil {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
		if msg, err := NewMessage(MessageTypeSubscriptionClosed, IDData{ID: id}); err == nil {
			_ = c.SendMessage(msg)
		}
	}
}

func (c *Connection) reply(requestID string, messageType MessageType, data any) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		c.logger.Error("Failed to create reply", "type", messageType, "error", err)
		c.sendError(requestID, CodeStoreError, err.Error())
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}

func (c *Connection) sendStoreError(requestID string, err error) {
	c.logger.Debug("Store request failed", "request", requestID, "error", err)
	c.sendError(requestID, ErrorCode(err), err.Error())
}

// sendError sends an error message to the client
func (c *Connection) sendError(requestID, code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	errorMsg.RequestID = requestID

	_ = c.SendMessage(errorMsg)
}
