package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/pokerforge/tourney/internal/tournament"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one websocket client. It is the broadcast.Subscriber the
// hub delivers to; its ID is the authenticated user id, so per-viewer
// redaction keys off it.
type Connection struct {
	conn    *websocket.Conn
	send    chan *Message
	logger  *log.Logger
	gateway *Gateway

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	onClose   func(*Connection)

	mu     sync.RWMutex
	userID string
	name   string
}

// NewConnection creates a connection wrapper. onClose runs once when the
// connection shuts down, after it has been unsubscribed from the hub.
func NewConnection(conn *websocket.Conn, logger *log.Logger, gateway *Gateway, onClose func(*Connection)) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:    conn,
		send:    make(chan *Message, 256),
		logger:  logger.WithPrefix("conn"),
		gateway: gateway,
		ctx:     ctx,
		cancel:  cancel,
		onClose: onClose,
	}
}

// Start begins handling the connection.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the connection down. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
		if id := c.UserID(); id != "" {
			c.gateway.hub.UnsubscribeAll(id)
		}
		if c.onClose != nil {
			c.onClose(c)
		}
	})
	return err
}

// ID implements broadcast.Subscriber.
func (c *Connection) ID() string { return c.UserID() }

// Deliver implements broadcast.Subscriber. It never blocks; a full send
// buffer closes the connection.
func (c *Connection) Deliver(event any) error {
	msg, ok := event.(*Message)
	if !ok {
		return nil
	}
	return c.SendMessage(msg)
}

// SendMessage queues a message for the write pump.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Send raced with Close; the channel is gone.
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection", "user", c.UserID())
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// UserID returns the authenticated user id, empty before auth.
func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Connection) setUser(userID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.name = name
}

func (c *Connection) displayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// readPump handles incoming messages from the client.
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage dispatches one inbound message.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received message", "type", msg.Type, "user", c.UserID())

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse auth data")
			return
		}
		c.handleAuth(data)

	case MessageTypeRegister:
		var data RegisterData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse register data")
			return
		}
		c.handleRegister(data)

	case MessageTypeUnregister:
		var data RegisterData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse unregister data")
			return
		}
		c.handleUnregister(data)

	case MessageTypeSubscribeTable:
		var data SubscribeTableData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse subscribe data")
			return
		}
		c.handleSubscribeTable(data)

	case MessageTypeUnsubscribeTable:
		var data SubscribeTableData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse unsubscribe data")
			return
		}
		if c.requireAuth() {
			c.gateway.UnsubscribeTable(data.TableID, c.UserID())
		}

	case MessageTypePlayerAction:
		var data PlayerActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse action data")
			return
		}
		c.handlePlayerAction(data)

	default:
		c.sendError("unknown_message_type", "unknown message type: "+string(msg.Type))
	}
}

// requireAuth sends an error and returns false when the connection has not
// authenticated yet.
func (c *Connection) requireAuth() bool {
	if c.UserID() == "" {
		c.sendError("not_authenticated", "must authenticate first")
		return false
	}
	return true
}

func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		c.logger.Error("failed to create error message", "error", err)
		return
	}
	_ = c.SendMessage(errorMsg)
}

// sendEngineError maps an engine error to its stable wire code.
func (c *Connection) sendEngineError(err error) {
	c.sendError(errorCode(err), err.Error())
}

func (c *Connection) handleAuth(data AuthData) {
	if data.UserID == "" {
		c.sendError("invalid_auth", "user_id required")
		return
	}
	name := data.Name
	if name == "" {
		name = data.UserID
	}
	c.setUser(data.UserID, name)

	response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
		Success: true,
		UserID:  data.UserID,
	})
	_ = c.SendMessage(response)
}

func (c *Connection) handleRegister(data RegisterData) {
	if !c.requireAuth() {
		return
	}
	player := tournament.Player{UserID: c.UserID(), Name: c.displayName()}
	if err := c.gateway.Register(c.ctx, data.TournamentID, player, c); err != nil {
		c.sendEngineError(err)
		return
	}
	c.logger.Info("registered", "user", c.UserID(), "tournament", data.TournamentID)
}

func (c *Connection) handleUnregister(data RegisterData) {
	if !c.requireAuth() {
		return
	}
	if err := c.gateway.Unregister(c.ctx, data.TournamentID, c.UserID()); err != nil {
		c.sendEngineError(err)
	}
}

func (c *Connection) handleSubscribeTable(data SubscribeTableData) {
	if !c.requireAuth() {
		return
	}
	if err := c.gateway.SubscribeTable(c.ctx, data.TableID, c); err != nil {
		c.sendEngineError(err)
	}
}

func (c *Connection) handlePlayerAction(data PlayerActionData) {
	if !c.requireAuth() {
		return
	}
	action, ok := parseWireAction(data.Action)
	if !ok {
		c.sendError("invalid_action", "unknown action: "+data.Action)
		return
	}
	if err := c.gateway.SubmitAction(c.ctx, data.TableID, c.UserID(), action, data.Amount); err != nil {
		c.sendEngineError(err)
	}
	// No direct reply; the table broadcasts action-applied.
}
