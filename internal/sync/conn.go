package sync

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alexanderramin/gridboard/internal/cache"
	"github.com/alexanderramin/gridboard/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 64
)

// Conn is one live websocket connection bound to an authenticated user.
// A single read loop processes messages strictly in arrival order; the
// write pump drains a buffered outbound channel so a slow consumer never
// blocks a broadcast.
type Conn struct {
	ID     string
	UserID string

	ws     *cache.Workspace
	socket *websocket.Conn
	hub    *Hub
	logger *slog.Logger

	send      chan protocol.Envelope
	closeOnce gosync.Once

	mu     gosync.Mutex
	gridID string
	closed bool
}

// NewConn wraps an upgraded websocket for the user, sharing the user's
// workspace.
func NewConn(socket *websocket.Conn, ws *cache.Workspace, hub *Hub, userID string, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Conn{
		ID:     uuid.New().String(),
		UserID: userID,
		ws:     ws,
		socket: socket,
		hub:    hub,
		send:   make(chan protocol.Envelope, sendBuffer),
	}
	c.logger = logger.With("conn_id", c.ID, "user_id", userID)
	return c
}

// Grid returns the grid this connection is currently viewing, empty
// before the first switch_grid.
func (c *Conn) Grid() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gridID
}

// SetGrid records the connection's grid subscription.
func (c *Conn) SetGrid(gridID string) {
	c.mu.Lock()
	c.gridID = gridID
	c.mu.Unlock()
}

// Send queues an envelope for delivery. A send racing Close is dropped —
// a hub broadcast can reach a connection mid-disconnect. A full buffer
// means the consumer is too slow to keep a consistent view; the
// connection is closed and the client reconnects into a fresh
// full_state.
func (c *Conn) Send(env protocol.Envelope) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- env:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		c.logger.Warn("outbound buffer full, dropping connection")
		c.Close()
	}
}

// Close shuts the connection down once; the write pump exits when the
// send channel closes. The closed flag is flipped under the mutex before
// the channel closes, so no Send can be mid-flight on it.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
	})
}

// Run services the connection until it closes: write pump in the
// background, read loop in the foreground. The in-flight message always
// completes before a disconnect tears state down.
func (c *Conn) Run(ctx context.Context, svc *Service) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	go c.writePump()
	c.readPump(ctx, svc)
	c.Close()
}

func (c *Conn) readPump(ctx context.Context, svc *Service) {
	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env protocol.Envelope
		if err := c.socket.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}
		messagesReceived.WithLabelValues(string(env.Type)).Inc()
		svc.Handle(ctx, c, env)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(env); err != nil {
				c.logger.Warn("write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
