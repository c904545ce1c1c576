package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options bounds the lifecycle of a live connection.
type Options struct {
	HandshakeTimeout time.Duration
	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// Send pings to peer with this period. Zero derives it from PongWait.
	PingPeriod time.Duration
	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// Capacity of the outbound queue.
	SendBuffer int
	// Maximum message size allowed from peer.
	MaxMessageSize int64
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
		SendBuffer:       64,
		MaxMessageSize:   4096,
	}
}

// pingPeriod must stay below PongWait or healthy peers time out.
func (o Options) pingPeriod() time.Duration {
	if o.PingPeriod > 0 && o.PingPeriod < o.PongWait {
		return o.PingPeriod
	}
	return (o.PongWait * 9) / 10
}

// Client is a live websocket connection. The write pump is the only writer
// to the socket.
type Client struct {
	userID      string
	token       string
	connectedAt time.Time

	hub  *Hub
	conn *websocket.Conn
	opts Options
	log  *zap.Logger

	send      chan Notification
	done      chan struct{}
	closeOnce sync.Once
}

var _ Conn = (*Client)(nil)

// NewClient wraps an upgraded socket. An empty userID makes an anonymous
// client that is never registered.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, opts Options, log *zap.Logger) *Client {
	return &Client{
		userID:      userID,
		token:       uuid.NewString(),
		connectedAt: time.Now(),
		hub:         hub,
		conn:        conn,
		opts:        opts,
		log:         log.With(zap.String("user_id", userID)),
		send:        make(chan Notification, opts.SendBuffer),
		done:        make(chan struct{}),
	}
}

func (c *Client) UserID() string { return c.userID }

func (c *Client) Token() string { return c.token }

// Push enqueues n without blocking. It reports false when the queue is full
// or the client is closed.
func (c *Client) Push(n Notification) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- n:
		return true
	default:
		return false
	}
}

// Close asks the write pump to send a close frame and shut the socket.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Run registers the client (unless anonymous), pumps until the peer goes
// away and then unregisters it. It blocks for the life of the connection.
func (c *Client) Run() {
	if c.userID != "" {
		prev, err := c.hub.Join(c)
		if err != nil {
			c.log.Warn("register failed", zap.Error(err))
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(c.opts.WriteWait))
			_ = c.conn.Close()
			return
		}
		if prev != nil {
			prev.Close()
		}
	}

	go c.writePump()
	reason := c.readPump()

	if c.userID != "" {
		c.hub.Leave(c.userID, c.token, reason)
	}
	c.Close()
	c.log.Debug("connection finished",
		zap.String("reason", reason),
		zap.Duration("duration", time.Since(c.connectedAt)))
}

// readPump discards inbound frames; it exists to process control frames
// and detect disconnects.
func (c *Client) readPump() string {
	defer func() { _ = c.conn.Close() }()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			select {
			case <-c.done:
				return "closed"
			default:
			}
			return "disconnected"
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	var gate presenceGate
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case n := <-c.send:
			if !gate.admit(n) {
				continue
			}
			data, err := json.Marshal(n)
			if err != nil {
				c.log.Error("marshal notification", zap.String("event", n.Event), zap.Error(err))
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
