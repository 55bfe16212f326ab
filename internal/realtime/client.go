package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/abdojat/fbcloneapi/pkg/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8 * 1024

	sendBufferSize = 256
)

var (
	ErrClientClosed   = errors.New("realtime: client closed")
	ErrSendBufferFull = errors.New("realtime: send buffer full")
)

// frame is the envelope used in both directions.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client sits between one websocket connection and the gateway.
type Client struct {
	id      string
	userID  uint
	gateway *Gateway
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	joined  atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(g *Gateway, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		id:      uuid.NewString(),
		userID:  userID,
		gateway: g,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		limiter: rate.NewLimiter(g.eventRate, g.eventBurst),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// UserID is the authenticated user behind the connection.
func (c *Client) UserID() uint { return c.userID }

// Emit queues an event for the write pump. It never blocks; when the buffer is full
// the frame is dropped.
func (c *Client) Emit(event string, payload any) error {
	data, err := json.Marshal(frame{Event: event, Data: payload})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		logger.Warn("websocket send buffer full, dropping frame",
			zap.String("conn", c.id), zap.Uint("userId", c.userID), zap.String("event", event))
		return ErrSendBufferFull
	}
}

// close sends a close frame and tears down the connection. WriteControl may run
// concurrently with the write pump.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.conn.Close()
	})
}

// readPump dispatches inbound frames until the connection fails, then unregisters.
func (c *Client) readPump() {
	defer func() {
		c.gateway.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			metrics.WebsocketEvents.WithLabelValues("any", "throttled").Inc()
			logger.Warn("websocket event rate exceeded", zap.String("conn", c.id), zap.Uint("userId", c.userID))
			continue
		}
		c.gateway.dispatch(c, message)
	}
}

// writePump sends queued frames and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
