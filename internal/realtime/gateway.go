// Package realtime is the websocket gateway: presence, live chat and typing indicators.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/presence"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/abdojat/fbcloneapi/pkg/apperrors"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/abdojat/fbcloneapi/pkg/metrics"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	EventJoin           = "join"
	EventGetOnlineUsers = "getOnlineUsers"
	EventSendMessage    = "sendMessage"
	EventMarkAsRead     = "markAsRead"
	EventOnlineUsers    = "onlineUsers"

	eventTimeout = 10 * time.Second
)

// TokenVerifier authenticates the token passed on the upgrade request.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JwtCustomClaims, error)
}

// Chat is the part of the chat service driven by socket events.
type Chat interface {
	Send(ctx context.Context, senderID, recipientID uint, text string, ts time.Time) (*models.Message, error)
	MarkThreadRead(ctx context.Context, senderID, recipientID uint) (int64, error)
	RelayTyping(event string, senderID, recipientID uint)
}

type Options struct {
	EventsPerSecond float64
	EventBurst      int
}

// Gateway owns every open client and the presence registry they join.
type Gateway struct {
	registry *presence.Registry
	chat     Chat
	tokens   TokenVerifier
	upgrader websocket.Upgrader

	eventRate  rate.Limit
	eventBurst int

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewGateway(registry *presence.Registry, chat Chat, tokens TokenVerifier, opts Options) *Gateway {
	if opts.EventsPerSecond <= 0 {
		opts.EventsPerSecond = 20
	}
	if opts.EventBurst <= 0 {
		opts.EventBurst = 40
	}
	return &Gateway{
		registry: registry,
		chat:     chat,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		eventRate:  rate.Limit(opts.EventsPerSecond),
		eventBurst: opts.EventBurst,
		clients:    make(map[*Client]struct{}),
	}
}

// Handle upgrades GET /ws?token=<jwt>.
func (g *Gateway) Handle(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return apperrors.Auth("missing token")
	}
	claims, err := g.tokens.Verify(c.Request().Context(), token)
	if err != nil {
		return err
	}

	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already replied
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}

	client := newClient(g, conn, claims.UserID)
	g.mu.Lock()
	g.clients[client] = struct{}{}
	g.mu.Unlock()
	metrics.WebsocketConnections.Inc()
	logger.Debug("websocket connected", zap.String("conn", client.id), zap.Uint("userId", client.userID))

	go client.writePump()
	go client.readPump()
	return nil
}

func (g *Gateway) unregister(c *Client) {
	g.mu.Lock()
	_, ok := g.clients[c]
	delete(g.clients, c)
	g.mu.Unlock()
	if !ok {
		return
	}
	metrics.WebsocketConnections.Dec()

	if userID, removed := g.registry.Remove(c); removed {
		logger.Debug("user went offline", zap.Uint("userId", userID))
		g.broadcastOnline()
	}
}

// broadcastOnline sends the full online snapshot to every connected client.
func (g *Gateway) broadcastOnline() {
	ids := g.registry.OnlineIDs()

	g.mu.RLock()
	targets := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		targets = append(targets, c)
	}
	g.mu.RUnlock()

	for _, c := range targets {
		_ = c.Emit(EventOnlineUsers, ids)
	}
}

// Shutdown closes every client. Their read pumps unregister them.
func (g *Gateway) Shutdown() {
	g.mu.RLock()
	targets := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		targets = append(targets, c)
	}
	g.mu.RUnlock()

	for _, c := range targets {
		c.close()
	}
}

func (g *Gateway) dispatch(c *Client, raw []byte) {
	if !gjson.ValidBytes(raw) {
		metrics.WebsocketEvents.WithLabelValues("invalid", "rejected").Inc()
		logger.Warn("websocket frame is not valid json", zap.String("conn", c.id))
		return
	}
	envelope := gjson.ParseBytes(raw)
	event := envelope.Get("event").String()
	data := envelope.Get("data")

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var err error
	switch event {
	case EventJoin:
		err = g.join(c, data)
	case EventGetOnlineUsers:
		err = c.Emit(EventOnlineUsers, g.registry.OnlineIDs())
	case EventSendMessage:
		err = g.sendMessage(ctx, c, data)
	case EventMarkAsRead:
		err = g.markAsRead(ctx, c, data)
	case services.EventTyping, services.EventStopTyping:
		err = g.typing(c, event, data)
	default:
		metrics.WebsocketEvents.WithLabelValues("unknown", "rejected").Inc()
		logger.Debug("unknown websocket event", zap.String("event", event), zap.String("conn", c.id))
		return
	}

	if err != nil {
		metrics.WebsocketEvents.WithLabelValues(event, "error").Inc()
		logger.Warn("websocket event failed",
			zap.String("event", event), zap.String("conn", c.id), zap.Uint("userId", c.userID), zap.Error(err))
		return
	}
	metrics.WebsocketEvents.WithLabelValues(event, "ok").Inc()
}

// userIDFrom accepts a bare id, a numeric string or an object carrying userId.
func userIDFrom(data gjson.Result) uint {
	if data.IsObject() {
		return uint(data.Get("userId").Uint())
	}
	return uint(data.Uint())
}

func (g *Gateway) join(c *Client, data gjson.Result) error {
	userID := userIDFrom(data)
	if userID == 0 {
		return apperrors.Validation("join requires a user id")
	}
	if userID != c.userID {
		return apperrors.Forbidden("cannot join as another user")
	}

	c.joined.Store(true)
	g.registry.SetOnline(userID, c)
	g.broadcastOnline()
	return nil
}

// requireJoined rejects events from connections that never joined. A connection
// superseded by a newer tab of the same user keeps sending; it only stops receiving
// live pushes.
func (g *Gateway) requireJoined(c *Client) error {
	if !c.joined.Load() {
		return apperrors.Auth("join before sending events")
	}
	return nil
}

func (g *Gateway) sendMessage(ctx context.Context, c *Client, data gjson.Result) error {
	if err := g.requireJoined(c); err != nil {
		return err
	}
	if sender := data.Get("sender"); sender.Exists() && uint(sender.Uint()) != c.userID {
		logger.Warn("overriding sender on socket message", zap.Uint("claimed", uint(sender.Uint())), zap.Uint("userId", c.userID))
	}

	var ts time.Time
	switch raw := data.Get("timestamp"); raw.Type {
	case gjson.Number:
		ts = time.UnixMilli(raw.Int())
	case gjson.String:
		ts = raw.Time()
	}

	_, err := g.chat.Send(ctx, c.userID, uint(data.Get("recipient").Uint()), data.Get("text").String(), ts)
	return err
}

// markAsRead is sent by the reader; the recipient is always the connection's user.
func (g *Gateway) markAsRead(ctx context.Context, c *Client, data gjson.Result) error {
	if err := g.requireJoined(c); err != nil {
		return err
	}
	senderID := uint(data.Get("sender").Uint())
	if senderID == 0 {
		return apperrors.Validation("markAsRead requires a sender")
	}
	_, err := g.chat.MarkThreadRead(ctx, senderID, c.userID)
	return err
}

func (g *Gateway) typing(c *Client, event string, data gjson.Result) error {
	if err := g.requireJoined(c); err != nil {
		return err
	}
	recipientID := uint(data.Get("recipient").Uint())
	if recipientID == 0 {
		return apperrors.Validation(event + " requires a recipient")
	}
	g.chat.RelayTyping(event, c.userID, recipientID)
	return nil
}
