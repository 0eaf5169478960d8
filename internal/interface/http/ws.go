package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yanqian/chat-assistant/internal/domain/chat"
	apperrors "github.com/yanqian/chat-assistant/pkg/errors"
)

// ChannelFactory builds the per-session resolution channel. The deliver
// callback receives finished answer frames for this session.
type ChannelFactory func(deliver func(frame []byte)) chat.Channel

// WSGateway upgrades chat connections and pumps frames between the
// websocket and the session manager.
type WSGateway struct {
	manager        *chat.Manager
	channels       ChannelFactory
	pingInterval   time.Duration
	maxMessageSize int64
	upgrader       websocket.Upgrader
	logger         *slog.Logger
}

// NewWSGateway constructs the gateway.
func NewWSGateway(manager *chat.Manager, channels ChannelFactory, pingInterval time.Duration, maxMessageSize int64, logger *slog.Logger) *WSGateway {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if maxMessageSize <= 0 {
		maxMessageSize = 64 << 10
	}
	return &WSGateway{
		manager:        manager,
		channels:       channels,
		pingInterval:   pingInterval,
		maxMessageSize: maxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// origin policy is enforced by the CORS middleware upstream
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "http.ws"),
	}
}

// Chat handles GET /api/chat/ws/:userId.
func (g *WSGateway) Chat(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	if userID == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "userId cannot be empty", nil))
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "userId", userID, "error", err)
		return
	}

	outbound := make(chan []byte, 16)
	done := make(chan struct{})

	var session *chat.Session
	deliver := func(frame []byte) {
		if err := g.manager.OnInbound(session, frame); err != nil {
			g.logger.Debug("answer arrived after session close", "userId", userID)
			return
		}
		select {
		case outbound <- frame:
		case <-done:
		}
	}
	session = g.manager.Register(userID, g.channels(deliver))

	go g.writePump(conn, userID, outbound, done)
	g.readPump(c, conn, session, userID)

	if err := g.manager.Close(session); err != nil && !apperrors.IsCode(err, "channel_closed") {
		g.logger.Warn("session close failed", "userId", userID, "error", err)
	}
	close(done)
	conn.Close()
}

// readPump consumes client frames until the connection drops. Only
// question frames are accepted from the client side.
func (g *WSGateway) readPump(c *gin.Context, conn *websocket.Conn, session *chat.Session, userID string) {
	pongWait := 2 * g.pingInterval
	conn.SetReadLimit(g.maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Warn("websocket read failed", "userId", userID, "error", err)
			}
			return
		}

		decoded, err := chat.DecodeInbound(raw)
		if err != nil {
			g.logger.Warn("dropping malformed client frame", "code", "invalid_message", "userId", userID, "error", err)
			continue
		}
		question, ok := decoded.(chat.InboundQuestion)
		if !ok {
			g.logger.Debug("ignoring non-question client frame", "userId", userID)
			continue
		}

		if err := g.manager.SubmitQuestion(c.Request.Context(), session, question.Question); err != nil {
			if apperrors.IsCode(err, "channel_closed") {
				return
			}
			g.logger.Warn("question submission failed", "userId", userID, "error", err)
		}
	}
}

// writePump serializes all writes to the connection and keeps it alive
// with periodic pings.
func (g *WSGateway) writePump(conn *websocket.Conn, userID string, outbound <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(g.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				g.logger.Warn("websocket write failed", "userId", userID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
