package websocket

import (
	"context"
	"net/http"

	"gamebus/internal/auth"
	"gamebus/internal/transport/httpdto"
	"gamebus/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Subscriptions reports which channels the relay's bus listens on.
type Subscriptions interface {
	Subscribed(channel string) bool
}

type Handler struct {
	hub      *Hub
	subs     Subscriptions
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, subs Subscriptions, l *logger.Logger) *Handler {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &Handler{
		hub:    hub,
		subs:   subs,
		logger: l,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect upgrades the request and streams every message on the requested
// channels until the peer disconnects. Claims are placed in the context by
// the auth middleware under claimsKey.
func (h *Handler) Connect(claimsKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		channels := c.QueryArray("channel")
		if len(channels) == 0 {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("at least one channel is required", "INVALID_CHANNEL"))
			return
		}
		for _, ch := range channels {
			if !h.subs.Subscribed(ch) {
				c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("channel "+ch+" is not relayed", "INVALID_CHANNEL"))
				return
			}
		}

		var subject string
		if v, ok := c.Get(claimsKey); ok {
			if claims, ok := v.(auth.Claims); ok {
				subject = claims.Subject
			}
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Warnf("websocket upgrade failed: %v", err)
			return
		}

		client := NewClient(conn, subject, channels)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h.hub.Register(client)
		go client.WriteLoop(ctx)
		h.logger.Debugf("websocket client %s (%s) subscribed to %v", client.ID, subject, channels)

		client.ReadLoop()
		h.hub.Unregister(client)
	}
}
