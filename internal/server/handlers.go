package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"gamebus/internal/redis"
	"gamebus/internal/transport/httpdto"
	gamebus_errors "gamebus/pkg/errors"
	"gamebus/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Bus is the part of *bus.Bus the relay depends on.
type Bus interface {
	Publish(ctx context.Context, channel string, value any) error
	State() redis.State
	ID() string
	Subscribed(channel string) bool
}

type handlers struct {
	bus    Bus
	logger *logger.Logger
}

func (h *handlers) ping(c *gin.Context) {
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
}

func (h *handlers) health(c *gin.Context) {
	state := h.bus.State()
	if state != redis.StateConnected {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("bus is "+state.String(), "UNHEALTHY"))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.HealthResponse{
		Status: "healthy",
		State:  state.String(),
		BusID:  h.bus.ID(),
	}))
}

func (h *handlers) publish(c *gin.Context) {
	channel := c.Param("channel")
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("body must be valid JSON", "INVALID_BODY"))
		return
	}

	err = h.bus.Publish(c.Request.Context(), channel, json.RawMessage(body))
	var encErr *gamebus_errors.EncodingError
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(httpdto.PublishAccepted{Channel: channel, Bytes: len(body)}))
	case errors.Is(err, gamebus_errors.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("bus is not connected", "NOT_CONNECTED"))
	case errors.As(err, &encErr):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_BODY"))
	default:
		c.Status(http.StatusBadGateway)
		_ = c.Error(err)
	}
}
