package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"gamescrow/internal/adapter/api/middleware"
	"gamescrow/internal/infrastructure/realtime"
	ws "gamescrow/internal/infrastructure/websocket"
	"gamescrow/internal/usecase"
	"gamescrow/pkg/errors"
	"gamescrow/pkg/logger"
	"gamescrow/pkg/response"
)

// StreamHandler serves realtime topics over SSE and WebSocket.
type StreamHandler struct {
	hub          *realtime.Hub
	orderUseCase *usecase.OrderUseCase
	heartbeat    time.Duration
}

func NewStreamHandler(hub *realtime.Hub, orderUseCase *usecase.OrderUseCase, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &StreamHandler{
		hub:          hub,
		orderUseCase: orderUseCase,
		heartbeat:    heartbeat,
	}
}

func (h *StreamHandler) authorize(c echo.Context) (string, string, error) {
	topic := c.QueryParam("topic")
	if topic == "" {
		return "", "", errors.BadRequest("topic is required", nil)
	}

	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return "", "", err
	}

	if err := h.orderUseCase.AuthorizeTopic(c.Request().Context(), actor, topic); err != nil {
		return "", "", err
	}
	return topic, actor.UserID, nil
}

func (h *StreamHandler) HandleSSE(c echo.Context) error {
	topic, userID, err := h.authorize(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	sub := h.hub.Subscribe(ctx, topic)
	defer sub.Close()

	logger.Debug("SSE subscriber %s joined %s", userID, topic)
	if err := realtime.StreamSSE(ctx, c.Response(), sub, h.heartbeat); err != nil {
		logger.Debug("SSE stream for %s on %s ended: %v", userID, topic, err)
	}
	return nil
}

func (h *StreamHandler) HandleWebSocket(c echo.Context) error {
	topic, userID, err := h.authorize(c)
	if err != nil {
		return response.Error(c, err)
	}

	conn, err := ws.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		logger.Warn("websocket upgrade failed for %s: %v", userID, err)
		return nil
	}

	ctx := c.Request().Context()
	client := &ws.Client{
		UserID: userID,
		Conn:   conn,
		Sub:    h.hub.Subscribe(ctx, topic),
	}
	defer client.Sub.Close()

	client.Serve(ctx, h.heartbeat)
	return nil
}
