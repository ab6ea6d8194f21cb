package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"gamescrow/internal/domain/entity"
	"gamescrow/internal/infrastructure/realtime"
	"gamescrow/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client streams one topic subscription over a WebSocket connection.
// Frames carry the same envelope as the SSE stream.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Sub    *realtime.Subscription
}

// Serve runs the pumps until the peer disconnects, ctx ends or the
// subscription is closed.
func (c *Client) Serve(ctx context.Context, heartbeat time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.ReadPump(cancel, heartbeat)
	c.WritePump(ctx, heartbeat)
}

// ReadPump only drains control frames; clients do not send commands here.
func (c *Client) ReadPump(cancel context.CancelFunc, heartbeat time.Duration) {
	defer cancel()

	c.Conn.SetReadLimit(maxMessageSize)
	pongWait := heartbeat * 2
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error for %s: %v", c.UserID, err)
			}
			return
		}
	}
}

func (c *Client) WritePump(ctx context.Context, heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	if err := c.writeEvent(realtime.ControlEvent(entity.EventReady, c.Sub.Topic())); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			c.close(websocket.CloseNormalClosure, "")
			return
		case <-c.Sub.Done():
			reason := ""
			if c.Sub.Evicted() {
				reason = "subscriber too slow"
			}
			c.close(websocket.CloseTryAgainLater, reason)
			return
		case ev := <-c.Sub.Events():
			if err := c.writeEvent(ev); err != nil {
				logger.Warn("websocket write error for %s: %v", c.UserID, err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeEvent(ev realtime.Event) error {
	message, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(websocket.TextMessage, message)
}

func (c *Client) close(code int, reason string) {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
