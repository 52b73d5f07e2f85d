// Package ws streams region lifecycle events to WebSocket clients.
package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quarksys/shmd/internal/events"
	"github.com/quarksys/shmd/internal/infrastructure/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const writeTimeout = 10 * time.Second

// Handler manages WebSocket subscriptions to the event bus.
type Handler struct {
	bus *events.Bus
	log *logging.Logger
}

// NewHandler creates a WebSocket handler.
func NewHandler(bus *events.Bus, log *logging.Logger) *Handler {
	return &Handler{bus: bus, log: log}
}

// HandleConnection upgrades the connection and forwards matching events
// until the client disconnects. The topic filter comes from the "topic"
// query parameter and defaults to all region events.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	filter := c.Query("topic")
	if filter == "" {
		filter = "shm.*"
	}

	id, ch, err := h.bus.Subscribe(filter)
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeTimeout))
		return
	}
	defer h.bus.Unsubscribe(id)

	h.log.Debug("websocket subscribed",
		zap.Int("subscriber", id),
		zap.String("filter", filter),
	)

	// Reader goroutine: the client sends nothing we act on, but reads
	// surface disconnects and keep control frames flowing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
