package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-core/internal/notify"
)

const wsUserKey = "ws_user_id"

// EventsHandler upgrades authenticated connections to websockets and
// streams the user's event envelopes until either side hangs up.
type EventsHandler struct {
	hub    *notify.Hub
	logger *zap.Logger
}

// NewEventsHandler constructs handler.
func NewEventsHandler(hub *notify.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{hub: hub, logger: logger}
}

// Upgrade gates the handshake. The auth middleware has already resolved
// the principal; fiber locals do not survive the upgrade unless copied.
func (h *EventsHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	c.Locals(wsUserKey, principal.UserID)
	return c.Next()
}

// Stream returns the websocket handler. One subscription per connection;
// a user with several tabs holds several subscriptions.
func (h *EventsHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(wsUserKey).(string)
		if userID == "" {
			_ = conn.Close()
			return
		}

		sub := h.hub.Join(userID)
		defer sub.Leave()
		h.logger.Debug("websocket connected", zap.String("user_id", userID))

		// Drain inbound frames so pings and close frames are processed.
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
			case envelope, ok := <-sub.C:
				if !ok {
					return
				}
				if err := conn.WriteJSON(envelope); err != nil {
					h.logger.Debug("websocket write failed",
						zap.String("user_id", userID),
						zap.Error(err))
					return
				}
			case <-done:
				return
			}
		}
	})
}
