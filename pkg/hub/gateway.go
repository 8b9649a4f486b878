package hub

import (
	"webauth/pkg/middleware"
	"webauth/pkg/models"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const watcherKey = "hub_watcher"

// Upgrade rejects plain HTTP requests and hands the caller's identity to
// the websocket handler. It must run behind the session middleware.
func Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	c.Locals(watcherKey, id)
	return c.Next()
}

// Handler serves the event stream.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		who, _ := c.Locals(watcherKey).(models.Identity)
		h.Serve(c, who)
	})
}
