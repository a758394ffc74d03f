package handlers

import (
	"keebshop_backend/internal/ws"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type WSHandler struct {
	Hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{Hub: hub}
}

// UpgradeRequired gates websocket routes behind a proper upgrade request.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// OrderFeed - GET /ws/admin/orders
// Streams order_created and order_status events to the admin console.
func (h *WSHandler) OrderFeed(c *websocket.Conn) {
	client := &ws.Client{
		Hub:  h.Hub,
		Conn: c,
		Send: make(chan []byte, 256),
	}
	h.Hub.Register <- client

	go client.WritePump()
	client.ReadPump()
}
