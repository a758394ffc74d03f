// Package ws pushes live order events to connected admin consoles over
// websockets: new orders as they commit and status changes as admins make
// them.
package ws

import (
	"encoding/json"
	"log"

	"keebshop_backend/models"
)

// Hub maintains the set of connected admin clients and broadcasts order
// events to all of them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Outbound order events.
	Broadcast chan []byte
}

func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte, 16),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			log.Printf("Admin console connected (%d total)", len(h.clients))
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Printf("Admin console disconnected (%d total)", len(h.clients))
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// OrderCreated broadcasts a freshly committed order to all admin consoles.
func (h *Hub) OrderCreated(o *models.Order) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":  "order_created",
		"order": o,
	})
	if err != nil {
		return
	}
	h.Broadcast <- payload
}

// OrderStatusChanged broadcasts an admin status transition.
func (h *Hub) OrderStatusChanged(orderID uint, status string) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":        "order_status",
		"order_id":    orderID,
		"status":      status,
		"explanation": models.StatusExplanation(status),
	})
	if err != nil {
		return
	}
	h.Broadcast <- payload
}
