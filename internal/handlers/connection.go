package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/cobranca-bot/cobranca-backend/internal/services"
)

// ConnectionHandler exposes the session lifecycle to the operator UI.
type ConnectionHandler struct {
	manager *services.ConnectionManager
}

func NewConnectionHandler(manager *services.ConnectionManager) *ConnectionHandler {
	return &ConnectionHandler{manager: manager}
}

// Connect starts (or reports) the WhatsApp session
func (h *ConnectionHandler) Connect(c *fiber.Ctx) error {
	session, err := h.manager.Connect()
	if err != nil {
		if errors.Is(err, services.ErrAlreadyActive) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"error":   "A session is still being cleared. Disconnect first.",
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"status":  session.Status,
	})
}

// Disconnect logs out and fully resets the session
func (h *ConnectionHandler) Disconnect(c *fiber.Ctx) error {
	h.manager.Disconnect()
	return c.JSON(fiber.Map{"success": true})
}

// Status returns the current session snapshot
func (h *ConnectionHandler) Status(c *fiber.Ctx) error {
	session := h.manager.Status()
	return c.JSON(fiber.Map{
		"status":   session.Status,
		"qr":       session.QRCode,
		"identity": session.Identity,
	})
}

// HandleWebSocket streams status and QR events to one observer. On
// connect the observer immediately gets the current status and any
// pending QR code, then live updates until either side closes.
func (h *ConnectionHandler) HandleWebSocket(c *websocket.Conn) {
	events := h.manager.Subscribe()
	defer h.manager.Unsubscribe(events)

	session := h.manager.Status()
	if err := c.WriteJSON(services.StatusEvent{Type: "status", Status: string(session.Status)}); err != nil {
		return
	}
	if session.QRCode != "" {
		if err := c.WriteJSON(services.StatusEvent{Type: "qr", Data: session.QRCode}); err != nil {
			return
		}
	}

	// Read pump only to detect the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				log.Printf("⚠️  WebSocket write failed: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
