package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cobranca-bot/cobranca-backend/internal/services"
)

// MessageHandler serves direct and bulk manual sends.
type MessageHandler struct {
	dispatcher *services.OutboundDispatcher
	bulk       *services.BulkSender
}

func NewMessageHandler(dispatcher *services.OutboundDispatcher, bulk *services.BulkSender) *MessageHandler {
	return &MessageHandler{dispatcher: dispatcher, bulk: bulk}
}

// Send delivers one message to one phone
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	var payload struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if payload.To == "" || strings.TrimSpace(payload.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Fields 'to' and 'message' are required",
		})
	}

	if err := h.dispatcher.Send(payload.To, payload.Message); err != nil {
		if errors.Is(err, services.ErrNotConnected) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "WhatsApp is not connected",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// SendBulk starts a throttled batch to many phones
func (h *MessageHandler) SendBulk(c *fiber.Ctx) error {
	var payload struct {
		Phones  []string `json:"phones"`
		Message string   `json:"message"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(payload.Phones) == 0 || strings.TrimSpace(payload.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Fields 'phones' and 'message' are required",
		})
	}

	if err := h.bulk.SendBatch(payload.Phones, payload.Message); err != nil {
		switch {
		case errors.Is(err, services.ErrNotConnected):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "WhatsApp is not connected",
			})
		case errors.Is(err, services.ErrBulkInProgress):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A bulk send is already running",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"recipients": len(payload.Phones),
	})
}
