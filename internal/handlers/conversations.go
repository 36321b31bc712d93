package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cobranca-bot/cobranca-backend/internal/services"
	"github.com/cobranca-bot/cobranca-backend/internal/storage"
)

// ConversationHandler serves the per-counterpart conversation surface:
// listing, history, manual sends and the AI pause toggle.
type ConversationHandler struct {
	store      storage.Store
	dispatcher *services.OutboundDispatcher
}

func NewConversationHandler(store storage.Store, dispatcher *services.OutboundDispatcher) *ConversationHandler {
	return &ConversationHandler{store: store, dispatcher: dispatcher}
}

type conversationView struct {
	ID            uint      `json:"id"`
	CustomerPhone string    `json:"customer_phone"`
	CustomerName  *string   `json:"customer_name"`
	AIPaused      bool      `json:"ai_paused"`
	LastMessageAt time.Time `json:"last_message"`
}

// List returns all conversations, most recent first, with the matching
// customer name when the phone is registered.
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	conversations, err := h.store.GetAllConversations()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	views := make([]conversationView, 0, len(conversations))
	for _, conv := range conversations {
		view := conversationView{
			ID:            conv.ID,
			CustomerPhone: conv.CustomerPhone,
			AIPaused:      conv.AIPaused,
			LastMessageAt: conv.LastMessageAt,
		}
		customer, err := h.store.GetCustomerByPhone(conv.CustomerPhone)
		if err == nil && customer != nil {
			view.CustomerName = &customer.Name
		}
		views = append(views, view)
	}

	return c.JSON(views)
}

// Messages returns the full history of one conversation in
// chronological order.
func (h *ConversationHandler) Messages(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid conversation id",
		})
	}

	conversation, err := h.store.GetConversation(uint(id))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}

	messages, err := h.store.GetHistoryByPhone(conversation.CustomerPhone)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(messages)
}

// SendMessage delivers an operator-typed message into one conversation.
func (h *ConversationHandler) SendMessage(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid conversation id",
		})
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&payload); err != nil || strings.TrimSpace(payload.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message cannot be empty",
		})
	}

	conversation, err := h.store.GetConversation(uint(id))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}

	if err := h.dispatcher.Send(conversation.CustomerPhone, payload.Message); err != nil {
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

// ToggleAI flips the manual-override flag. This endpoint is the only
// mutator of ai_paused in the whole system.
func (h *ConversationHandler) ToggleAI(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid conversation id",
		})
	}

	var payload struct {
		AIPaused bool `json:"ai_paused"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	conversation, err := h.store.SetConversationAIPaused(uint(id), payload.AIPaused)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}

	return c.JSON(conversation)
}
