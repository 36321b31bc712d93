package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cobranca-bot/cobranca-backend/internal/ai"
	"github.com/cobranca-bot/cobranca-backend/internal/models"
	"github.com/cobranca-bot/cobranca-backend/internal/storage"
)

// ConfigHandler manages the bot_config singleton and the test endpoint.
type ConfigHandler struct {
	store     storage.Store
	completer ai.Completer
}

func NewConfigHandler(store storage.Store, completer ai.Completer) *ConfigHandler {
	return &ConfigHandler{store: store, completer: completer}
}

// GetConfig returns the current bot configuration
func (h *ConfigHandler) GetConfig(c *fiber.Ctx) error {
	config, err := h.store.GetBotConfig()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(config)
}

// SaveConfig creates or updates the singleton configuration row
func (h *ConfigHandler) SaveConfig(c *fiber.Ctx) error {
	var payload struct {
		OpenAIKey string `json:"openai_key"`
		Prompt    string `json:"prompt"`
		AutoReply bool   `json:"auto_reply"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	config := &models.BotConfig{
		OpenAIKey: payload.OpenAIKey,
		Prompt:    payload.Prompt,
		AutoReply: payload.AutoReply,
	}
	if err := h.store.SaveBotConfig(config); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// TestAI runs one completion against the stored configuration without
// touching the transport or the history.
func (h *ConfigHandler) TestAI(c *fiber.Ctx) error {
	var payload struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&payload); err != nil || payload.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Field 'message' is required",
		})
	}

	config, err := h.store.GetBotConfig()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if config.OpenAIKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "OpenAI key not configured",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 60*time.Second)
	defer cancel()

	reply, err := h.completer.Complete(ctx, config.OpenAIKey, config.Prompt, []ai.Turn{
		{Role: models.RoleUser, Content: payload.Message},
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"reply": reply})
}
