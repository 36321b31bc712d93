package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/cobranca-bot/cobranca-backend/internal/ai"
	"github.com/cobranca-bot/cobranca-backend/internal/handlers"
	"github.com/cobranca-bot/cobranca-backend/internal/services"
	"github.com/cobranca-bot/cobranca-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	app *fiber.App,
	store storage.Store,
	manager *services.ConnectionManager,
	dispatcher *services.OutboundDispatcher,
	bulk *services.BulkSender,
	completer ai.Completer,
) {
	connectionHandler := handlers.NewConnectionHandler(manager)
	configHandler := handlers.NewConfigHandler(store, completer)
	conversationHandler := handlers.NewConversationHandler(store, dispatcher)
	messageHandler := handlers.NewMessageHandler(dispatcher, bulk)

	// ========== CONNECTION LIFECYCLE ==========
	app.Post("/connect", connectionHandler.Connect)
	app.Post("/disconnect", connectionHandler.Disconnect)
	app.Get("/status", connectionHandler.Status)

	// Operator status channel (status + QR push)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(connectionHandler.HandleWebSocket))

	// ========== BOT CONFIGURATION ==========
	app.Get("/config", configHandler.GetConfig)
	app.Post("/config", configHandler.SaveConfig)
	app.Post("/test-ai", configHandler.TestAI)

	// ========== CONVERSATIONS ==========
	conversations := app.Group("/conversations")
	conversations.Get("/", conversationHandler.List)
	conversations.Get("/:id/messages", conversationHandler.Messages)
	conversations.Post("/:id/send-message", conversationHandler.SendMessage)
	conversations.Put("/:id/toggle-ai", conversationHandler.ToggleAI)

	// ========== MANUAL SENDS ==========
	app.Post("/send-message", messageHandler.Send)
	app.Post("/send-bulk", messageHandler.SendBulk)
}
