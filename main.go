package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/cobranca-bot/cobranca-backend/database"
	"github.com/cobranca-bot/cobranca-backend/internal/ai"
	"github.com/cobranca-bot/cobranca-backend/internal/models"
	"github.com/cobranca-bot/cobranca-backend/internal/routes"
	"github.com/cobranca-bot/cobranca-backend/internal/services"
	"github.com/cobranca-bot/cobranca-backend/internal/storage"
	"github.com/cobranca-bot/cobranca-backend/internal/transport"
)

func main() {
	// Load .env file for local development
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found - checking environment variables")
	}

	// Initialize storage
	var store storage.Store

	// Check if we should use memory store (for testing)
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		// Connect to database
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		// Run migrations
		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Customer{},
			&models.Conversation{},
			&models.ConversationHistory{},
			&models.BotConfig{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}

	// Set global store instance
	storage.SetStore(store)

	// WhatsApp session credentials live in the same PostgreSQL database
	factory := transport.NewWhatsmeowFactory(database.DSN())

	// Initialize all services
	manager := services.NewConnectionManager(factory, services.DefaultReconnectDelay)
	dispatcher := services.NewOutboundDispatcher(manager, store)
	completer := ai.NewOpenAIClient()
	orchestrator := services.NewReplyOrchestrator(store, completer, dispatcher)
	pipeline := services.NewInboundPipeline(store, orchestrator)
	manager.SetInboundHandler(pipeline.HandleIncoming)
	bulkSender := services.NewBulkSender(dispatcher, services.DefaultBulkDelay)

	log.Println("✅ All services initialized")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "Cobrança Bot Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Health check endpoint with session status
	app.Get("/", func(c *fiber.Ctx) error {
		session := manager.Status()
		return c.JSON(fiber.Map{
			"service":    "Cobrança Bot Backend",
			"version":    "1.0.0",
			"status":     "online",
			"storage":    getStorageType(),
			"connection": session.Status,
		})
	})

	// Health check endpoint for monitoring
	app.Get("/health", func(c *fiber.Ctx) error {
		status := "healthy"
		statusCode := 200

		// Check database if using it
		if os.Getenv("USE_MEMORY_STORE") != "true" && database.DB != nil {
			sqlDB, err := database.DB.DB()
			if err != nil || sqlDB.Ping() != nil {
				status = "unhealthy"
				statusCode = 503
			}
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"services": fiber.Map{
				"database": status == "healthy",
				"whatsapp": manager.Status().Status == services.StatusConnected,
			},
		})
	})

	// Setup routes
	routes.SetupRoutes(app, store, manager, dispatcher, bulkSender, completer)

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Closing WhatsApp session...")
		manager.Shutdown()
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 Cobrança Bot Backend starting on port %s", port)
	log.Printf("📊 Storage: %s", getStorageType())
	log.Println("📱 WhatsApp: connect via POST /connect")
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

func getStorageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}
