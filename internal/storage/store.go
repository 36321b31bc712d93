package storage

import (
	"time"

	"github.com/cobranca-bot/cobranca-backend/internal/models"
)

var storeInstance Store

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return storeInstance
}

// Store defines the interface for storage operations.
// "Not found" is a first-class case for customers and conversations:
// GetCustomerByPhone and GetConversationByPhone return (nil, nil) when
// nothing matches, and error only on real storage failures.
type Store interface {
	// Customer operations (read-only for the messaging core)
	GetCustomerByPhone(phone string) (*models.Customer, error)

	// Conversation operations
	GetConversation(id uint) (*models.Conversation, error)
	GetConversationByPhone(phone string) (*models.Conversation, error)
	GetOrCreateConversation(phone string) (*models.Conversation, error)
	GetAllConversations() ([]*models.Conversation, error)
	SetConversationAIPaused(id uint, paused bool) (*models.Conversation, error)
	TouchConversation(phone string, at time.Time) error

	// Conversation history operations (append-only)
	CreateHistory(record *models.ConversationHistory) error
	GetRecentHistory(phone string, limit int) ([]*models.ConversationHistory, error) // newest first
	GetHistoryByPhone(phone string) ([]*models.ConversationHistory, error)          // oldest first

	// Bot config operations (singleton row)
	GetBotConfig() (*models.BotConfig, error)
	SaveBotConfig(cfg *models.BotConfig) error
}
