package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cobranca-bot/cobranca-backend/internal/models"
)

// DatabaseStore implements Store backed by PostgreSQL via GORM
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed storage
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (d *DatabaseStore) GetCustomerByPhone(phone string) (*models.Customer, error) {
	var customer models.Customer
	err := d.db.Where("phone = ?", models.DigitsOnly(phone)).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// Conversation operations

func (d *DatabaseStore) GetConversation(id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := d.db.First(&conv, id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (d *DatabaseStore) GetConversationByPhone(phone string) (*models.Conversation, error) {
	var conv models.Conversation
	err := d.db.Where("customer_phone = ?", models.DigitsOnly(phone)).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (d *DatabaseStore) GetOrCreateConversation(phone string) (*models.Conversation, error) {
	phone = models.DigitsOnly(phone)

	var conv models.Conversation
	err := d.db.Where("customer_phone = ?", phone).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = models.Conversation{
		CustomerPhone: phone,
		AIPaused:      false,
		LastMessageAt: time.Now(),
	}
	if err := d.db.Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (d *DatabaseStore) GetAllConversations() ([]*models.Conversation, error) {
	var conversations []*models.Conversation
	err := d.db.Order("last_message_at DESC").Find(&conversations).Error
	return conversations, err
}

func (d *DatabaseStore) SetConversationAIPaused(id uint, paused bool) (*models.Conversation, error) {
	var conv models.Conversation
	if err := d.db.First(&conv, id).Error; err != nil {
		return nil, err
	}
	conv.AIPaused = paused
	if err := d.db.Save(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (d *DatabaseStore) TouchConversation(phone string, at time.Time) error {
	return d.db.Model(&models.Conversation{}).
		Where("customer_phone = ?", models.DigitsOnly(phone)).
		Update("last_message_at", at).Error
}

// Conversation history operations

func (d *DatabaseStore) CreateHistory(record *models.ConversationHistory) error {
	return d.db.Create(record).Error
}

func (d *DatabaseStore) GetRecentHistory(phone string, limit int) ([]*models.ConversationHistory, error) {
	var records []*models.ConversationHistory
	err := d.db.Where("phone = ?", models.DigitsOnly(phone)).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (d *DatabaseStore) GetHistoryByPhone(phone string) ([]*models.ConversationHistory, error) {
	var records []*models.ConversationHistory
	err := d.db.Where("phone = ?", models.DigitsOnly(phone)).
		Order("timestamp ASC").
		Find(&records).Error
	return records, err
}

// Bot config operations

func (d *DatabaseStore) GetBotConfig() (*models.BotConfig, error) {
	var cfg models.BotConfig
	err := d.db.First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultBotConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (d *DatabaseStore) SaveBotConfig(cfg *models.BotConfig) error {
	var existing models.BotConfig
	err := d.db.First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d.db.Create(cfg).Error
	}
	if err != nil {
		return err
	}

	existing.OpenAIKey = cfg.OpenAIKey
	existing.Prompt = cfg.Prompt
	existing.AutoReply = cfg.AutoReply
	if err := d.db.Save(&existing).Error; err != nil {
		return err
	}
	*cfg = existing
	return nil
}
