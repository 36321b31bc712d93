package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cobranca-bot/cobranca-backend/internal/models"
)

// MemoryStore holds all data in memory. Used for tests and for running
// the service without a database (USE_MEMORY_STORE=true).
type MemoryStore struct {
	customers     map[string]*models.Customer     // keyed by phone
	conversations map[string]*models.Conversation // keyed by phone
	history       []*models.ConversationHistory
	botConfig     *models.BotConfig

	// Mutexes for thread safety
	customerMu     sync.RWMutex
	conversationMu sync.RWMutex
	historyMu      sync.RWMutex
	configMu       sync.RWMutex

	// Counters for ID generation
	conversationCounter uint
	historyCounter      uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:     make(map[string]*models.Customer),
		conversations: make(map[string]*models.Conversation),
	}
}

// AddCustomer seeds a customer record. The messaging core never creates
// customers, so this exists for tests and the memory-store mode only.
func (m *MemoryStore) AddCustomer(c *models.Customer) *models.Customer {
	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	c.Phone = models.DigitsOnly(c.Phone)
	if c.ID == 0 {
		c.ID = uint(len(m.customers) + 1)
	}
	if c.Status == "" {
		c.Status = "pending"
	}
	m.customers[c.Phone] = c
	return c
}

func (m *MemoryStore) GetCustomerByPhone(phone string) (*models.Customer, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	customer, exists := m.customers[models.DigitsOnly(phone)]
	if !exists {
		return nil, nil
	}
	return customer, nil
}

// Conversation operations

func (m *MemoryStore) GetConversation(id uint) (*models.Conversation, error) {
	m.conversationMu.RLock()
	defer m.conversationMu.RUnlock()

	for _, conv := range m.conversations {
		if conv.ID == id {
			return conv, nil
		}
	}
	return nil, fmt.Errorf("conversation not found")
}

func (m *MemoryStore) GetConversationByPhone(phone string) (*models.Conversation, error) {
	m.conversationMu.RLock()
	defer m.conversationMu.RUnlock()

	conv, exists := m.conversations[models.DigitsOnly(phone)]
	if !exists {
		return nil, nil
	}
	return conv, nil
}

func (m *MemoryStore) GetOrCreateConversation(phone string) (*models.Conversation, error) {
	phone = models.DigitsOnly(phone)

	m.conversationMu.Lock()
	defer m.conversationMu.Unlock()

	if conv, exists := m.conversations[phone]; exists {
		return conv, nil
	}

	m.conversationCounter++
	conv := &models.Conversation{
		CustomerPhone: phone,
		AIPaused:      false,
		LastMessageAt: time.Now(),
	}
	conv.ID = m.conversationCounter
	conv.CreatedAt = time.Now()

	m.conversations[phone] = conv
	return conv, nil
}

func (m *MemoryStore) GetAllConversations() ([]*models.Conversation, error) {
	m.conversationMu.RLock()
	defer m.conversationMu.RUnlock()

	conversations := make([]*models.Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		conversations = append(conversations, conv)
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt.After(conversations[j].LastMessageAt)
	})
	return conversations, nil
}

func (m *MemoryStore) SetConversationAIPaused(id uint, paused bool) (*models.Conversation, error) {
	m.conversationMu.Lock()
	defer m.conversationMu.Unlock()

	for _, conv := range m.conversations {
		if conv.ID == id {
			conv.AIPaused = paused
			conv.UpdatedAt = time.Now()
			return conv, nil
		}
	}
	return nil, fmt.Errorf("conversation not found")
}

func (m *MemoryStore) TouchConversation(phone string, at time.Time) error {
	m.conversationMu.Lock()
	defer m.conversationMu.Unlock()

	conv, exists := m.conversations[models.DigitsOnly(phone)]
	if !exists {
		return fmt.Errorf("conversation not found")
	}
	conv.LastMessageAt = at
	conv.UpdatedAt = at
	return nil
}

// Conversation history operations

func (m *MemoryStore) CreateHistory(record *models.ConversationHistory) error {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()

	m.historyCounter++
	record.ID = m.historyCounter
	record.Phone = models.DigitsOnly(record.Phone)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	record.CreatedAt = time.Now()

	m.history = append(m.history, record)
	return nil
}

func (m *MemoryStore) GetRecentHistory(phone string, limit int) ([]*models.ConversationHistory, error) {
	m.historyMu.RLock()
	defer m.historyMu.RUnlock()

	phone = models.DigitsOnly(phone)
	var records []*models.ConversationHistory
	for _, rec := range m.history {
		if rec.Phone == phone {
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MemoryStore) GetHistoryByPhone(phone string) ([]*models.ConversationHistory, error) {
	m.historyMu.RLock()
	defer m.historyMu.RUnlock()

	phone = models.DigitsOnly(phone)
	var records []*models.ConversationHistory
	for _, rec := range m.history {
		if rec.Phone == phone {
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

// Bot config operations

func (m *MemoryStore) GetBotConfig() (*models.BotConfig, error) {
	m.configMu.RLock()
	defer m.configMu.RUnlock()

	if m.botConfig == nil {
		return models.DefaultBotConfig(), nil
	}
	return m.botConfig, nil
}

func (m *MemoryStore) SaveBotConfig(cfg *models.BotConfig) error {
	m.configMu.Lock()
	defer m.configMu.Unlock()

	if cfg.ID == 0 {
		cfg.ID = 1
	}
	m.botConfig = cfg
	return nil
}
