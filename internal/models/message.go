package models

import (
	"time"

	"gorm.io/gorm"
)

// Message roles, mirroring the chat-completion API.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationHistory is one message exchanged with a counterpart.
// Rows are append-only: the core inserts them and reads them back ordered
// by timestamp, never updates or deletes.
type ConversationHistory struct {
	gorm.Model

	CustomerID *uint     `json:"customer_id"` // nil when the phone has no matching customer
	Phone      string    `json:"phone" gorm:"index"`
	Role       string    `json:"role"` // user | assistant
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
}

func (h *ConversationHistory) BeforeCreate(tx *gorm.DB) error {
	h.Phone = DigitsOnly(h.Phone)
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now()
	}
	return nil
}
