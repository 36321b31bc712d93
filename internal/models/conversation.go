package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation tracks per-counterpart state: whether the AI is allowed to
// reply and when the last message went out. One row per phone number.
type Conversation struct {
	gorm.Model

	CustomerPhone string    `json:"customer_phone" gorm:"uniqueIndex"`
	AIPaused      bool      `json:"ai_paused" gorm:"default:false"`
	LastMessageAt time.Time `json:"last_message_at"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	c.CustomerPhone = DigitsOnly(c.CustomerPhone)
	if c.LastMessageAt.IsZero() {
		c.LastMessageAt = time.Now()
	}
	return nil
}
