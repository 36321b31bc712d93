package models

import "gorm.io/gorm"

// DefaultPrompt is used when no bot_config row exists yet.
const DefaultPrompt = "Você é um assistente útil."

// BotConfig is the singleton configuration row read on every inbound
// message. A missing row yields DefaultBotConfig, with auto-reply off.
type BotConfig struct {
	gorm.Model

	OpenAIKey string `json:"openai_key"`
	Prompt    string `json:"prompt"`
	AutoReply bool   `json:"auto_reply" gorm:"default:false"`
}

// DefaultBotConfig returns the safe built-in configuration.
func DefaultBotConfig() *BotConfig {
	return &BotConfig{
		OpenAIKey: "",
		Prompt:    DefaultPrompt,
		AutoReply: false,
	}
}
