package ai

import "context"

// Turn is one entry of a chat-completion dialogue.
type Turn struct {
	Role    string // "user" | "assistant" | "system"
	Content string
}

// Completer is the external language model. It knows nothing about
// customers, conversations or the database - it just completes a dialogue.
// The API key comes from bot configuration, not the environment, because
// operators set it at runtime.
type Completer interface {
	Complete(ctx context.Context, apiKey, systemPrompt string, turns []Turn) (string, error)
}
