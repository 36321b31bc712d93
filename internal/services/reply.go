package services

import (
	"context"
	"log"
	"time"

	"github.com/cobranca-bot/cobranca-backend/internal/ai"
	"github.com/cobranca-bot/cobranca-backend/internal/models"
	"github.com/cobranca-bot/cobranca-backend/internal/storage"
)

// historyWindow is how many recent messages feed the completion context.
const historyWindow = 10

// completionTimeout bounds one completion call so a hung upstream cannot
// pin the event goroutine forever.
const completionTimeout = 60 * time.Second

// ReplyOrchestrator assembles the conversation context, asks the
// completion service for a reply and hands it to outbound dispatch.
// Every failure here is logged and dropped: a broken reply is worse than
// silence.
type ReplyOrchestrator struct {
	store      storage.Store
	completer  ai.Completer
	dispatcher *OutboundDispatcher
}

func NewReplyOrchestrator(store storage.Store, completer ai.Completer, dispatcher *OutboundDispatcher) *ReplyOrchestrator {
	return &ReplyOrchestrator{
		store:      store,
		completer:  completer,
		dispatcher: dispatcher,
	}
}

// GenerateAndSend drafts and sends one reply. customer may be nil for
// unregistered counterparts. Side effects only; no retry, no fallback.
func (o *ReplyOrchestrator) GenerateAndSend(phone string, customer *models.Customer, incomingText string) {
	config, err := o.store.GetBotConfig()
	if err != nil {
		log.Printf("❌ Failed to load bot config: %v", err)
		return
	}

	systemPrompt := BuildSystemPrompt(config.Prompt, customer)

	turns, err := o.buildTurns(phone, incomingText)
	if err != nil {
		log.Printf("❌ Failed to load history for %s: %v", phone, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	reply, err := o.completer.Complete(ctx, config.OpenAIKey, systemPrompt, turns)
	if err != nil {
		log.Printf("❌ AI completion failed for %s: %v", phone, err)
		return
	}
	if reply == "" {
		log.Printf("⚠️  AI returned an empty reply for %s, nothing sent", phone)
		return
	}

	if err := o.dispatcher.Send(phone, reply); err != nil {
		log.Printf("❌ Failed to send AI reply to %s: %v", phone, err)
		return
	}

	name := phone
	if customer != nil {
		name = customer.Name
	}
	log.Printf("🤖 Reply sent to %s: %s", name, reply)
}

// buildTurns loads the last messages in chronological order and appends
// the incoming text as the final user turn.
func (o *ReplyOrchestrator) buildTurns(phone, incomingText string) ([]ai.Turn, error) {
	history, err := o.store.GetRecentHistory(phone, historyWindow)
	if err != nil {
		return nil, err
	}

	turns := make([]ai.Turn, 0, len(history)+1)
	// GetRecentHistory returns newest first; walk backwards for
	// chronological order.
	for i := len(history) - 1; i >= 0; i-- {
		turns = append(turns, ai.Turn{
			Role:    history[i].Role,
			Content: history[i].Message,
		})
	}

	turns = append(turns, ai.Turn{Role: models.RoleUser, Content: incomingText})
	return turns, nil
}
