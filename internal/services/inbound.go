package services

import (
	"log"
	"strings"
	"time"

	"github.com/cobranca-bot/cobranca-backend/internal/models"
	"github.com/cobranca-bot/cobranca-backend/internal/storage"
	"github.com/cobranca-bot/cobranca-backend/internal/transport"
)

// InboundPipeline receives every inbound message from the transport,
// makes it durable and decides whether the AI is allowed to answer.
type InboundPipeline struct {
	store        storage.Store
	orchestrator *ReplyOrchestrator
}

// NewInboundPipeline creates the pipeline. orchestrator may be nil in
// which case inbound messages are recorded but never answered.
func NewInboundPipeline(store storage.Store, orchestrator *ReplyOrchestrator) *InboundPipeline {
	return &InboundPipeline{
		store:        store,
		orchestrator: orchestrator,
	}
}

// HandleIncoming processes one inbound message. Persisting the message
// is the durability boundary: if that insert fails nothing else runs.
// Duplicate transport deliveries are accepted as-is (at-least-once).
func (p *InboundPipeline) HandleIncoming(msg transport.IncomingMessage) {
	if msg.FromMe {
		return // echo of our own send
	}
	body := strings.TrimSpace(msg.Body)
	if body == "" {
		return // media, reactions, status updates
	}

	phone := models.DigitsOnly(msg.From)
	log.Printf("📩 Message from %s: %s", phone, body)

	// Best-effort customer resolution; an unknown phone is a valid case.
	customer, err := p.store.GetCustomerByPhone(phone)
	if err != nil {
		log.Printf("⚠️  Customer lookup failed for %s: %v", phone, err)
		customer = nil
	}

	record := &models.ConversationHistory{
		Phone:     phone,
		Role:      models.RoleUser,
		Message:   msg.Body,
		Timestamp: time.Now(),
	}
	if customer != nil {
		record.CustomerID = &customer.ID
	}
	if err := p.store.CreateHistory(record); err != nil {
		// Fail closed: a message we could not record must not be answered.
		log.Printf("❌ Failed to persist inbound message from %s: %v", phone, err)
		return
	}

	conversation, err := p.store.GetOrCreateConversation(phone)
	if err != nil {
		log.Printf("❌ Failed to load conversation for %s: %v", phone, err)
		return
	}

	if conversation.AIPaused {
		// Operator took over this conversation. Nothing overrides this.
		log.Printf("🤖 AI paused for %s, skipping auto-reply", phone)
		return
	}

	config, err := p.store.GetBotConfig()
	if err != nil {
		log.Printf("❌ Failed to load bot config: %v", err)
		return
	}
	if !config.AutoReply || config.OpenAIKey == "" {
		return
	}

	if p.orchestrator != nil {
		p.orchestrator.GenerateAndSend(phone, customer, msg.Body)
	}
}
