package services

import (
	"log"
	"strings"
	"time"

	"github.com/cobranca-bot/cobranca-backend/internal/models"
	"github.com/cobranca-bot/cobranca-backend/internal/storage"
)

// NetworkSuffix is WhatsApp's user address domain.
const NetworkSuffix = "@s.whatsapp.net"

// OutboundDispatcher sends messages through the live session and records
// them. Used by the reply orchestrator, manual operator sends and the
// bulk sender.
type OutboundDispatcher struct {
	manager *ConnectionManager
	store   storage.Store
}

func NewOutboundDispatcher(manager *ConnectionManager, store storage.Store) *OutboundDispatcher {
	return &OutboundDispatcher{
		manager: manager,
		store:   store,
	}
}

// NormalizeAddress converts any phone spelling into the transport's
// addressing form: digits only plus the network suffix.
func NormalizeAddress(phone string) string {
	if strings.Contains(phone, "@") {
		return phone
	}
	return models.DigitsOnly(phone) + NetworkSuffix
}

// Send delivers text to a phone. Fails with ErrNotConnected when no
// session is up - manual senders surface that to the operator. The
// message is persisted only after the transport accepted it; a send that
// succeeded but failed to persist is logged as a reconciliation gap and
// not retried, to avoid delivering twice.
func (d *OutboundDispatcher) Send(phone, text string) error {
	if d.manager.Status().Status != StatusConnected {
		return ErrNotConnected
	}

	address := NormalizeAddress(phone)
	if err := d.manager.SendText(address, text); err != nil {
		return err
	}

	digits := models.DigitsOnly(phone)
	record := &models.ConversationHistory{
		Phone:     digits,
		Role:      models.RoleAssistant,
		Message:   text,
		Timestamp: time.Now(),
	}
	customer, err := d.store.GetCustomerByPhone(digits)
	if err == nil && customer != nil {
		record.CustomerID = &customer.ID
	}
	if err := d.store.CreateHistory(record); err != nil {
		log.Printf("⚠️  Message delivered to %s but not recorded: %v", digits, err)
		return nil
	}

	if _, err := d.store.GetOrCreateConversation(digits); err != nil {
		log.Printf("⚠️  Failed to load conversation for %s: %v", digits, err)
		return nil
	}
	if err := d.store.TouchConversation(digits, time.Now()); err != nil {
		log.Printf("⚠️  Failed to update conversation recency for %s: %v", digits, err)
	}
	return nil
}
