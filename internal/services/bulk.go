package services

import (
	"errors"
	"log"
	"sync"
	"time"
)

// DefaultBulkDelay spaces out bulk sends so the account does not look
// like a spam cannon to the network.
const DefaultBulkDelay = 2 * time.Second

// BulkSender pushes one message to many phones sequentially through the
// outbound dispatcher. One batch at a time.
type BulkSender struct {
	dispatcher *OutboundDispatcher
	delay      time.Duration

	mu        sync.Mutex
	isRunning bool
}

func NewBulkSender(dispatcher *OutboundDispatcher, delay time.Duration) *BulkSender {
	if delay <= 0 {
		delay = DefaultBulkDelay
	}
	return &BulkSender{
		dispatcher: dispatcher,
		delay:      delay,
	}
}

var ErrBulkInProgress = errors.New("a bulk send is already running")

// SendBatch starts a background batch. Returns immediately; progress
// goes to the log. Fails fast when the session is down or another batch
// is still running.
func (b *BulkSender) SendBatch(phones []string, message string) error {
	if b.dispatcher.manager.Status().Status != StatusConnected {
		return ErrNotConnected
	}

	b.mu.Lock()
	if b.isRunning {
		b.mu.Unlock()
		return ErrBulkInProgress
	}
	b.isRunning = true
	b.mu.Unlock()

	go b.run(phones, message)
	return nil
}

func (b *BulkSender) run(phones []string, message string) {
	defer func() {
		b.mu.Lock()
		b.isRunning = false
		b.mu.Unlock()
	}()

	log.Printf("📤 Bulk send started: %d recipients", len(phones))

	sent := 0
	failed := 0
	for i, phone := range phones {
		if err := b.dispatcher.Send(phone, message); err != nil {
			failed++
			log.Printf("❌ Bulk send to %s failed: %v", phone, err)
			if errors.Is(err, ErrNotConnected) {
				log.Println("🛑 Bulk send aborted: session dropped")
				break
			}
		} else {
			sent++
		}

		if i < len(phones)-1 {
			time.Sleep(b.delay)
		}
	}

	log.Printf("✅ Bulk send finished: %d sent, %d failed", sent, failed)
}
