package services

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cobranca-bot/cobranca-backend/internal/transport"
)

// SessionStatus is the state of the WhatsApp session state machine.
type SessionStatus string

const (
	StatusDisconnected  SessionStatus = "disconnected"
	StatusPairing       SessionStatus = "pairing"
	StatusAuthenticated SessionStatus = "authenticated"
	StatusConnected     SessionStatus = "connected"
)

// Session is a read-only snapshot of the current connection state.
type Session struct {
	Status   SessionStatus `json:"status"`
	QRCode   string        `json:"qr_code,omitempty"`
	Identity string        `json:"identity,omitempty"`
}

// StatusEvent is what subscribers (the operator UI over WebSocket)
// receive whenever the session state or pairing code changes.
type StatusEvent struct {
	Type   string `json:"type"` // "status" | "qr"
	Status string `json:"status,omitempty"`
	Data   string `json:"data,omitempty"`
}

var (
	// ErrAlreadyActive means a stale transport client still exists and
	// must be cleared with Disconnect before connecting again.
	ErrAlreadyActive = errors.New("a whatsapp client is already active")

	// ErrNotConnected means a send was attempted without a connected session.
	ErrNotConnected = errors.New("whatsapp is not connected")
)

// InboundHandler receives every inbound message from the live transport.
type InboundHandler func(msg transport.IncomingMessage)

// DefaultReconnectDelay is how long the manager waits before redialing
// after an unexpected transport drop.
const DefaultReconnectDelay = 3 * time.Second

// ConnectionManager owns the single transport client and drives the
// session state machine. All other components read status or send
// through it; only the manager creates, replaces or destroys clients.
type ConnectionManager struct {
	mu             sync.Mutex
	factory        transport.Factory
	client         transport.Client
	session        Session
	reconnect      *time.Timer
	reconnectDelay time.Duration
	loggingOut     bool
	inbound        InboundHandler

	subMu       sync.RWMutex
	subscribers map[chan StatusEvent]struct{}
}

// NewConnectionManager creates a manager around a transport factory.
func NewConnectionManager(factory transport.Factory, reconnectDelay time.Duration) *ConnectionManager {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &ConnectionManager{
		factory:        factory,
		session:        Session{Status: StatusDisconnected},
		reconnectDelay: reconnectDelay,
		subscribers:    make(map[chan StatusEvent]struct{}),
	}
}

// SetInboundHandler registers the pipeline that consumes inbound
// messages. Must be called before Connect.
func (m *ConnectionManager) SetInboundHandler(h InboundHandler) {
	m.mu.Lock()
	m.inbound = h
	m.mu.Unlock()
}

// Connect creates and initializes a fresh transport client. While a
// client is already connecting or connected the call is idempotent and
// returns the current session. A stale client that is disconnected but
// not yet cleared yields ErrAlreadyActive.
func (m *ConnectionManager) Connect() (Session, error) {
	m.mu.Lock()
	if m.client != nil {
		sess := m.session
		m.mu.Unlock()
		if sess.Status != StatusDisconnected {
			return sess, nil
		}
		return sess, ErrAlreadyActive
	}

	client, err := m.factory()
	if err != nil {
		m.mu.Unlock()
		return Session{Status: StatusDisconnected}, err
	}

	m.client = client
	m.loggingOut = false
	m.session = Session{Status: StatusPairing}
	m.mu.Unlock()

	go m.drainEvents(client)

	if err := client.Initialize(); err != nil {
		log.Printf("❌ WhatsApp initialization failed: %v", err)
		m.mu.Lock()
		if m.client == client {
			m.client = nil
			m.session = Session{Status: StatusDisconnected}
		}
		m.mu.Unlock()
		client.Close()
		m.broadcastStatus(StatusDisconnected)
		return Session{Status: StatusDisconnected}, err
	}

	m.broadcastStatus(StatusPairing)
	return m.Status(), nil
}

// Disconnect logs the session out and resets the state machine. Always
// safe to call; cancels any pending reconnect.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	client := m.client
	m.client = nil
	m.loggingOut = true
	m.session = Session{Status: StatusDisconnected}
	m.mu.Unlock()

	if client != nil {
		if err := client.Logout(); err != nil {
			log.Printf("⚠️  WhatsApp logout error: %v", err)
		}
		client.Close()
		log.Println("🛑 WhatsApp disconnected by operator")
	}

	m.broadcastStatus(StatusDisconnected)
}

// Shutdown closes the local connection without logging out, so the
// pairing survives a process restart. Used on graceful shutdown only.
func (m *ConnectionManager) Shutdown() {
	m.mu.Lock()
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	client := m.client
	m.client = nil
	m.loggingOut = true
	m.session = Session{Status: StatusDisconnected}
	m.mu.Unlock()

	if client != nil {
		client.Close()
	}
}

// Status returns a snapshot of the current session. Non-blocking.
func (m *ConnectionManager) Status() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// SendText delivers text through the live client. Callers are expected
// to have normalized the address already.
func (m *ConnectionManager) SendText(address, text string) error {
	m.mu.Lock()
	client := m.client
	status := m.session.Status
	m.mu.Unlock()

	if client == nil || status != StatusConnected {
		return ErrNotConnected
	}
	return client.SendText(address, text)
}

// Subscribe registers a status observer. The returned channel is
// buffered; slow observers lose events instead of blocking delivery.
func (m *ConnectionManager) Subscribe() chan StatusEvent {
	ch := make(chan StatusEvent, 16)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes an observer and closes its channel.
func (m *ConnectionManager) Unsubscribe(ch chan StatusEvent) {
	m.subMu.Lock()
	if _, ok := m.subscribers[ch]; ok {
		delete(m.subscribers, ch)
		close(ch)
	}
	m.subMu.Unlock()
}

func (m *ConnectionManager) broadcast(ev StatusEvent) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (m *ConnectionManager) broadcastStatus(status SessionStatus) {
	m.broadcast(StatusEvent{Type: "status", Status: string(status)})
}

// drainEvents consumes the typed event stream of one client. Events from
// a client the manager no longer owns are ignored, so a replaced client
// cannot corrupt the state machine.
func (m *ConnectionManager) drainEvents(client transport.Client) {
	for ev := range client.Events() {
		switch ev.Type {
		case transport.EventQRCode:
			m.mu.Lock()
			if m.client != client {
				m.mu.Unlock()
				continue
			}
			m.session.Status = StatusPairing
			m.session.QRCode = ev.QRCode
			m.mu.Unlock()
			log.Println("📱 QR code received, waiting for scan")
			m.broadcast(StatusEvent{Type: "qr", Data: ev.QRCode})

		case transport.EventAuthenticated:
			m.mu.Lock()
			if m.client != client {
				m.mu.Unlock()
				continue
			}
			m.session.Status = StatusAuthenticated
			m.mu.Unlock()
			log.Println("🔓 WhatsApp authenticated")
			m.broadcastStatus(StatusAuthenticated)

		case transport.EventReady:
			m.mu.Lock()
			if m.client != client {
				m.mu.Unlock()
				continue
			}
			m.session = Session{
				Status:   StatusConnected,
				Identity: ev.Identity,
			}
			m.mu.Unlock()
			log.Printf("✅ WhatsApp connected! Number: %s", ev.Identity)
			m.broadcastStatus(StatusConnected)

		case transport.EventDisconnected:
			m.handleDrop(client)

		case transport.EventAuthFailed:
			m.handleAuthFailure(client)

		case transport.EventMessage:
			if ev.Message == nil {
				continue
			}
			m.mu.Lock()
			owned := m.client == client
			handler := m.inbound
			m.mu.Unlock()
			if owned && handler != nil {
				handler(*ev.Message)
			}
		}
	}
}

// handleDrop reacts to a transport-initiated disconnect: reset to
// disconnected and schedule exactly one reconnect attempt. The stale
// client stays owned until the attempt fires, so a concurrent Connect
// during the backoff window observes ErrAlreadyActive instead of racing
// a second session into existence.
func (m *ConnectionManager) handleDrop(client transport.Client) {
	m.mu.Lock()
	if m.client != client || m.loggingOut {
		m.mu.Unlock()
		return
	}
	m.session = Session{Status: StatusDisconnected}

	scheduled := false
	if m.reconnect == nil {
		m.reconnect = time.AfterFunc(m.reconnectDelay, func() {
			m.mu.Lock()
			m.reconnect = nil
			if m.client == client {
				m.client = nil
			}
			// Disconnect can race a firing timer; an operator logout
			// must stay logged out.
			abort := m.loggingOut
			m.mu.Unlock()
			if abort {
				return
			}
			if _, err := m.Connect(); err != nil {
				log.Printf("❌ Reconnect failed: %v", err)
			}
		})
		scheduled = true
	}
	m.mu.Unlock()

	client.Close()
	if scheduled {
		log.Printf("⚠️  WhatsApp dropped, reconnecting in %v...", m.reconnectDelay)
	}
	m.broadcastStatus(StatusDisconnected)
}

// handleAuthFailure is terminal: the session resets and stays down until
// an operator calls Connect again.
func (m *ConnectionManager) handleAuthFailure(client transport.Client) {
	m.mu.Lock()
	if m.client != client {
		m.mu.Unlock()
		return
	}
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.client = nil
	m.session = Session{Status: StatusDisconnected}
	m.mu.Unlock()

	client.Close()
	log.Println("❌ WhatsApp authentication failed - reconnect manually")
	m.broadcastStatus(StatusDisconnected)
}
