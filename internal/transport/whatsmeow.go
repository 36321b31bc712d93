package transport

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// WhatsmeowClient adapts a whatsmeow socket session to the Client
// interface. Credentials are persisted in the whatsmeow sqlstore so a
// paired session survives restarts without a new QR scan.
type WhatsmeowClient struct {
	id     string
	dsn    string
	client *whatsmeow.Client
	events chan Event

	closeMu sync.RWMutex
	closed  bool
}

// NewWhatsmeowFactory returns a Factory producing WhatsApp clients whose
// session credentials live in the given PostgreSQL database.
func NewWhatsmeowFactory(dsn string) Factory {
	return func() (Client, error) {
		if dsn == "" {
			return nil, fmt.Errorf("missing database DSN for whatsapp session store")
		}
		return &WhatsmeowClient{
			id:     uuid.NewString()[:8],
			dsn:    dsn,
			events: make(chan Event, 128),
		}, nil
	}
}

func (w *WhatsmeowClient) Initialize() error {
	container, err := sqlstore.New("postgres", w.dsn, waLog.Stdout("Database", "WARN", true))
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	device, err := container.GetFirstDevice()
	if err != nil {
		return fmt.Errorf("failed to load device: %w", err)
	}

	w.client = whatsmeow.NewClient(device, waLog.Stdout("Client", "WARN", true))
	w.client.AddEventHandler(w.handleEvent)

	if w.client.Store.ID == nil {
		// Fresh device, needs QR pairing. The channel must be obtained
		// before Connect.
		qrChan, err := w.client.GetQRChannel(context.Background())
		if err != nil {
			return fmt.Errorf("failed to open QR channel: %w", err)
		}
		go w.forwardQR(qrChan)
	}

	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	log.Printf("📱 WhatsApp client %s initializing", w.id)
	return nil
}

func (w *WhatsmeowClient) forwardQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			w.emit(Event{Type: EventQRCode, QRCode: item.Code})
		case "timeout":
			log.Printf("⚠️  WhatsApp client %s: QR pairing timed out", w.id)
			w.emit(Event{Type: EventAuthFailed})
		}
	}
}

func (w *WhatsmeowClient) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.PairSuccess:
		w.emit(Event{Type: EventAuthenticated})

	case *events.Connected:
		identity := ""
		if id := w.client.Store.ID; id != nil {
			identity = id.User
		}
		w.emit(Event{Type: EventReady, Identity: identity})

	case *events.Disconnected:
		w.emit(Event{Type: EventDisconnected})

	case *events.LoggedOut:
		w.emit(Event{Type: EventAuthFailed})

	case *events.StreamReplaced:
		// Another session took over this account. Retrying would just
		// fight it, so surface as an auth failure.
		w.emit(Event{Type: EventAuthFailed})

	case *events.Message:
		if v.Info.Chat.Server != types.DefaultUserServer {
			return // groups, broadcast lists, status updates
		}
		w.emit(Event{
			Type: EventMessage,
			Message: &IncomingMessage{
				From:   v.Info.Chat.User,
				Body:   extractText(v.Message),
				FromMe: v.Info.IsFromMe,
			},
		})
	}
}

func extractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	return msg.GetExtendedTextMessage().GetText()
}

// emit never blocks the whatsmeow callback goroutine. If the consumer
// falls behind the buffer, the event is dropped and logged. Events after
// Close are discarded.
func (w *WhatsmeowClient) emit(ev Event) {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.events <- ev:
	default:
		log.Printf("⚠️  WhatsApp client %s: event buffer full, dropping %s", w.id, ev.Type)
	}
}

func (w *WhatsmeowClient) Events() <-chan Event {
	return w.events
}

func (w *WhatsmeowClient) SendText(address, text string) error {
	if w.client == nil {
		return fmt.Errorf("client not initialized")
	}

	jid, err := types.ParseJID(address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}

	_, err = w.client.SendMessage(context.Background(), jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (w *WhatsmeowClient) Logout() error {
	if w.client == nil {
		return nil
	}
	if err := w.client.Logout(); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

func (w *WhatsmeowClient) Close() {
	w.closeMu.Lock()
	if w.closed {
		w.closeMu.Unlock()
		return
	}
	w.closed = true
	close(w.events)
	w.closeMu.Unlock()

	if w.client != nil {
		w.client.Disconnect()
	}
}
