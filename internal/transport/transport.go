package transport

// EventType identifies a transport lifecycle or message event.
type EventType string

const (
	EventQRCode        EventType = "qr"
	EventAuthenticated EventType = "authenticated"
	EventReady         EventType = "ready"
	EventDisconnected  EventType = "disconnected"
	EventAuthFailed    EventType = "auth_failed"
	EventMessage       EventType = "message"
)

// Event is one typed event emitted by a Client. The channel-based shape
// keeps the rest of the system independent from any particular WhatsApp
// library's callback style.
type Event struct {
	Type EventType

	QRCode   string // EventQRCode: the pairing code to render as QR
	Identity string // EventReady: the network-assigned number

	Message *IncomingMessage // EventMessage
}

// IncomingMessage is one inbound message from a counterpart.
type IncomingMessage struct {
	From   string // counterpart phone, digits only
	Body   string
	FromMe bool // echo of our own send, must be ignored
}

// Client holds one live session with the messaging network. The
// connection manager is the only component allowed to create or destroy
// clients; everyone else goes through it.
type Client interface {
	// Initialize opens the session and starts emitting events.
	Initialize() error

	// Events returns the event stream. Closed when the client shuts down.
	Events() <-chan Event

	// SendText delivers a text message to a fully-qualified address
	// (digits + network suffix).
	SendText(address, text string) error

	// Logout terminates the session on the network side, invalidating
	// the pairing.
	Logout() error

	// Close tears the local connection down without logging out.
	Close()
}

// Factory creates fresh clients. Injected so tests can substitute a fake
// transport for the real WhatsApp socket.
type Factory func() (Client, error)
