package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cobranca-bot/cobranca-backend/internal/ai"
	"github.com/cobranca-bot/cobranca-backend/internal/models"
	"github.com/cobranca-bot/cobranca-backend/internal/storage"
	"github.com/cobranca-bot/cobranca-backend/internal/transport"
)

// fakeClient is a controllable transport for tests: events are pushed in
// by the test, sends are recorded.
type fakeClient struct {
	mu        sync.Mutex
	events    chan transport.Event
	closed    bool
	loggedOut bool
	initErr   error
	sendErr   error
	sent      []sentMessage
}

type sentMessage struct {
	address string
	text    string
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan transport.Event, 32)}
}

func (f *fakeClient) Initialize() error {
	return f.initErr
}

func (f *fakeClient) Events() <-chan transport.Event {
	return f.events
}

func (f *fakeClient) SendText(address, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{address: address, text: text})
	return nil
}

func (f *fakeClient) Logout() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return nil
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

func (f *fakeClient) emit(ev transport.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- ev
}

func (f *fakeClient) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeClient) wasLoggedOut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedOut
}

// fakeFactory hands out fakeClients and counts how many were created.
type fakeFactory struct {
	mu      sync.Mutex
	clients []*fakeClient
	err     error
}

func (f *fakeFactory) factory() (transport.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	client := newFakeClient()
	f.clients = append(f.clients, client)
	return client, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *fakeFactory) last() *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}

// fakeCompleter records completion calls and returns a canned reply.
type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	prompts []string
	turns   [][]ai.Turn
}

func (f *fakeCompleter) Complete(_ context.Context, _, systemPrompt string, turns []ai.Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, systemPrompt)
	f.turns = append(f.turns, turns)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCompleter) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeCompleter) lastTurns() []ai.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.turns) == 0 {
		return nil
	}
	return f.turns[len(f.turns)-1]
}

// failingStore wraps a MemoryStore and fails history inserts.
type failingStore struct {
	*storage.MemoryStore
}

func (f *failingStore) CreateHistory(record *models.ConversationHistory) error {
	return fmt.Errorf("database unavailable")
}

// connectReady drives a manager into the connected state.
func connectReady(t *testing.T, m *ConnectionManager, f *fakeFactory) *fakeClient {
	t.Helper()
	_, err := m.Connect()
	require.NoError(t, err)
	client := f.last()
	require.NotNil(t, client)
	client.emit(transport.Event{Type: transport.EventReady, Identity: "5511900000000"})
	waitForStatus(t, m, StatusConnected)
	return client
}

// waitForStatus polls until the manager reaches the wanted status.
func waitForStatus(t *testing.T, m *ConnectionManager, want SessionStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.Status().Status == want
	}, time.Second, 5*time.Millisecond)
}
