package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cobranca-bot/cobranca-backend/internal/models"
	"github.com/cobranca-bot/cobranca-backend/internal/storage"
)

func TestNormalizeAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"5511999999999", "5511999999999@s.whatsapp.net"},
		{"+55 (11) 99999-9999", "5511999999999@s.whatsapp.net"},
		{"5511999999999@s.whatsapp.net", "5511999999999@s.whatsapp.net"},
		{"5511999999999@g.us", "5511999999999@g.us"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, NormalizeAddress(c.in))
	}
}

func TestSend_FailsWhenNotConnected(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	store := storage.NewMemoryStore()
	d := NewOutboundDispatcher(m, store)

	err := d.Send("5511999999999", "olá")
	require.ErrorIs(t, err, ErrNotConnected)

	// Nothing persisted for a message that never left.
	history, err := store.GetHistoryByPhone("5511999999999")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestSend_PersistsAssistantMessageAndTouchesConversation(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	client := connectReady(t, m, f)
	store := storage.NewMemoryStore()
	customer := store.AddCustomer(&models.Customer{
		Phone: "5511999999999",
		Name:  "João",
	})
	d := NewOutboundDispatcher(m, store)

	before := time.Now()
	err := d.Send("+55 11 99999-9999", "Bom dia, João")
	require.NoError(t, err)

	sent := client.sentMessages()
	require.Len(t, sent, 1)
	require.Equal(t, "5511999999999@s.whatsapp.net", sent[0].address)
	require.Equal(t, "Bom dia, João", sent[0].text)

	history, err := store.GetHistoryByPhone("5511999999999")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, models.RoleAssistant, history[0].Role)
	require.NotNil(t, history[0].CustomerID)
	require.Equal(t, customer.ID, *history[0].CustomerID)

	conv, err := store.GetConversationByPhone("5511999999999")
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.False(t, conv.LastMessageAt.Before(before))
}

func TestSend_TransportFailurePersistsNothing(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	client := connectReady(t, m, f)
	client.sendErr = errors.New("socket closed")
	store := storage.NewMemoryStore()
	d := NewOutboundDispatcher(m, store)

	err := d.Send("5511999999999", "olá")
	require.Error(t, err)

	history, err := store.GetHistoryByPhone("5511999999999")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestSend_PersistFailureAfterDeliveryIsNotAnError(t *testing.T) {
	// The message already reached the phone; reporting an error upstream
	// would invite a duplicate send.
	f := &fakeFactory{}
	m := newTestManager(f)
	client := connectReady(t, m, f)
	store := &failingStore{MemoryStore: storage.NewMemoryStore()}
	d := NewOutboundDispatcher(m, store)

	err := d.Send("5511999999999", "olá")
	require.NoError(t, err)
	require.Len(t, client.sentMessages(), 1)
}
