package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cobranca-bot/cobranca-backend/internal/storage"
)

func TestSendBatch_FailsWhenNotConnected(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	d := NewOutboundDispatcher(m, storage.NewMemoryStore())
	b := NewBulkSender(d, time.Millisecond)

	err := b.SendBatch([]string{"5511999999999"}, "olá")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSendBatch_DeliversToEveryPhone(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	client := connectReady(t, m, f)
	d := NewOutboundDispatcher(m, storage.NewMemoryStore())
	b := NewBulkSender(d, time.Millisecond)

	phones := []string{"5511900000001", "5511900000002", "5511900000003"}
	require.NoError(t, b.SendBatch(phones, "lembrete de pagamento"))

	require.Eventually(t, func() bool {
		return len(client.sentMessages()) == len(phones)
	}, time.Second, 5*time.Millisecond)

	sent := client.sentMessages()
	for i, phone := range phones {
		require.Equal(t, phone+NetworkSuffix, sent[i].address)
		require.Equal(t, "lembrete de pagamento", sent[i].text)
	}
}

func TestSendBatch_RejectsOverlappingBatches(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	client := connectReady(t, m, f)
	d := NewOutboundDispatcher(m, storage.NewMemoryStore())
	b := NewBulkSender(d, 100*time.Millisecond)

	require.NoError(t, b.SendBatch([]string{"5511900000001", "5511900000002"}, "a"))
	err := b.SendBatch([]string{"5511900000003"}, "b")
	require.ErrorIs(t, err, ErrBulkInProgress)

	// The first batch still completes and frees the slot.
	require.Eventually(t, func() bool {
		return len(client.sentMessages()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return b.SendBatch([]string{"5511900000003"}, "b") == nil
	}, time.Second, 5*time.Millisecond)
}
