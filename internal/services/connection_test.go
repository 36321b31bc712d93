package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cobranca-bot/cobranca-backend/internal/transport"
)

func newTestManager(f *fakeFactory) *ConnectionManager {
	return NewConnectionManager(f.factory, 30*time.Millisecond)
}

func TestConnect_DoubleCallCreatesSingleClient(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)

	first, err := m.Connect()
	require.NoError(t, err)
	require.Equal(t, StatusPairing, first.Status)

	second, err := m.Connect()
	require.NoError(t, err)
	require.Equal(t, StatusPairing, second.Status)

	require.Equal(t, 1, f.count())
}

func TestConnect_IdempotentWhileConnected(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	connectReady(t, m, f)

	session, err := m.Connect()
	require.NoError(t, err)
	require.Equal(t, StatusConnected, session.Status)
	require.Equal(t, 1, f.count())
}

func TestQRCode_StoredAndReplaced(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)

	_, err := m.Connect()
	require.NoError(t, err)
	client := f.last()

	client.emit(transport.Event{Type: transport.EventQRCode, QRCode: "qr-one"})
	require.Eventually(t, func() bool {
		return m.Status().QRCode == "qr-one"
	}, time.Second, 5*time.Millisecond)

	client.emit(transport.Event{Type: transport.EventQRCode, QRCode: "qr-two"})
	require.Eventually(t, func() bool {
		return m.Status().QRCode == "qr-two"
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, StatusPairing, m.Status().Status)
}

func TestReady_ClearsQRCodeAndRecordsIdentity(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)

	_, err := m.Connect()
	require.NoError(t, err)
	client := f.last()

	client.emit(transport.Event{Type: transport.EventQRCode, QRCode: "qr-one"})
	client.emit(transport.Event{Type: transport.EventReady, Identity: "5511900000000"})
	waitForStatus(t, m, StatusConnected)

	session := m.Status()
	require.Empty(t, session.QRCode)
	require.Equal(t, "5511900000000", session.Identity)
}

func TestDisconnect_ClearsSessionAndLogsOut(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	client := connectReady(t, m, f)

	m.Disconnect()

	session := m.Status()
	require.Equal(t, StatusDisconnected, session.Status)
	require.Empty(t, session.QRCode)
	require.Empty(t, session.Identity)
	require.True(t, client.wasLoggedOut())

	// No automatic reconnect after an intentional logout.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, f.count())
}

func TestTransportDrop_SchedulesExactlyOneReconnect(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	client := connectReady(t, m, f)

	// Two drop events before the backoff fires must not stack timers.
	client.emit(transport.Event{Type: transport.EventDisconnected})
	client.emit(transport.Event{Type: transport.EventDisconnected})
	waitForStatus(t, m, StatusDisconnected)

	require.Eventually(t, func() bool {
		return f.count() == 2
	}, time.Second, 5*time.Millisecond)

	// And only one new client ever appears.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 2, f.count())
}

func TestConnect_DuringBackoffReturnsAlreadyActive(t *testing.T) {
	f := &fakeFactory{}
	m := NewConnectionManager(f.factory, 200*time.Millisecond)
	client := connectReady(t, m, f)

	client.emit(transport.Event{Type: transport.EventDisconnected})
	waitForStatus(t, m, StatusDisconnected)

	_, err := m.Connect()
	require.ErrorIs(t, err, ErrAlreadyActive)
}

func TestDisconnect_CancelsPendingReconnect(t *testing.T) {
	f := &fakeFactory{}
	m := NewConnectionManager(f.factory, 200*time.Millisecond)
	client := connectReady(t, m, f)

	client.emit(transport.Event{Type: transport.EventDisconnected})
	waitForStatus(t, m, StatusDisconnected)

	m.Disconnect()

	time.Sleep(300 * time.Millisecond)
	require.Equal(t, 1, f.count())
	require.Equal(t, StatusDisconnected, m.Status().Status)
}

func TestAuthFailure_IsTerminalUntilOperatorReconnects(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)
	client := connectReady(t, m, f)

	client.emit(transport.Event{Type: transport.EventAuthFailed})
	waitForStatus(t, m, StatusDisconnected)

	// No automatic retry.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, f.count())

	// But an explicit Connect works again.
	_, err := m.Connect()
	require.NoError(t, err)
	require.Equal(t, 2, f.count())
}

func TestSubscribe_ReceivesStatusAndQREvents(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)

	events := m.Subscribe()
	defer m.Unsubscribe(events)

	_, err := m.Connect()
	require.NoError(t, err)
	client := f.last()
	client.emit(transport.Event{Type: transport.EventQRCode, QRCode: "qr-one"})
	client.emit(transport.Event{Type: transport.EventReady, Identity: "5511900000000"})

	seen := map[string]string{}
	deadline := time.After(time.Second)
	for len(seen) < 2 {
		select {
		case ev := <-events:
			switch ev.Type {
			case "qr":
				seen["qr"] = ev.Data
			case "status":
				if ev.Status == string(StatusConnected) {
					seen["connected"] = ev.Status
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %v", seen)
		}
	}

	require.Equal(t, "qr-one", seen["qr"])
	require.Equal(t, "connected", seen["connected"])
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)

	// Never drained: its buffer will fill and overflow must be dropped.
	slow := m.Subscribe()
	defer m.Unsubscribe(slow)
	live := m.Subscribe()
	defer m.Unsubscribe(live)

	_, err := m.Connect()
	require.NoError(t, err)
	client := f.last()

	for i := 0; i < 50; i++ {
		client.emit(transport.Event{Type: transport.EventQRCode, QRCode: "qr"})
	}

	received := 0
	timeout := time.After(time.Second)
	for received < 20 {
		select {
		case <-live:
			received++
		case <-timeout:
			t.Fatalf("live subscriber starved after %d events", received)
		}
	}
}

func TestSendText_FailsWhenNotConnected(t *testing.T) {
	f := &fakeFactory{}
	m := newTestManager(f)

	err := m.SendText("5511999999999@s.whatsapp.net", "hello")
	require.ErrorIs(t, err, ErrNotConnected)
}
