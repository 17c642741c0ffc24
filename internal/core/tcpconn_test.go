package core

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quasar/mcfleet/internal/store"
)

func listen(t *testing.T) (net.Listener, store.Server) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	addr := ln.Addr().(*net.TCPAddr)
	return ln, store.Server{Name: "local", IP: "127.0.0.1", Port: uint16(addr.Port)}
}

// nextEvent skips tick events and returns the next meaningful one.
func nextEvent(t *testing.T, conn Conn) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-conn.Events():
			require.True(t, ok, "event channel closed")
			if _, isTick := ev.(TickEvent); isTick {
				continue
			}
			return ev
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestTCPConnectorConnectAndChat(t *testing.T) {
	ln, server := listen(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	connector := NewTCPConnector()
	conn, err := connector.Connect(context.Background(),
		OfflineAccount("Steve", uuid.New()), server, DefaultVersion())
	require.NoError(t, err)
	defer conn.Disconnect()

	remote := <-accepted
	defer remote.Close()

	ev := nextEvent(t, conn)
	connect, ok := ev.(ConnectEvent)
	require.True(t, ok, "first event is the connect notification, got %T", ev)
	assert.GreaterOrEqual(t, connect.Latency, time.Duration(0))

	require.NoError(t, conn.Chat("hello"))
	ev = nextEvent(t, conn)
	chat, ok := ev.(ChatEvent)
	require.True(t, ok, "expected chat loopback, got %T", ev)
	assert.Equal(t, "<Steve> hello", chat.Message)
}

func TestTCPConnectorServerPushAndClose(t *testing.T) {
	ln, server := listen(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	connector := NewTCPConnector()
	conn, err := connector.Connect(context.Background(),
		OfflineAccount("Steve", uuid.New()), server, DefaultVersion())
	require.NoError(t, err)
	defer conn.Disconnect()

	remote := <-accepted

	ev := nextEvent(t, conn)
	_, ok := ev.(ConnectEvent)
	require.True(t, ok)

	_, err = remote.Write([]byte{0x01, 0x02})
	require.NoError(t, err)
	ev = nextEvent(t, conn)
	packet, ok := ev.(PacketEvent)
	require.True(t, ok, "expected raw packet, got %T", ev)
	assert.Equal(t, []byte{0x01, 0x02}, packet.Data)

	require.NoError(t, remote.Close())
	ev = nextEvent(t, conn)
	disc, ok := ev.(DisconnectEvent)
	require.True(t, ok, "expected disconnect, got %T", ev)
	assert.Contains(t, disc.Reason, "connection lost")
}

func TestTCPConnectorDialFailure(t *testing.T) {
	// A listener that is immediately closed yields a refused port.
	ln, server := listen(t)
	require.NoError(t, ln.Close())

	connector := NewTCPConnector()
	connector.DialTimeout = time.Second

	_, err := connector.Connect(context.Background(),
		OfflineAccount("Steve", uuid.New()), server, DefaultVersion())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialing")
}

func TestTCPConnectorChatAfterDisconnect(t *testing.T) {
	ln, server := listen(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	connector := NewTCPConnector()
	conn, err := connector.Connect(context.Background(),
		OfflineAccount("Steve", uuid.New()), server, DefaultVersion())
	require.NoError(t, err)

	remote := <-accepted
	defer remote.Close()

	require.NoError(t, conn.Disconnect())
	require.NoError(t, conn.Disconnect(), "disconnect is idempotent")

	err = conn.Chat("too late")
	require.True(t, IsNotConnected(err))
}
