package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quasar/mcfleet/internal/store"
)

// Connector is the external capability that opens wire-level connections.
// The real implementation wraps the protocol library; tests substitute fakes.
type Connector interface {
	Connect(ctx context.Context, account Account, target store.Server, version Version) (Conn, error)
}

// Conn is one live server connection. Events delivers discrete protocol
// events until the connection ends, at which point the channel is closed.
// Disconnect asks the remote side for a clean close; the connection still
// reports its end through the event channel.
type Conn interface {
	Events() <-chan Event
	Chat(message string) error
	Disconnect() error
}

// Event is a discrete occurrence on a live connection.
type Event interface {
	isEvent()
}

// TickEvent fires once per game tick. Queued chat is flushed and the
// cooperative stop flag is observed at tick boundaries.
type TickEvent struct{}

// ChatEvent is an inbound chat message, already formatted for display.
type ChatEvent struct {
	Message string
}

// ConnectEvent signals a completed login to the server.
type ConnectEvent struct {
	Latency time.Duration
}

// DisconnectEvent signals the end of the connection.
type DisconnectEvent struct {
	Reason string
}

// PacketEvent is any other protocol packet, passed through undecoded.
type PacketEvent struct {
	ID   int32
	Data []byte
}

func (TickEvent) isEvent()       {}
func (ChatEvent) isEvent()       {}
func (ConnectEvent) isEvent()    {}
func (DisconnectEvent) isEvent() {}
func (PacketEvent) isEvent()     {}

// Notifier receives per-instance notifications from running connection
// tasks. Delivery must not block the connection's event loop.
type Notifier interface {
	Chat(id uuid.UUID, message string)
	Connected(id uuid.UUID, latency time.Duration)
	Disconnected(id uuid.UUID, reason string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Chat(uuid.UUID, string)               {}
func (NopNotifier) Connected(uuid.UUID, time.Duration)   {}
func (NopNotifier) Disconnected(uuid.UUID, string)       {}
