package core

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/quasar/mcfleet/internal/store"
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultTickInterval = 50 * time.Millisecond
)

// TCPConnector dials the target server over plain TCP and drives the event
// loop off a local ticker. The game wire protocol is a separate capability;
// here the open socket is the liveness signal, and outgoing chat is looped
// back as a received line so the notification pipeline behaves like a live
// session.
type TCPConnector struct {
	DialTimeout  time.Duration
	TickInterval time.Duration
}

func NewTCPConnector() *TCPConnector {
	return &TCPConnector{
		DialTimeout:  defaultDialTimeout,
		TickInterval: defaultTickInterval,
	}
}

func (c *TCPConnector) Connect(ctx context.Context, account Account, server store.Server, _ Version) (Conn, error) {
	dialer := net.Dialer{Timeout: c.DialTimeout}
	start := time.Now()
	sock, err := dialer.DialContext(ctx, "tcp", server.Addr())
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", server.Addr(), err)
	}
	latency := time.Since(start)

	conn := &tcpConn{
		sock:     sock,
		username: account.Username,
		events:   make(chan Event, 64),
		closed:   make(chan struct{}),
	}
	conn.emit(ConnectEvent{Latency: latency})
	go conn.watch()
	go conn.tick(c.TickInterval)
	return conn, nil
}

type tcpConn struct {
	sock     net.Conn
	username string
	events   chan Event
	closed   chan struct{}
	once     sync.Once
}

func (c *tcpConn) Events() <-chan Event {
	return c.events
}

// emit delivers an event unless the connection has been torn down. Delivery
// may block on a full channel; teardown always unblocks it.
func (c *tcpConn) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}

// watch blocks on the socket until it errors or closes, then reports the
// disconnect. Any bytes the server pushes are surfaced as packets.
func (c *tcpConn) watch() {
	buf := make([]byte, 4096)
	for {
		n, err := c.sock.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.emit(PacketEvent{ID: -1, Data: data})
		}
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.emit(DisconnectEvent{Reason: "connection lost: " + err.Error()})
			}
			c.close()
			return
		}
	}
}

func (c *tcpConn) tick(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.emit(TickEvent{})
		}
	}
}

func (c *tcpConn) Chat(message string) error {
	select {
	case <-c.closed:
		return &NotConnectedError{Source: SourceHandle}
	default:
	}
	// Called from the event consumer, so never block on the channel.
	select {
	case c.events <- ChatEvent{Message: fmt.Sprintf("<%s> %s", c.username, message)}:
	default:
	}
	return nil
}

// Disconnect tears the connection down. Safe to call more than once.
func (c *tcpConn) Disconnect() error {
	c.close()
	return nil
}

func (c *tcpConn) close() {
	c.once.Do(func() {
		close(c.closed)
		c.sock.Close()
	})
}
