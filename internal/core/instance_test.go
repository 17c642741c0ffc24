package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/quasar/mcfleet/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeConn is a scriptable connection: tests push events and inspect what
// the instance sent.
type fakeConn struct {
	events chan Event

	mu     sync.Mutex
	chats  []string
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan Event, 64)}
}

func (c *fakeConn) Events() <-chan Event { return c.events }

func (c *fakeConn) Chat(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = append(c.chats, message)
	return nil
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

func (c *fakeConn) push(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.events <- ev
	}
}

func (c *fakeConn) sentChats() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.chats))
	copy(out, c.chats)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeConnector struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (f *fakeConnector) Connect(ctx context.Context, _ Account, _ store.Server, _ Version) (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := newFakeConn()
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeConnector) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.conns) {
		return nil
	}
	return f.conns[i]
}

func (f *fakeConnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// recordingNotifier captures notifications thread-safely.
type recordingNotifier struct {
	mu          sync.Mutex
	chats       []string
	connects    int
	disconnects []string
}

func (n *recordingNotifier) Chat(_ uuid.UUID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chats = append(n.chats, message)
}

func (n *recordingNotifier) Connected(uuid.UUID, time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connects++
}

func (n *recordingNotifier) Disconnected(_ uuid.UUID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disconnects = append(n.disconnects, reason)
}

func (n *recordingNotifier) lastDisconnect() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.disconnects) == 0 {
		return ""
	}
	return n.disconnects[len(n.disconnects)-1]
}

func (n *recordingNotifier) receivedChats() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.chats))
	copy(out, n.chats)
	return out
}

func testServer() store.Server {
	return store.Server{Name: "local", IP: "127.0.0.1", Port: 25565}
}

func newTestInstance(connector Connector, notify Notifier) *Instance {
	return NewInstance(uuid.New(), OfflineAccount("Steve", uuid.New()),
		testServer(), DefaultVersion(), connector, notify, nil)
}

func waitForConn(t *testing.T, connector *fakeConnector, i int) *fakeConn {
	t.Helper()
	require.Eventually(t, func() bool {
		return connector.conn(i) != nil
	}, time.Second, 5*time.Millisecond)
	return connector.conn(i)
}

func TestSendMessageOfflineRejected(t *testing.T) {
	inst := newTestInstance(&fakeConnector{}, nil)

	err := inst.SendMessage("hello")
	require.ErrorIs(t, err, ErrOffline)
	assert.Empty(t, inst.pending, "rejected messages are not enqueued")
}

func TestTickFlushesQueuedChatInOrder(t *testing.T) {
	connector := &fakeConnector{}
	notify := &recordingNotifier{}
	inst := newTestInstance(connector, notify)

	inst.Connect()
	defer inst.Close()
	conn := waitForConn(t, connector, 0)

	require.NoError(t, inst.SendMessage("first"))
	require.NoError(t, inst.SendMessage("second"))
	conn.push(TickEvent{})
	require.Eventually(t, func() bool {
		return len(conn.sentChats()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, conn.sentChats())

	// A message queued after the flush waits for the next tick.
	require.NoError(t, inst.SendMessage("third"))
	assert.Len(t, conn.sentChats(), 2)
	conn.push(TickEvent{})
	require.Eventually(t, func() bool {
		return len(conn.sentChats()) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"first", "second", "third"}, conn.sentChats())
}

func TestGracefulStopObservedAtTick(t *testing.T) {
	connector := &fakeConnector{}
	notify := &recordingNotifier{}
	inst := newTestInstance(connector, notify)

	inst.Connect()
	conn := waitForConn(t, connector, 0)
	require.True(t, inst.Running())

	require.NoError(t, inst.DisconnectNotify())
	assert.False(t, inst.Running())

	conn.push(TickEvent{})
	require.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return notify.lastDisconnect() == "disconnect requested"
	}, time.Second, 5*time.Millisecond)

	// The task exited on its own; reclaiming it succeeds immediately.
	require.NoError(t, inst.SoftKill())
}

func TestDisconnectNotifyWhenOffline(t *testing.T) {
	inst := newTestInstance(&fakeConnector{}, nil)

	err := inst.DisconnectNotify()
	require.True(t, IsNotConnected(err))
	var nc *NotConnectedError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, SourceState, nc.Source)
	assert.Equal(t, "instance is not connected [state]", err.Error())
}

func TestStopSourcesDistinguished(t *testing.T) {
	inst := newTestInstance(&fakeConnector{}, nil)

	var nc *NotConnectedError

	require.ErrorAs(t, inst.Disconnect(), &nc)
	assert.Equal(t, SourceHandle, nc.Source)

	require.ErrorAs(t, inst.SoftKill(), &nc)
	assert.Equal(t, SourceTask, nc.Source)

	require.ErrorAs(t, inst.Kill(), &nc)
	assert.Equal(t, SourceTask, nc.Source)
}

func TestConnectTwiceLeavesOneTask(t *testing.T) {
	connector := &fakeConnector{}
	inst := newTestInstance(connector, &recordingNotifier{})

	inst.Connect()
	first := waitForConn(t, connector, 0)

	inst.Connect()
	defer inst.Close()
	second := waitForConn(t, connector, 1)

	require.Eventually(t, first.isClosed, time.Second, 5*time.Millisecond,
		"previous connection is torn down")
	assert.False(t, second.isClosed())
	assert.True(t, inst.Running())
	assert.Equal(t, 2, connector.count())
}

func TestServerDisconnectStopsInstance(t *testing.T) {
	connector := &fakeConnector{}
	notify := &recordingNotifier{}
	inst := newTestInstance(connector, notify)

	inst.Connect()
	conn := waitForConn(t, connector, 0)

	conn.push(DisconnectEvent{Reason: "kicked"})
	require.Eventually(t, func() bool {
		return notify.lastDisconnect() == "kicked"
	}, time.Second, 5*time.Millisecond)
	assert.False(t, inst.Running())

	// The task already ended; only the handle needs reclaiming.
	require.NoError(t, inst.SoftKill())
}

func TestChatAndConnectEventsNotify(t *testing.T) {
	connector := &fakeConnector{}
	notify := &recordingNotifier{}
	inst := newTestInstance(connector, notify)

	inst.Connect()
	defer inst.Close()
	conn := waitForConn(t, connector, 0)

	conn.push(ConnectEvent{Latency: 42 * time.Millisecond})
	conn.push(ChatEvent{Message: "<Steve> hi"})
	conn.push(ChatEvent{Message: "<Alex> hello"})

	require.Eventually(t, func() bool {
		return len(notify.receivedChats()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"<Steve> hi", "<Alex> hello"}, notify.receivedChats())

	notify.mu.Lock()
	defer notify.mu.Unlock()
	assert.Equal(t, 1, notify.connects)
}

func TestConnectFailureReportsDisconnect(t *testing.T) {
	connector := &fakeConnector{err: context.DeadlineExceeded}
	notify := &recordingNotifier{}
	inst := newTestInstance(connector, notify)

	inst.Connect()
	require.Eventually(t, func() bool {
		return notify.lastDisconnect() != ""
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, notify.lastDisconnect(), "deadline")
	assert.False(t, inst.Running())
}

func TestKillAbortsImmediately(t *testing.T) {
	connector := &fakeConnector{}
	inst := newTestInstance(connector, &recordingNotifier{})

	inst.Connect()
	conn := waitForConn(t, connector, 0)

	require.NoError(t, inst.Kill())
	assert.False(t, inst.Running())
	require.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)

	// The task is gone; a second kill has nothing to do.
	require.True(t, IsNotConnected(inst.Kill()))
}

func TestSoftKillForcesAbortOfStuckTask(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the soft-kill grace period")
	}

	connector := &fakeConnector{}
	inst := newTestInstance(connector, &recordingNotifier{})

	inst.Connect()
	waitForConn(t, connector, 0)

	// The task never sees a tick, so it cannot observe a cooperative stop.
	// SoftKill waits out the grace period, aborts, and still succeeds.
	start := time.Now()
	require.NoError(t, inst.SoftKill())
	assert.GreaterOrEqual(t, time.Since(start), softKillTimeout)
	assert.False(t, inst.Running())
}
