package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quasar/mcfleet/internal/store"
)

// softKillTimeout is the grace period a task gets to finish on its own
// before SoftKill falls back to aborting it.
const softKillTimeout = 8 * time.Second

// abortGrace bounds how long an aborted task may take to acknowledge the
// cancellation before SoftKill gives up on it.
const abortGrace = time.Second

// task is one supervised connection run: a cancellation handle plus a
// channel closed when the goroutine exits.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Instance is one server connection attempt and its concurrent execution.
// The running flag is the single source of truth for whether the instance is
// considered active, independent of whether the network task has finished.
type Instance struct {
	ID      uuid.UUID
	Account Account
	Target  store.Server
	Version Version

	connector Connector
	notify    Notifier
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
	pending []string
	conn    Conn
	task    *task
}

func NewInstance(id uuid.UUID, account Account, target store.Server, version Version,
	connector Connector, notify Notifier, logger *zap.Logger) *Instance {
	if notify == nil {
		notify = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instance{
		ID:        id,
		Account:   account,
		Target:    target,
		Version:   version,
		connector: connector,
		notify:    notify,
		logger:    logger,
	}
}

// Running reports the logical running flag.
func (i *Instance) Running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.running
}

func (i *Instance) setRunning(v bool) {
	i.mu.Lock()
	i.running = v
	i.mu.Unlock()
}

// SendMessage queues a chat message for the next tick flush. Messages are
// delivered in the order enqueued. Fails when the instance is offline; the
// message is not enqueued in that case.
func (i *Instance) SendMessage(message string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.running {
		return ErrOffline
	}
	i.pending = append(i.pending, message)
	return nil
}

// drainPending snapshots and clears the queue. Everything enqueued before
// the tick is flushed; anything enqueued afterward waits for the next tick.
func (i *Instance) drainPending() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.pending
	i.pending = nil
	return out
}

// Connect starts the background connection task. If the instance is already
// connected the previous task is torn down first, so two successive calls
// leave exactly one active task.
func (i *Instance) Connect() {
	if err := i.Kill(); err != nil && !IsNotConnected(err) {
		i.logger.Warn("failed to kill previous connection task", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}

	i.mu.Lock()
	i.running = true
	i.task = t
	i.mu.Unlock()

	go i.run(ctx, t.done)
}

func (i *Instance) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	conn, err := i.connector.Connect(ctx, i.Account, i.Target, i.Version)
	if err != nil {
		i.logger.Warn("connection failed",
			zap.String("instance", i.ID.String()),
			zap.String("target", i.Target.Addr()),
			zap.Error(err))
		i.setRunning(false)
		i.notify.Disconnected(i.ID, err.Error())
		return
	}

	i.mu.Lock()
	i.conn = conn
	i.mu.Unlock()
	defer func() {
		// Close on every exit path so an aborted task cannot leak the
		// connection. Disconnect must tolerate being called twice.
		if err := conn.Disconnect(); err != nil {
			i.logger.Debug("disconnect during task teardown", zap.Error(err))
		}
		i.mu.Lock()
		i.conn = nil
		i.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.Events():
			if !ok {
				i.setRunning(false)
				return
			}
			switch ev := ev.(type) {
			case TickEvent:
				if !i.Running() {
					if err := conn.Disconnect(); err != nil {
						i.logger.Debug("disconnect on stop request", zap.Error(err))
					}
					i.notify.Disconnected(i.ID, "disconnect requested")
					return
				}
				for _, msg := range i.drainPending() {
					if err := conn.Chat(msg); err != nil {
						i.logger.Warn("failed to send chat message",
							zap.String("instance", i.ID.String()), zap.Error(err))
					}
				}
			case ChatEvent:
				i.notify.Chat(i.ID, ev.Message)
			case ConnectEvent:
				i.logger.Info("connected to server",
					zap.String("instance", i.ID.String()),
					zap.String("target", i.Target.Addr()),
					zap.Duration("latency", ev.Latency))
				i.notify.Connected(i.ID, ev.Latency)
			case DisconnectEvent:
				i.setRunning(false)
				i.notify.Disconnected(i.ID, ev.Reason)
				return
			case PacketEvent:
				// Command interpretation and packet decoding belong to the
				// connection capability, not the session.
				i.logger.Debug("unhandled packet",
					zap.String("instance", i.ID.String()), zap.Int32("packet", ev.ID))
			}
		}
	}
}

// DisconnectNotify requests a graceful stop: it flips the running flag and
// lets the task observe it on its next tick. The preferred shutdown path.
func (i *Instance) DisconnectNotify() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.running {
		return &NotConnectedError{Source: SourceState}
	}
	i.running = false
	return nil
}

// Disconnect closes the underlying connection handle directly, bypassing the
// tick loop. DisconnectNotify is usually the better choice.
func (i *Instance) Disconnect() error {
	i.mu.Lock()
	conn := i.conn
	i.mu.Unlock()
	if conn == nil {
		return &NotConnectedError{Source: SourceHandle}
	}
	return conn.Disconnect()
}

// SoftKill waits for the background task to finish on its own, bounded by an
// 8 second grace period, then aborts it. A reclaimed task is a success; the
// error cases are a missing task and a task that survives even the abort.
func (i *Instance) SoftKill() error {
	i.mu.Lock()
	t := i.task
	i.task = nil
	i.mu.Unlock()
	if t == nil {
		return &NotConnectedError{Source: SourceTask}
	}

	select {
	case <-t.done:
		return nil
	case <-time.After(softKillTimeout):
	}

	t.cancel()
	i.setRunning(false)
	select {
	case <-t.done:
		return nil
	case <-time.After(abortGrace):
		return ErrKillTimeout
	}
}

// Kill aborts the background task immediately and clears the running flag.
func (i *Instance) Kill() error {
	i.mu.Lock()
	t := i.task
	i.task = nil
	if t != nil {
		i.running = false
	}
	i.mu.Unlock()
	if t == nil {
		return &NotConnectedError{Source: SourceTask}
	}
	t.cancel()
	return nil
}

// Close is the safety net teardown when an instance is discarded. An
// already-stopped instance is not an error.
func (i *Instance) Close() {
	if err := i.Kill(); err != nil && !IsNotConnected(err) {
		i.logger.Warn("failed to kill connection during teardown",
			zap.String("instance", i.ID.String()), zap.Error(err))
	}
}
