package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// flushInterval is the chat-log flush cadence.
const flushInterval = 400 * time.Millisecond

// Sink receives (instance-id, payload) pairs for display. Ordering within
// one instance id is preserved; ordering across ids is not guaranteed.
type Sink interface {
	Emit(key uuid.UUID, payload Payload) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(key uuid.UUID, payload Payload) error

func (f SinkFunc) Emit(key uuid.UUID, payload Payload) error {
	return f(key, payload)
}

type event struct {
	key     uuid.UUID
	payload Payload
}

// Relay owns the outbound notification channel and the chat-log flusher.
// Sends are fire-and-forget: a full channel drops the payload with a log
// line rather than blocking the connection task that produced it.
type Relay struct {
	events  chan event
	chatLog *ChatLog
	logger  *zap.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New starts the relay's delivery task and, if logsDir is non-empty, the
// periodic chat-log flusher. Close stops both and waits for them.
func New(sink Sink, buffer int, logsDir string, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 32
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	r := &Relay{
		events:  make(chan event, buffer),
		chatLog: NewChatLog(logsDir, logger),
		logger:  logger,
		cancel:  cancel,
		group:   group,
	}

	group.Go(func() error {
		return r.deliver(ctx, sink)
	})
	if logsDir != "" {
		group.Go(func() error {
			return r.chatLog.runFlusher(ctx)
		})
	}

	logger.Info("notification relay started")
	return r
}

func (r *Relay) deliver(ctx context.Context, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.events:
			if err := sink.Emit(ev.key, ev.payload); err != nil {
				r.logger.Error("error emitting event",
					zap.String("key", ev.key.String()), zap.Error(err))
			}
		}
	}
}

// Send queues a payload for delivery without blocking the caller.
func (r *Relay) Send(key uuid.UUID, payload Payload) {
	select {
	case r.events <- event{key: key, payload: payload}:
	default:
		r.logger.Warn("relay channel full, dropping payload",
			zap.String("key", key.String()), zap.String("kind", string(payload.Kind)))
	}
}

// Chat implements core.Notifier.
func (r *Relay) Chat(id uuid.UUID, message string) {
	r.chatLog.Append(id, message)
	r.Send(id, ChatPayload(message))
}

// Connected implements core.Notifier.
func (r *Relay) Connected(id uuid.UUID, latency time.Duration) {
	r.Send(id, ConnectPayload(latency))
}

// Disconnected implements core.Notifier.
func (r *Relay) Disconnected(id uuid.UUID, reason string) {
	r.chatLog.Append(id, "Disconnected from server: "+reason)
	r.Send(id, DisconnectPayload(reason))
}

// Close stops the background tasks, waits for them, and flushes any
// remaining chat history.
func (r *Relay) Close() error {
	r.cancel()
	err := r.group.Wait()
	r.chatLog.Flush()
	return err
}
