package relay

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatLog accumulates chat lines per instance and appends them to one log
// file per instance on each flush. Color escape sequences are stripped so
// the files stay grep-able.
type ChatLog struct {
	dir    string
	logger *zap.Logger

	mu      sync.Mutex
	pending map[uuid.UUID][]string
}

func NewChatLog(dir string, logger *zap.Logger) *ChatLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatLog{
		dir:     dir,
		logger:  logger,
		pending: make(map[uuid.UUID][]string),
	}
}

// Append queues one chat line for the next flush.
func (l *ChatLog) Append(id uuid.UUID, line string) {
	l.mu.Lock()
	l.pending[id] = append(l.pending[id], line)
	l.mu.Unlock()
}

func (l *ChatLog) runFlusher(ctx context.Context) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Flush()
		}
	}
}

// Flush writes all pending lines to their per-instance log files.
// Write failures are logged and the lines dropped; the flusher never stops.
func (l *ChatLog) Flush() {
	l.mu.Lock()
	batch := l.pending
	l.pending = make(map[uuid.UUID][]string)
	l.mu.Unlock()

	if l.dir == "" {
		return
	}
	for id, lines := range batch {
		path := filepath.Join(l.dir, id.String()+".log")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			l.logger.Warn("failed to open chat log", zap.String("path", path), zap.Error(err))
			continue
		}
		for _, line := range lines {
			if _, err := f.WriteString(ansi.Strip(line) + "\n"); err != nil {
				l.logger.Warn("failed to write chat log", zap.String("path", path), zap.Error(err))
				break
			}
		}
		f.Close()
	}
}
