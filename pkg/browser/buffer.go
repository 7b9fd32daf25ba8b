package browser

import (
	"sync"
)

// logBuffer accumulates log entries pushed by CDP events and hands them
// out through destructive drains, preserving the poll-and-drain reading
// model over the push transport.
type logBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
}

func newLogBuffer() *logBuffer {
	return &logBuffer{}
}

func (b *logBuffer) append(e LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
}

// drain removes and returns all buffered entries in arrival order.
func (b *logBuffer) drain() []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.entries
	b.entries = nil
	return out
}
