// Package history keeps a bounded most-recent-first record of completed
// interactions. It is read by the UI only and never drives control flow.
package history

import (
	"sync"

	"echodesk/internal/domain"
)

const defaultCapacity = 100

// Log is a fixed-capacity append-only store ordered newest first. Once full,
// the oldest entries are evicted.
type Log struct {
	mu       sync.Mutex
	capacity int
	entries  []domain.HistoryEntry
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Log{capacity: capacity}
}

// Append prepends an entry, evicting the oldest once capacity is exceeded.
func (l *Log) Append(entry domain.HistoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]domain.HistoryEntry{entry}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
}

// Entries returns a most-recent-first copy of the log.
func (l *Log) Entries() []domain.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.HistoryEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear discards all entries.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
