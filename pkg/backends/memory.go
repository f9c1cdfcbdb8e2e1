package backends

import (
	"sync"
	"time"
)

// DefaultMemoryLimit is the number of entries a MemoryBackend keeps.
const DefaultMemoryLimit = 1000

// MemoryBackend keeps the most recent entries in memory. It backs the
// memory:// scheme and is handy for tests and diagnostics endpoints.
type MemoryBackend struct {
	mu      sync.Mutex
	entries [][]byte
	limit   int
	flushes int
	stats   writeStats
}

// NewMemoryBackend keeps at most limit entries; limit <= 0 uses DefaultMemoryLimit.
func NewMemoryBackend(limit int) *MemoryBackend {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &MemoryBackend{limit: limit}
}

// Write stores a copy of entry, evicting the oldest when full
func (m *MemoryBackend) Write(entry []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	cp := make([]byte, len(entry))
	copy(cp, entry)
	if len(m.entries) >= m.limit {
		m.entries = append(m.entries[:0], m.entries[1:]...)
	}
	m.entries = append(m.entries, cp)
	m.stats.record(len(entry), start, nil)
	return len(entry), nil
}

// Entries returns a copy of the stored entries, oldest first
func (m *MemoryBackend) Entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = string(e)
	}
	return out
}

// Flushes returns how many times Flush was called
func (m *MemoryBackend) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Flush counts the call; there is nothing to write
func (m *MemoryBackend) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

// Close is a no-op; entries remain readable
func (m *MemoryBackend) Close() error { return nil }

// SupportsAtomic returns true
func (m *MemoryBackend) SupportsAtomic() bool { return true }

// Sync is a no-op
func (m *MemoryBackend) Sync() error { return nil }

// GetStats returns backend statistics
func (m *MemoryBackend) GetStats() BackendStats {
	return m.stats.snapshot("memory")
}
