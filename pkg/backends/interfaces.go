package backends

import (
	"sync"
	"time"

	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// Backend is a byte-oriented output. Sinks format entries and hand the
// encoded bytes to a Backend.
type Backend interface {
	// Write writes one encoded entry to the backend
	Write(entry []byte) (int, error)

	// Flush ensures all buffered data is written
	Flush() error

	// Close closes the backend
	Close() error

	// SupportsAtomic returns whether the backend supports atomic writes
	SupportsAtomic() bool

	// Sync syncs the backend to persistent storage
	Sync() error

	// GetStats returns backend statistics
	GetStats() BackendStats
}

// LevelWriter is implemented by backends whose framing depends on the
// entry's severity, such as syslog priorities.
type LevelWriter interface {
	WriteLevel(level types.Level, entry []byte) (int, error)
}

// BackendStats represents statistics for a backend
type BackendStats struct {
	Path           string        `json:"path"`
	Size           int64         `json:"size"`
	WriteCount     uint64        `json:"write_count"`
	BytesWritten   uint64        `json:"bytes_written"`
	ErrorCount     uint64        `json:"error_count"`
	LastError      time.Time     `json:"last_error,omitempty"`
	TotalWriteTime time.Duration `json:"total_write_time"`
	MaxWriteTime   time.Duration `json:"max_write_time"`
}

// writeStats accumulates BackendStats for a backend.
type writeStats struct {
	mu    sync.Mutex
	stats BackendStats
}

func (w *writeStats) record(n int, started time.Time, err error) {
	elapsed := time.Since(started)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.stats.ErrorCount++
		w.stats.LastError = time.Now()
		return
	}
	w.stats.WriteCount++
	if n > 0 {
		w.stats.BytesWritten += uint64(n)
		w.stats.Size += int64(n)
	}
	w.stats.TotalWriteTime += elapsed
	if elapsed > w.stats.MaxWriteTime {
		w.stats.MaxWriteTime = elapsed
	}
}

func (w *writeStats) snapshot(path string) BackendStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stats
	s.Path = path
	return s
}
