package backends

import (
	"bufio"
	"io"
	"os"
	"sync"
	"time"
)

// ConsoleBackend writes to stdout, stderr or any io.Writer.
type ConsoleBackend struct {
	mu     sync.Mutex
	out    io.Writer
	writer *bufio.Writer
	path   string
	stats  writeStats
}

// NewConsoleBackend creates a backend over out. path is only used in stats.
func NewConsoleBackend(out io.Writer, path string) *ConsoleBackend {
	return &ConsoleBackend{
		out:    out,
		writer: bufio.NewWriter(out),
		path:   path,
	}
}

// NewStdoutBackend writes to os.Stdout.
func NewStdoutBackend() *ConsoleBackend { return NewConsoleBackend(os.Stdout, "stdout") }

// NewStderrBackend writes to os.Stderr.
func NewStderrBackend() *ConsoleBackend { return NewConsoleBackend(os.Stderr, "stderr") }

// Write buffers one entry until the next Flush
func (cb *ConsoleBackend) Write(entry []byte) (int, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	start := time.Now()
	n, err := cb.writer.Write(entry)
	cb.stats.record(n, start, err)
	return n, err
}

// Flush writes buffered entries to the console
func (cb *ConsoleBackend) Flush() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.writer.Flush()
}

// Close flushes; the process's standard streams are never closed
func (cb *ConsoleBackend) Close() error {
	return cb.Flush()
}

// SupportsAtomic returns false
func (cb *ConsoleBackend) SupportsAtomic() bool { return false }

// Sync flushes the console writer
func (cb *ConsoleBackend) Sync() error { return cb.Flush() }

// GetStats returns backend statistics
func (cb *ConsoleBackend) GetStats() BackendStats {
	return cb.stats.snapshot(cb.path)
}
