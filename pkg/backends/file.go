package backends

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/klauspost/compress/gzip"
)

// DefaultBufferSize for file operations
const DefaultBufferSize = 32 * 1024

// FileOptions configures a FileBackend.
type FileOptions struct {
	// Compress writes a gzip stream instead of plain text
	Compress bool
	// CompressionLevel is a gzip level; 0 selects gzip.DefaultCompression
	CompressionLevel int
	BufferSize       int
}

// FileBackend appends entries to a file. Each flush holds an exclusive
// flock so several processes can share one log file.
type FileBackend struct {
	mu     sync.Mutex
	file   *os.File
	gz     *gzip.Writer
	writer *bufio.Writer
	lock   *flock.Flock
	path   string
	stats  writeStats
	closed bool
}

// NewFileBackend creates a new file backend
func NewFileBackend(path string, opts FileOptions) (*FileBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	// #nosec G301 - log directories need to be accessible by other processes
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	cleanPath := filepath.Clean(path)

	file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644) // #nosec G302 - log files need to be readable
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	fb := &FileBackend{
		file: file,
		lock: flock.New(cleanPath + ".lock"),
		path: cleanPath,
	}
	fb.stats.stats.Size = info.Size()

	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	var out io.Writer = file
	if opts.Compress {
		level := opts.CompressionLevel
		if level == 0 {
			level = gzip.DefaultCompression
		}
		gz, err := gzip.NewWriterLevel(file, level)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("create gzip writer: %w", err)
		}
		fb.gz = gz
		out = gz
	}
	fb.writer = bufio.NewWriterSize(out, size)

	return fb, nil
}

// Write buffers one entry until the next Flush
func (fb *FileBackend) Write(entry []byte) (int, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return 0, os.ErrClosed
	}
	start := time.Now()
	n, err := fb.writer.Write(entry)
	fb.stats.record(n, start, err)
	return n, err
}

// Flush writes buffered data to the file under the file lock
func (fb *FileBackend) Flush() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return nil
	}
	return fb.flushLocked()
}

func (fb *FileBackend) flushLocked() error {
	if fb.writer.Buffered() == 0 {
		return nil
	}

	if err := fb.lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		_ = fb.lock.Unlock()
	}()

	if err := fb.writer.Flush(); err != nil {
		return err
	}
	if fb.gz != nil {
		return fb.gz.Flush()
	}
	return nil
}

// Close flushes and closes the file, finishing the gzip stream if any
func (fb *FileBackend) Close() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return nil
	}
	fb.closed = true

	var errs []error
	if err := fb.flushLocked(); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if fb.gz != nil {
		if err := fb.gz.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gzip: %w", err))
		}
	}
	if err := fb.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close file: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// SupportsAtomic returns true as file backend supports atomic writes via locking
func (fb *FileBackend) SupportsAtomic() bool {
	return true
}

// Path returns the file path
func (fb *FileBackend) Path() string {
	return fb.path
}

// Sync flushes and syncs the file to disk
func (fb *FileBackend) Sync() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return nil
	}
	if err := fb.flushLocked(); err != nil {
		return err
	}
	return fb.file.Sync()
}

// GetStats returns backend statistics
func (fb *FileBackend) GetStats() BackendStats {
	return fb.stats.snapshot(fb.path)
}
