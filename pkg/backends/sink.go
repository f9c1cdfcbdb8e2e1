package backends

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// StatusFallback prefixes the status of a sink standing in for one that
// could not be opened.
const StatusFallback = "Fallback"

// Sink formats entries and writes them to a Backend. It implements
// types.BatchSink, types.NamedSink, types.TypedSink and types.HealthReporter.
type Sink struct {
	name      string
	typ       string
	backend   Backend
	formatter types.Formatter

	// writeMu serializes backend calls; stateMu guards the fields below and
	// is never held across a backend call.
	writeMu sync.Mutex

	stateMu  sync.Mutex
	status   string
	lastOK   time.Time
	failures int
	closed   bool
}

// ErrSinkClosed is returned by writes after Close.
var ErrSinkClosed = errors.New("sink is closed")

// NewSink wraps backend. typ is the type tag reported in health snapshots.
func NewSink(name, typ string, backend Backend, formatter types.Formatter) *Sink {
	return &Sink{name: name, typ: typ, backend: backend, formatter: formatter}
}

// Name returns the sink name.
func (s *Sink) Name() string { return s.name }

// Type returns the sink type tag.
func (s *Sink) Type() string { return s.typ }

// Backend returns the underlying backend.
func (s *Sink) Backend() Backend { return s.backend }

// Write formats and writes one entry, then flushes the backend.
func (s *Sink) Write(entry *types.LogEntry) error {
	return s.WriteBatch([]*types.LogEntry{entry})
}

// WriteBatch formats and writes entries in order with a single flush at
// the end. It stops at the first failure.
func (s *Sink) WriteBatch(entries []*types.LogEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return ErrSinkClosed
	}

	for _, entry := range entries {
		if entry == nil {
			continue
		}
		data, err := s.formatter.Format(entry)
		if err != nil {
			return s.fail(errors.Wrapf(err, "format entry for %s", s.name))
		}
		if lw, ok := s.backend.(LevelWriter); ok {
			_, err = lw.WriteLevel(entry.Level, data)
		} else {
			_, err = s.backend.Write(data)
		}
		if err != nil {
			return s.fail(errors.Wrapf(err, "write to %s", s.name))
		}
	}
	if err := s.backend.Flush(); err != nil {
		return s.fail(errors.Wrapf(err, "flush %s", s.name))
	}

	s.stateMu.Lock()
	s.failures = 0
	s.lastOK = time.Now().UTC()
	s.stateMu.Unlock()
	return nil
}

func (s *Sink) fail(err error) error {
	s.stateMu.Lock()
	s.failures++
	s.stateMu.Unlock()
	return err
}

func (s *Sink) isClosed() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.closed
}

// MarkFallback records that this sink replaces one that failed to open.
func (s *Sink) MarkFallback(cause error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.status = fmt.Sprintf("%s: %v", StatusFallback, cause)
}

// Health returns a snapshot of the sink's state. It performs no I/O and
// does not wait for in-flight writes.
func (s *Sink) Health() types.SinkHealth {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	h := types.SinkHealth{
		Name:                s.name,
		Type:                s.typ,
		IsOperational:       !s.closed,
		StatusMessage:       s.status,
		ConsecutiveFailures: s.failures,
	}
	if s.closed {
		h.StatusMessage = "closed"
	}
	if !s.lastOK.IsZero() {
		ts := s.lastOK
		h.LastSuccessfulWrite = &ts
	}
	return h
}

// Stats returns the backend statistics.
func (s *Sink) Stats() BackendStats {
	return s.backend.GetStats()
}

// Close flushes and closes the backend. Further writes fail.
func (s *Sink) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.stateMu.Lock()
	if s.closed {
		s.stateMu.Unlock()
		return nil
	}
	s.closed = true
	s.stateMu.Unlock()

	return s.backend.Close()
}
