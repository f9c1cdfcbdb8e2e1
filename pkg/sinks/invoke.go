package sinks

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// ErrorFunc receives failures that were absorbed while writing to a sink.
// It is a diagnostics side channel only; callers of Write never see them.
type ErrorFunc func(sink string, err error)

// PanicError wraps a value recovered from a panicking sink.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("sink panicked: %v", e.Value)
}

func writeOne(s types.Sink, entry *types.LogEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WithStack(&PanicError{Value: r})
		}
	}()
	return s.Write(entry)
}

// writeMany prefers the sink's native batch path and falls back to one entry
// at a time. The first failure aborts delivery to this sink.
func writeMany(s types.Sink, entries []*types.LogEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WithStack(&PanicError{Value: r})
		}
	}()
	if bs, ok := s.(types.BatchSink); ok {
		return bs.WriteBatch(entries)
	}
	for _, e := range entries {
		if err := s.Write(e); err != nil {
			return err
		}
	}
	return nil
}

// NameOf returns the name a sink reports under, falling back to def.
func NameOf(s types.Sink, def string) string {
	if n, ok := s.(types.NamedSink); ok {
		if name := safeString(n.Name); name != "" {
			return name
		}
	}
	return def
}

// TypeOf returns the sink's type tag, falling back to its Go type name.
func TypeOf(s types.Sink) string {
	if t, ok := s.(types.TypedSink); ok {
		if typ := safeString(t.Type); typ != "" {
			return typ
		}
	}
	return fmt.Sprintf("%T", s)
}

func safeString(fn func() string) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	return fn()
}

// reportedHealth asks a sink for its own health. A panicking reporter is
// treated as not operational.
func reportedHealth(s types.Sink) (h types.SinkHealth, ok bool) {
	hr, ok := s.(types.HealthReporter)
	if !ok {
		return h, false
	}
	defer func() {
		if r := recover(); r != nil {
			h = types.SinkHealth{StatusMessage: fmt.Sprintf("health check panicked: %v", r)}
		}
	}()
	return hr.Health(), true
}
