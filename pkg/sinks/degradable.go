package sinks

import (
	"io"
	"sync"
	"time"

	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// StatusDegraded is the status message of a sink whose writes are failing.
const StatusDegraded = "Degraded"

// Degradable wraps one sink and tracks whether it is currently operational.
// Write failures are absorbed: the wrapper never returns them to the caller,
// it records them and flips into the degraded state instead.
type Degradable struct {
	sink    types.Sink
	name    string
	typ     string
	onError ErrorFunc
	now     func() time.Time

	mu                  sync.Mutex
	consecutiveFailures int
	lastSuccess         time.Time
	degraded            bool
	status              string
	lastErr             error
}

// NewDegradable wraps sink under the given name.
func NewDegradable(name string, sink types.Sink, onError ErrorFunc) *Degradable {
	return &Degradable{
		sink:    sink,
		name:    name,
		typ:     TypeOf(sink),
		onError: onError,
		now:     time.Now,
	}
}

// Name returns the name the sink is reported under.
func (d *Degradable) Name() string { return d.name }

// Type returns the wrapped sink's type tag.
func (d *Degradable) Type() string { return d.typ }

// Unwrap returns the wrapped sink.
func (d *Degradable) Unwrap() types.Sink { return d.sink }

// Write forwards entry and records the outcome. It always returns nil.
func (d *Degradable) Write(entry *types.LogEntry) error {
	d.record(writeOne(d.sink, entry))
	return nil
}

// WriteBatch forwards entries and records the outcome. It always returns nil.
func (d *Degradable) WriteBatch(entries []*types.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	d.record(writeMany(d.sink, entries))
	return nil
}

func (d *Degradable) record(err error) {
	d.mu.Lock()
	if err == nil {
		d.consecutiveFailures = 0
		d.degraded = false
		d.status = ""
		d.lastErr = nil
		d.lastSuccess = d.now().UTC()
		d.mu.Unlock()
		return
	}
	d.consecutiveFailures++
	d.lastErr = err
	// The first failure and every failure continuing a streak keep the sink
	// out of service until the next success.
	d.degraded = true
	d.status = StatusDegraded
	d.mu.Unlock()

	if d.onError != nil {
		d.onError(d.name, err)
	}
}

// Health returns a fresh snapshot. It never performs I/O. When the wrapped
// sink reports its own health, its status message fills in for an empty
// wrapper status and its non-operational state wins.
func (d *Degradable) Health() types.SinkHealth {
	inner, reported := reportedHealth(d.sink)

	d.mu.Lock()
	defer d.mu.Unlock()

	h := types.SinkHealth{
		Name:                d.name,
		Type:                d.typ,
		IsOperational:       !d.degraded,
		StatusMessage:       d.status,
		ConsecutiveFailures: d.consecutiveFailures,
	}
	if !d.lastSuccess.IsZero() {
		ts := d.lastSuccess
		h.LastSuccessfulWrite = &ts
	}
	if reported {
		if !inner.IsOperational {
			h.IsOperational = false
		}
		if h.StatusMessage == "" {
			h.StatusMessage = inner.StatusMessage
		}
	}
	return h
}

// LastError returns the most recent absorbed failure, if the sink is
// currently degraded.
func (d *Degradable) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Close closes the wrapped sink when it is closable.
func (d *Degradable) Close() error {
	if c, ok := d.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
