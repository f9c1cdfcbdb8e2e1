package buffer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/internal/metrics"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// Defaults applied by Options.Validate to zero values.
const (
	DefaultBatchSize     = 100
	DefaultCapacity      = 10000
	DefaultFlushInterval = time.Second
	DefaultBlockTimeout  = 5 * time.Second
)

// ErrBlockTimeout is reported when a producer gave up waiting for space.
var ErrBlockTimeout = errors.New("timed out waiting for buffer space")

// Options configures a LogBuffer.
type Options struct {
	// Buffered false writes every entry straight through to the sink.
	Buffered      bool
	BatchSize     int
	FlushInterval time.Duration // 0 disables the periodic flush
	Capacity      int
	Policy        types.OverflowPolicy
	BlockTimeout  time.Duration

	Metrics *metrics.Collector
	// OnError receives absorbed failures: dropped entries, sink panics.
	OnError func(op string, err error)
}

// Validate rejects negative values, fills defaults and clamps the batch size
// to the capacity.
func (o Options) Validate() (Options, error) {
	if o.BatchSize < 0 {
		return o, fmt.Errorf("batch size must not be negative: %d", o.BatchSize)
	}
	if o.Capacity < 0 {
		return o, fmt.Errorf("buffer capacity must not be negative: %d", o.Capacity)
	}
	if o.FlushInterval < 0 {
		return o, fmt.Errorf("flush interval must not be negative: %s", o.FlushInterval)
	}
	if o.BlockTimeout < 0 {
		return o, fmt.Errorf("block timeout must not be negative: %s", o.BlockTimeout)
	}
	switch o.Policy {
	case types.DropOldest, types.DropNewest, types.Block:
	default:
		return o, fmt.Errorf("unknown overflow policy %d", int(o.Policy))
	}

	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Capacity == 0 {
		o.Capacity = DefaultCapacity
	}
	if o.BatchSize > o.Capacity {
		o.BatchSize = o.Capacity
	}
	if o.BlockTimeout == 0 {
		o.BlockTimeout = DefaultBlockTimeout
	}
	return o, nil
}

// LogBuffer queues entries and delivers them to a sink in batches.
//
// Two guards are used. deliverMu serializes delivery to the sink so batches
// leave in the order they were taken from the queue; mu protects the queue.
// deliverMu is always acquired before mu, and mu is never held while the
// sink is called.
type LogBuffer struct {
	sink    types.BatchSink
	opts    Options
	metrics *metrics.Collector

	deliverMu sync.Mutex

	mu           sync.Mutex
	queue        []*types.LogEntry
	spaceCh      chan struct{} // closed when the queue is drained or the buffer stops
	stopped      bool
	flushTimer   *time.Timer
	timerStopped bool
	timerWG      sync.WaitGroup

	discarding atomic.Bool
}

// New creates a buffer in front of sink. Options must already be validated.
func New(sink types.BatchSink, opts Options) *LogBuffer {
	b := &LogBuffer{
		sink:    sink,
		opts:    opts,
		metrics: opts.Metrics,
		queue:   make([]*types.LogEntry, 0, opts.BatchSize),
		spaceCh: make(chan struct{}),
	}

	if opts.Buffered && opts.FlushInterval > 0 {
		b.mu.Lock()
		b.flushTimer = time.AfterFunc(opts.FlushInterval, b.timedFlush)
		b.mu.Unlock()
	}
	return b
}

// Enqueue accepts one entry. Nil entries and entries arriving after Stop are
// ignored. Enqueue never returns an error: sink failures are absorbed and
// overflow is handled by the configured policy.
func (b *LogBuffer) Enqueue(entry *types.LogEntry) {
	if entry == nil {
		return
	}
	if !b.opts.Buffered {
		b.passthrough(entry)
		return
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}

	if len(b.queue) >= b.opts.Capacity {
		switch b.opts.Policy {
		case types.DropNewest:
			b.mu.Unlock()
			b.drop(metrics.DropNewest, nil)
			return
		case types.Block:
			if !b.waitForSpaceLocked() {
				return
			}
		default:
			b.queue[0] = nil
			b.queue = b.queue[1:]
			b.drop(metrics.DropOldest, nil)
		}
	}

	b.queue = append(b.queue, entry)
	full := len(b.queue) >= b.opts.BatchSize
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.TrackEnqueued()
	}
	if full {
		b.Flush()
	}
}

// waitForSpaceLocked blocks until the queue has room, the buffer stops or the
// block timeout expires. Called with mu held; on true it returns with mu held,
// on false mu has been released and the entry was dropped.
func (b *LogBuffer) waitForSpaceLocked() bool {
	deadline := time.NewTimer(b.opts.BlockTimeout)
	defer deadline.Stop()

	for len(b.queue) >= b.opts.Capacity {
		if b.stopped {
			b.mu.Unlock()
			return false
		}
		ch := b.spaceCh
		b.mu.Unlock()

		select {
		case <-ch:
		case <-deadline.C:
			b.drop(metrics.DropBlockTimeout, ErrBlockTimeout)
			return false
		}
		b.mu.Lock()
	}
	if b.stopped {
		b.mu.Unlock()
		return false
	}
	return true
}

func (b *LogBuffer) drop(reason string, err error) {
	b.discarding.Store(true)
	if b.metrics != nil {
		b.metrics.TrackDropped(reason)
	}
	if err != nil {
		b.report("enqueue", err)
	}
}

func (b *LogBuffer) passthrough(entry *types.LogEntry) {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	if b.isStopped() {
		return
	}
	if b.metrics != nil {
		b.metrics.TrackEnqueued()
	}
	b.deliver([]*types.LogEntry{entry})
}

// Flush synchronously delivers everything queued so far, in enqueue order.
// Entries handed to the sink are never redelivered, whatever the outcome.
func (b *LogBuffer) Flush() {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	batch := b.queue
	if len(batch) == 0 {
		b.mu.Unlock()
		return
	}
	b.queue = make([]*types.LogEntry, 0, b.opts.BatchSize)
	close(b.spaceCh)
	b.spaceCh = make(chan struct{})
	b.mu.Unlock()

	start := time.Now()
	b.deliver(batch)
	b.discarding.Store(false)
	if b.metrics != nil {
		b.metrics.TrackFlush(time.Since(start))
	}
}

// deliver hands entries to the sink. Called with deliverMu held.
func (b *LogBuffer) deliver(entries []*types.LogEntry) {
	defer func() {
		if r := recover(); r != nil {
			b.report("flush", errors.Errorf("sink panic: %v", r))
		}
	}()

	var err error
	if len(entries) == 1 {
		err = b.sink.Write(entries[0])
	} else {
		err = b.sink.WriteBatch(entries)
	}
	if err != nil {
		b.report("flush", err)
	}
	if b.metrics != nil {
		b.metrics.TrackDelivered(len(entries))
	}
}

func (b *LogBuffer) report(op string, err error) {
	if b.opts.OnError == nil {
		return
	}
	defer func() { _ = recover() }()
	b.opts.OnError(op, err)
}

func (b *LogBuffer) timedFlush() {
	b.mu.Lock()
	if b.timerStopped {
		b.mu.Unlock()
		return
	}
	b.timerWG.Add(1)
	b.mu.Unlock()
	defer b.timerWG.Done()

	b.Flush()

	b.mu.Lock()
	if !b.timerStopped {
		b.flushTimer.Reset(b.opts.FlushInterval)
	}
	b.mu.Unlock()
}

// StopTimer cancels the periodic flush and waits for an in-flight timed
// flush to finish. Safe to call more than once.
func (b *LogBuffer) StopTimer() {
	b.mu.Lock()
	if b.timerStopped {
		b.mu.Unlock()
		return
	}
	b.timerStopped = true
	if b.flushTimer != nil {
		b.flushTimer.Stop()
	}
	b.mu.Unlock()

	b.timerWG.Wait()
}

// Stop makes Enqueue a no-op and wakes producers blocked on a full queue.
// Entries already queued stay queued for a final Flush.
func (b *LogBuffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	close(b.spaceCh)
	b.spaceCh = make(chan struct{})
}

// Close stops the timer and the buffer, then performs the final flush.
func (b *LogBuffer) Close() error {
	b.StopTimer()
	b.Stop()
	b.Flush()
	return nil
}

func (b *LogBuffer) isStopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}

// Len returns the number of queued entries.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Capacity returns the maximum number of queued entries.
func (b *LogBuffer) Capacity() int {
	return b.opts.Capacity
}

// IsDiscarding reports whether entries were dropped since the last flush.
func (b *LogBuffer) IsDiscarding() bool {
	return b.discarding.Load()
}

// Stats returns current buffer statistics.
func (b *LogBuffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Buffered:      b.opts.Buffered,
		QueuedEntries: len(b.queue),
		Capacity:      b.opts.Capacity,
		BatchSize:     b.opts.BatchSize,
		FlushInterval: b.opts.FlushInterval,
		Policy:        b.opts.Policy.String(),
		Discarding:    b.discarding.Load(),
		Stopped:       b.stopped,
	}
}

// Stats contains statistics about the buffer.
type Stats struct {
	Buffered      bool          `json:"buffered"`
	QueuedEntries int           `json:"queued_entries"`
	Capacity      int           `json:"capacity"`
	BatchSize     int           `json:"batch_size"`
	FlushInterval time.Duration `json:"flush_interval"`
	Policy        string        `json:"policy"`
	Discarding    bool          `json:"discarding"`
	Stopped       bool          `json:"stopped"`
}
