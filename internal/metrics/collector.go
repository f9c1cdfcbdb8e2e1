package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Drop reasons reported by the buffer.
const (
	DropOldest       = "drop_oldest"
	DropNewest       = "drop_newest"
	DropBlockTimeout = "block_timeout"
)

// Collector handles pipeline metrics. All methods are safe for concurrent use
// and never block.
type Collector struct {
	// Entries accepted by level
	entriesByLevel sync.Map // map[int]*atomic.Uint64

	enqueued  uint64
	delivered uint64
	dropped   uint64
	dropsBy   sync.Map // map[string]*atomic.Uint64

	// Flush operations
	flushCount     uint64
	totalFlushTime int64 // nanoseconds
	maxFlushTime   int64 // nanoseconds

	// Sink failures
	sinkErrorCount uint64
	errorsBySink   sync.Map // map[string]*atomic.Uint64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Metrics is a point-in-time copy of the collector.
type Metrics struct {
	EntriesByLevel map[int]uint64    `json:"entries_by_level"`
	Enqueued       uint64            `json:"enqueued"`
	Delivered      uint64            `json:"delivered"`
	Dropped        uint64            `json:"dropped"`
	DroppedBy      map[string]uint64 `json:"dropped_by"`

	FlushCount       uint64        `json:"flush_count"`
	AverageFlushTime time.Duration `json:"average_flush_time"`
	MaxFlushTime     time.Duration `json:"max_flush_time"`

	SinkErrors       uint64            `json:"sink_errors"`
	SinkErrorsByName map[string]uint64 `json:"sink_errors_by_name"`
}

// Snapshot returns the current metrics.
func (c *Collector) Snapshot() Metrics {
	m := Metrics{
		EntriesByLevel:   make(map[int]uint64),
		Enqueued:         atomic.LoadUint64(&c.enqueued),
		Delivered:        atomic.LoadUint64(&c.delivered),
		Dropped:          atomic.LoadUint64(&c.dropped),
		DroppedBy:        make(map[string]uint64),
		FlushCount:       atomic.LoadUint64(&c.flushCount),
		MaxFlushTime:     time.Duration(atomic.LoadInt64(&c.maxFlushTime)),
		SinkErrors:       atomic.LoadUint64(&c.sinkErrorCount),
		SinkErrorsByName: make(map[string]uint64),
	}

	copyCounters(&c.entriesByLevel, func(k interface{}, n uint64) { m.EntriesByLevel[k.(int)] = n })
	copyCounters(&c.dropsBy, func(k interface{}, n uint64) { m.DroppedBy[k.(string)] = n })
	copyCounters(&c.errorsBySink, func(k interface{}, n uint64) { m.SinkErrorsByName[k.(string)] = n })

	if m.FlushCount > 0 {
		m.AverageFlushTime = time.Duration(atomic.LoadInt64(&c.totalFlushTime)) / time.Duration(m.FlushCount)
	}
	return m
}

func copyCounters(src *sync.Map, put func(key interface{}, n uint64)) {
	src.Range(func(key, value interface{}) bool {
		if n := value.(*atomic.Uint64).Load(); n > 0 {
			put(key, n)
		}
		return true
	})
}

// Reset zeroes all counters.
func (c *Collector) Reset() {
	zero := func(_, value interface{}) bool {
		value.(*atomic.Uint64).Store(0)
		return true
	}
	c.entriesByLevel.Range(zero)
	c.dropsBy.Range(zero)
	c.errorsBySink.Range(zero)

	atomic.StoreUint64(&c.enqueued, 0)
	atomic.StoreUint64(&c.delivered, 0)
	atomic.StoreUint64(&c.dropped, 0)
	atomic.StoreUint64(&c.flushCount, 0)
	atomic.StoreInt64(&c.totalFlushTime, 0)
	atomic.StoreInt64(&c.maxFlushTime, 0)
	atomic.StoreUint64(&c.sinkErrorCount, 0)
}

// TrackEntry counts an entry accepted by a logger at the given level.
func (c *Collector) TrackEntry(level int) {
	inc(&c.entriesByLevel, level)
}

// TrackEnqueued counts an entry appended to the buffer queue.
func (c *Collector) TrackEnqueued() {
	atomic.AddUint64(&c.enqueued, 1)
}

// TrackDelivered counts entries handed to the composed sink.
func (c *Collector) TrackDelivered(n int) {
	if n > 0 {
		atomic.AddUint64(&c.delivered, uint64(n))
	}
}

// TrackDropped counts an entry discarded for the given reason.
func (c *Collector) TrackDropped(reason string) {
	atomic.AddUint64(&c.dropped, 1)
	inc(&c.dropsBy, reason)
}

// TrackFlush records the duration of one flush.
func (c *Collector) TrackFlush(duration time.Duration) {
	atomic.AddUint64(&c.flushCount, 1)
	atomic.AddInt64(&c.totalFlushTime, int64(duration))

	for {
		oldMax := atomic.LoadInt64(&c.maxFlushTime)
		if int64(duration) <= oldMax {
			break
		}
		if atomic.CompareAndSwapInt64(&c.maxFlushTime, oldMax, int64(duration)) {
			break
		}
	}
}

// TrackSinkError counts an absorbed sink failure.
func (c *Collector) TrackSinkError(sink string) {
	atomic.AddUint64(&c.sinkErrorCount, 1)
	inc(&c.errorsBySink, sink)
}

// DroppedCount returns the total number of dropped entries.
func (c *Collector) DroppedCount() uint64 {
	return atomic.LoadUint64(&c.dropped)
}

// SinkErrorCount returns the failures absorbed for one sink.
func (c *Collector) SinkErrorCount(sink string) uint64 {
	if val, ok := c.errorsBySink.Load(sink); ok {
		return val.(*atomic.Uint64).Load()
	}
	return 0
}

func inc(m *sync.Map, key interface{}) {
	val, _ := m.LoadOrStore(key, &atomic.Uint64{})
	val.(*atomic.Uint64).Add(1)
}
