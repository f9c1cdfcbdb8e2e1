package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 30 * time.Second

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Interval  time.Duration
	Evaluator *Evaluator
	// OnReport is called after each evaluation, outside the cache lock.
	OnReport func(Report)
}

// Monitor periodically evaluates a State and caches the latest report.
type Monitor struct {
	state     State
	evaluator *Evaluator
	interval  time.Duration
	onReport  func(Report)

	mu     sync.RWMutex
	latest Report

	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// NewMonitor evaluates state once, then starts polling it in the background
// until ctx is done or Close is called.
func NewMonitor(ctx context.Context, state State, opts MonitorOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Evaluator == nil {
		opts.Evaluator = &Evaluator{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m := &Monitor{
		state:     state,
		evaluator: opts.Evaluator,
		interval:  opts.Interval,
		onReport:  opts.OnReport,
	}
	m.evaluate()

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go m.run(loopCtx)
	return m
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evaluate()
		}
	}
}

func (m *Monitor) evaluate() {
	report := m.safeEvaluate()

	m.mu.Lock()
	m.latest = report
	m.mu.Unlock()

	if m.onReport != nil {
		func() {
			defer func() { _ = recover() }()
			m.onReport(report)
		}()
	}
}

func (m *Monitor) safeEvaluate() (report Report) {
	defer func() {
		if r := recover(); r != nil {
			report = unknownReport(time.Now().UTC(), fmt.Sprintf("health evaluation failed: %v", r))
		}
	}()
	return m.evaluator.Evaluate(m.state)
}

// Latest returns a copy of the most recent report without waiting for an
// evaluation in progress.
func (m *Monitor) Latest() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest.Clone()
}

// Refresh evaluates immediately and returns the new report.
func (m *Monitor) Refresh() Report {
	m.evaluate()
	return m.Latest()
}

// Close stops polling and waits for the background goroutine to exit. The
// last report stays readable.
func (m *Monitor) Close() error {
	m.shutdownOnce.Do(func() {
		m.cancel()
		m.wg.Wait()
	})
	return nil
}
