package omni

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/internal/buffer"
	"github.com/wayneeseguin/omnipipe/internal/metrics"
	"github.com/wayneeseguin/omnipipe/pkg/health"
	"github.com/wayneeseguin/omnipipe/pkg/scope"
	"github.com/wayneeseguin/omnipipe/pkg/sinks"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// Provider owns the log buffer and the sinks behind it, and hands out
// Logger views. Its lifecycle is an atomic state machine so CreateLogger,
// logging and Close never block on each other.
type Provider struct {
	id    uuid.UUID
	cfg   Config
	state atomic.Int32

	scopes    *scope.Stack
	fanout    *sinks.Fanout
	buffer    *buffer.LogBuffer
	metrics   *metrics.Collector
	evaluator *health.Evaluator
	monitor   *health.Monitor
	redactor  *Redactor

	degraded atomic.Bool
}

// NewProvider creates a provider from DefaultConfig and the given options.
//
// Example:
//
//	provider, err := omni.NewProvider(
//		omni.WithSinkURI("app", "/var/log/app.log", "json"),
//		omni.WithBatchSize(200),
//		omni.WithOverflowPolicy(omni.Block),
//	)
//	if err != nil {
//		return err
//	}
//	defer provider.Close()
//
//	logger, _ := provider.CreateLogger("orders")
//	logger.Info(ctx, "Order {OrderID} accepted", orderID)
func NewProvider(options ...Option) (*Provider, error) {
	config := DefaultConfig()
	for _, opt := range options {
		if err := opt(config); err != nil {
			return nil, err
		}
	}
	return NewWithConfig(config)
}

// NewWithConfig creates a provider with the given configuration.
// The configuration is validated and defaults are applied where necessary;
// the caller's Config is not modified.
//
// Parameters:
//   - config: The configuration to use, nil for DefaultConfig
//
// Returns:
//   - *Provider: The provider in the Created state
//   - error: Configuration errors (wrapping ErrInvalidConfig or ErrUnknownSinkScheme)
func NewWithConfig(config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	cfg.Sinks = append([]SinkConfig(nil), config.Sinks...)
	cfg.ExtraSinks = append([]types.Sink(nil), config.ExtraSinks...)
	cfg.RedactPatterns = append([]string(nil), config.RedactPatterns...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for i, s := range cfg.ExtraSinks {
		if s == nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "extra sink %d is nil", i)
		}
	}

	p := &Provider{
		id:        uuid.New(),
		cfg:       cfg,
		scopes:    scope.NewStack(),
		metrics:   metrics.NewCollector(),
		evaluator: health.NewEvaluator(cfg.StaleSinkThreshold.Duration),
	}

	if cfg.Redact || len(cfg.RedactPatterns) > 0 {
		r, err := NewRedactor(cfg.RedactPatterns)
		if err != nil {
			return nil, err
		}
		p.redactor = r
	}

	opened, degraded, err := openSinks(cfg.Sinks, p.reportError)
	if err != nil {
		return nil, err
	}
	p.degraded.Store(degraded)

	raw := append(opened, cfg.ExtraSinks...)
	p.fanout = sinks.NewFanout(sinks.Assemble(raw, cfg.EnableDegradation, p.sinkFailed), p.sinkFailed)

	opts := cfg.bufferOptions()
	opts.Metrics = p.metrics
	opts.OnError = p.bufferFailed
	opts, err = opts.Validate()
	if err != nil {
		_ = p.fanout.Close()
		return nil, errors.Wrapf(ErrInvalidConfig, "%v", err)
	}
	p.buffer = buffer.New(p.fanout, opts)

	p.monitor = health.NewMonitor(context.Background(), p, health.MonitorOptions{
		Interval:  cfg.HealthCheckInterval.Duration,
		Evaluator: p.evaluator,
	})

	return p, nil
}

// ID returns the provider's instance id.
func (p *Provider) ID() string { return p.id.String() }

// Config returns a copy of the effective configuration.
func (p *Provider) Config() Config {
	cfg := p.cfg
	cfg.Sinks = append([]SinkConfig(nil), p.cfg.Sinks...)
	cfg.ExtraSinks = append([]types.Sink(nil), p.cfg.ExtraSinks...)
	cfg.RedactPatterns = append([]string(nil), p.cfg.RedactPatterns...)
	return cfg
}

// CreateLogger returns a logger view for category. The first successful
// call moves the provider from Created to Operational. After Close has
// begun it fails with ErrObjectDisposed.
func (p *Provider) CreateLogger(category string) (*Logger, error) {
	if !p.activate() {
		return nil, errors.Wrapf(ErrObjectDisposed, "create logger %q in state %s", category, p.State())
	}
	return &Logger{provider: p, category: category}, nil
}

// Flush delivers every buffered entry now. It does nothing unless the
// provider is operational.
func (p *Provider) Flush() {
	if !p.IsOperational() {
		return
	}
	p.buffer.Flush()
}

// Close shuts the provider down. Only the first call does any work: it
// stops the periodic flush, drains the buffer into the sinks and then
// closes every sink. Close never returns an error; failures go to the
// error handler.
func (p *Provider) Close() error {
	if !p.beginShutdown() {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*InvariantError); ok {
				panic(ie)
			}
			p.reportError(LogError{
				Operation: "dispose",
				Message:   fmt.Sprintf("shutdown panicked: %v", r),
				Level:     ErrorLevelHigh,
			})
		}
	}()

	_ = p.monitor.Close()

	p.buffer.StopTimer()
	p.transition(StateStopping, StateDisposing)

	p.buffer.Stop()
	p.buffer.Flush()
	p.transition(StateDisposing, StateDisposed)

	if err := p.fanout.Close(); err != nil {
		p.reportError(LogError{
			Operation: "dispose",
			Message:   "failed to close sinks",
			Err:       err,
			Level:     ErrorLevelMedium,
		})
	}
	return nil
}

// enqueue hands a finished entry to the buffer when operational.
func (p *Provider) enqueue(entry *types.LogEntry) {
	if !p.IsOperational() {
		return
	}
	p.metrics.TrackEntry(int(entry.Level))
	p.buffer.Enqueue(entry)
}

func (p *Provider) sinkFailed(sink string, err error) {
	p.metrics.TrackSinkError(sink)
	p.reportError(LogError{
		Operation:   "write",
		Destination: sink,
		Message:     "sink write failed",
		Err:         err,
		Level:       ErrorLevelMedium,
	})
}

func (p *Provider) bufferFailed(op string, err error) {
	p.reportError(LogError{
		Operation:   op,
		Destination: "buffer",
		Message:     err.Error(),
		Err:         err,
		Level:       ErrorLevelMedium,
	})
}

// reportError invokes the error handler, shielding the caller from a
// panicking handler.
func (p *Provider) reportError(e LogError) {
	handler := p.cfg.ErrorHandler
	if handler == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	defer func() { _ = recover() }()
	handler(e)
}

// BufferSize returns the number of queued entries.
func (p *Provider) BufferSize() int {
	return p.buffer.Len()
}

// BufferCapacity returns the buffer capacity, or 0 when buffering is off.
func (p *Provider) BufferCapacity() int {
	if !p.cfg.UseGlobalBuffer {
		return 0
	}
	return p.buffer.Capacity()
}

// IsDiscarding reports whether the buffer has dropped entries since the
// last flush.
func (p *Provider) IsDiscarding() bool {
	return p.buffer.IsDiscarding()
}

// IsDegradedMode reports whether a configured sink was replaced by a
// fallback when the provider was built.
func (p *Provider) IsDegradedMode() bool {
	return p.degraded.Load()
}

// Sinks returns a fresh health snapshot per sink.
func (p *Provider) Sinks() []types.SinkHealth {
	return p.fanout.Health()
}

// Evaluate runs the health evaluator on the provider's current state.
func (p *Provider) Evaluate() health.Report {
	return p.evaluator.Evaluate(p)
}

// Health returns the latest report cached by the background monitor.
func (p *Provider) Health() health.Report {
	return p.monitor.Latest()
}
