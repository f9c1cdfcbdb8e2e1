package omni

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/pkg/formatters"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// Option is a functional option for configuring a Provider
type Option func(*Config) error

// WithBatchSize sets how many entries trigger an immediate flush
func WithBatchSize(size int) Option {
	return func(c *Config) error {
		if size <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "batch size must be positive, got %d", size)
		}
		c.BatchSize = size
		return nil
	}
}

// WithFlushInterval sets the periodic flush interval
func WithFlushInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "flush interval must be positive, got %s", interval)
		}
		c.FlushInterval = Duration{interval}
		return nil
	}
}

// WithoutPeriodicFlush turns off the flush timer. Entries are delivered
// when a batch fills, on Flush and on Close.
func WithoutPeriodicFlush() Option {
	return func(c *Config) error {
		c.DisablePeriodicFlush = true
		return nil
	}
}

// WithMaxBufferSize sets the buffer capacity
func WithMaxBufferSize(size int) Option {
	return func(c *Config) error {
		if size <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "buffer size must be positive, got %d", size)
		}
		c.MaxBufferSize = size
		return nil
	}
}

// WithOverflowPolicy sets what happens when the buffer is full
func WithOverflowPolicy(policy OverflowPolicy) Option {
	return func(c *Config) error {
		switch policy {
		case DropOldest, DropNewest, Block:
		default:
			return errors.Wrapf(ErrInvalidConfig, "unknown overflow policy %d", int(policy))
		}
		c.OverflowPolicy = policy
		return nil
	}
}

// WithBlockTimeout bounds how long a producer waits under the Block policy
func WithBlockTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "block timeout must be positive, got %s", timeout)
		}
		c.BlockTimeout = Duration{timeout}
		return nil
	}
}

// WithoutBuffering delivers every entry synchronously on the caller
func WithoutBuffering() Option {
	return func(c *Config) error {
		c.UseGlobalBuffer = false
		return nil
	}
}

// WithDegradation enables or disables per-sink degradation tracking
func WithDegradation(enabled bool) Option {
	return func(c *Config) error {
		c.EnableDegradation = enabled
		return nil
	}
}

// WithSink adds a sink instance
func WithSink(sink types.Sink) Option {
	return func(c *Config) error {
		if sink == nil {
			return errors.Wrap(ErrInvalidConfig, "sink cannot be nil")
		}
		c.ExtraSinks = append(c.ExtraSinks, sink)
		return nil
	}
}

// WithSinkURI adds a sink opened from uri with the named formatter ("json"
// or "text").
func WithSinkURI(name, uri, format string) Option {
	return func(c *Config) error {
		if strings.TrimSpace(uri) == "" {
			return errors.Wrap(ErrInvalidConfig, "sink uri cannot be empty")
		}
		if _, err := formatters.CreateFormatter(format); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "sink %q: %v", name, err)
		}
		c.Sinks = append(c.Sinks, SinkConfig{Name: name, URI: uri, Format: format})
		return nil
	}
}

// WithErrorHandler sets the handler for absorbed pipeline failures
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *Config) error {
		c.ErrorHandler = handler
		return nil
	}
}

// WithServiceName sets the service name stamped on entries
func WithServiceName(name string) Option {
	return func(c *Config) error {
		c.ServiceName = name
		return nil
	}
}

// WithEnvironment sets the environment stamped on entries
func WithEnvironment(env string) Option {
	return func(c *Config) error {
		c.Environment = env
		return nil
	}
}

// WithMinLevel sets the minimum level loggers record
func WithMinLevel(level Level) Option {
	return func(c *Config) error {
		if level < LevelTrace || level > LevelNone {
			return errors.Wrapf(ErrInvalidConfig, "unknown level %d", int(level))
		}
		c.MinLevel = level
		return nil
	}
}

// WithHealthCheckInterval sets how often the health monitor refreshes
func WithHealthCheckInterval(interval time.Duration) Option {
	return func(c *Config) error {
		if interval <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "health check interval must be positive, got %s", interval)
		}
		c.HealthCheckInterval = Duration{interval}
		return nil
	}
}

// WithStaleSinkThreshold sets how long a sink may go without a successful
// write before it is reported as stale
func WithStaleSinkThreshold(threshold time.Duration) Option {
	return func(c *Config) error {
		if threshold <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "stale sink threshold must be positive, got %s", threshold)
		}
		c.StaleSinkThreshold = Duration{threshold}
		return nil
	}
}

// WithRedaction masks values under sensitive keys and replaces matches of
// the given regular expressions in messages and string values
func WithRedaction(patterns ...string) Option {
	return func(c *Config) error {
		if _, err := NewRedactor(patterns); err != nil {
			return err
		}
		c.Redact = true
		c.RedactPatterns = append(c.RedactPatterns, patterns...)
		return nil
	}
}
