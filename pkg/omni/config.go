package omni

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/internal/buffer"
	"github.com/wayneeseguin/omnipipe/pkg/formatters"
	"github.com/wayneeseguin/omnipipe/pkg/health"
	"github.com/wayneeseguin/omnipipe/pkg/types"
	"gopkg.in/yaml.v3"
)

// Defaults applied by DefaultConfig and by Validate to zero values.
const (
	DefaultBatchSize           = buffer.DefaultBatchSize
	DefaultFlushInterval       = buffer.DefaultFlushInterval
	DefaultMaxBufferSize       = buffer.DefaultCapacity
	DefaultBlockTimeout        = buffer.DefaultBlockTimeout
	DefaultHealthCheckInterval = health.DefaultInterval
	DefaultStaleSinkThreshold  = health.DefaultStaleThreshold
)

// Duration wraps time.Duration so it can be written as "250ms" or "5s" in
// TOML and YAML files.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(strings.TrimSpace(string(text)))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// SinkConfig describes one sink opened from a URI. See backends.Open for
// the supported schemes.
type SinkConfig struct {
	Name   string `toml:"name" yaml:"name"`
	URI    string `toml:"uri" yaml:"uri"`
	Format string `toml:"format" yaml:"format"` // json or text, default text
}

// Config contains all configuration options for a Provider.
//
// Example:
//
//	config := omni.DefaultConfig()
//	config.BatchSize = 500
//	config.Sinks = []omni.SinkConfig{{Name: "app", URI: "/var/log/app.log", Format: "json"}}
//	provider, err := omni.NewWithConfig(config)
type Config struct {
	// Buffering
	UseGlobalBuffer bool                 `toml:"use_global_buffer" yaml:"use_global_buffer"`
	BatchSize       int                  `toml:"batch_size" yaml:"batch_size"`
	FlushInterval   Duration             `toml:"flush_interval" yaml:"flush_interval"`
	MaxBufferSize   int                  `toml:"max_buffer_size" yaml:"max_buffer_size"`
	OverflowPolicy  types.OverflowPolicy `toml:"overflow_policy" yaml:"overflow_policy"`
	BlockTimeout    Duration             `toml:"block_timeout" yaml:"block_timeout"`

	// DisablePeriodicFlush leaves delivery to batch size, Flush and Close
	DisablePeriodicFlush bool `toml:"disable_periodic_flush" yaml:"disable_periodic_flush"`

	// Sinks
	EnableDegradation bool         `toml:"enable_degradation" yaml:"enable_degradation"`
	Sinks             []SinkConfig `toml:"sinks" yaml:"sinks"`

	// Health
	HealthCheckInterval Duration `toml:"health_check_interval" yaml:"health_check_interval"`
	StaleSinkThreshold  Duration `toml:"stale_sink_threshold" yaml:"stale_sink_threshold"`

	// Entry defaults
	MinLevel    types.Level `toml:"min_level" yaml:"min_level"`
	ServiceName string      `toml:"service_name" yaml:"service_name"`
	Environment string      `toml:"environment" yaml:"environment"`

	// Redaction of sensitive state keys and message patterns
	Redact         bool     `toml:"redact" yaml:"redact"`
	RedactPatterns []string `toml:"redact_patterns" yaml:"redact_patterns"`

	// ErrorHandler receives absorbed pipeline failures
	ErrorHandler ErrorHandler `toml:"-" yaml:"-"`

	// ExtraSinks are sink instances supplied in code, added after Sinks
	ExtraSinks []types.Sink `toml:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults: buffered delivery
// in batches of 100 every second, drop-oldest overflow and per-sink
// degradation tracking.
func DefaultConfig() *Config {
	return &Config{
		UseGlobalBuffer:     true,
		BatchSize:           DefaultBatchSize,
		FlushInterval:       Duration{DefaultFlushInterval},
		MaxBufferSize:       DefaultMaxBufferSize,
		OverflowPolicy:      types.DropOldest,
		BlockTimeout:        Duration{DefaultBlockTimeout},
		EnableDegradation:   true,
		HealthCheckInterval: Duration{DefaultHealthCheckInterval},
		StaleSinkThreshold:  Duration{DefaultStaleSinkThreshold},
		MinLevel:            types.LevelInfo,
		ErrorHandler:        getDefaultErrorHandler(),
	}
}

// Validate checks the configuration and applies defaults where necessary.
// Negative sizes and durations, unknown policies, levels and formats, and
// sinks without a URI are rejected with an error wrapping ErrInvalidConfig.
// Zero values take their defaults and the batch size is clamped to the
// buffer capacity. A zero flush interval also takes the default; set
// DisablePeriodicFlush to turn the timer off.
func (c *Config) Validate() error {
	if c.BatchSize < 0 {
		return errors.Wrapf(ErrInvalidConfig, "batch_size must not be negative, got %d", c.BatchSize)
	}
	if c.MaxBufferSize < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max_buffer_size must not be negative, got %d", c.MaxBufferSize)
	}
	for name, d := range map[string]time.Duration{
		"flush_interval":        c.FlushInterval.Duration,
		"block_timeout":         c.BlockTimeout.Duration,
		"health_check_interval": c.HealthCheckInterval.Duration,
		"stale_sink_threshold":  c.StaleSinkThreshold.Duration,
	} {
		if d < 0 {
			return errors.Wrapf(ErrInvalidConfig, "%s must not be negative, got %s", name, d)
		}
	}
	switch c.OverflowPolicy {
	case types.DropOldest, types.DropNewest, types.Block:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown overflow_policy %d", int(c.OverflowPolicy))
	}
	if c.MinLevel < types.LevelTrace || c.MinLevel > types.LevelNone {
		return errors.Wrapf(ErrInvalidConfig, "unknown min_level %d", int(c.MinLevel))
	}

	for i, s := range c.Sinks {
		if strings.TrimSpace(s.URI) == "" {
			return errors.Wrapf(ErrInvalidConfig, "sinks[%d] has no uri", i)
		}
		if _, err := formatters.CreateFormatter(s.Format); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "sinks[%d]: %v", i, err)
		}
	}

	if _, err := NewRedactor(c.RedactPatterns); err != nil {
		return err
	}

	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxBufferSize == 0 {
		c.MaxBufferSize = DefaultMaxBufferSize
	}
	if c.BatchSize > c.MaxBufferSize {
		c.BatchSize = c.MaxBufferSize
	}
	if c.FlushInterval.Duration == 0 {
		c.FlushInterval.Duration = DefaultFlushInterval
	}
	if c.BlockTimeout.Duration == 0 {
		c.BlockTimeout.Duration = DefaultBlockTimeout
	}
	if c.HealthCheckInterval.Duration == 0 {
		c.HealthCheckInterval.Duration = DefaultHealthCheckInterval
	}
	if c.StaleSinkThreshold.Duration == 0 {
		c.StaleSinkThreshold.Duration = DefaultStaleSinkThreshold
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = getDefaultErrorHandler()
	}
	return nil
}

// bufferOptions translates the configuration into LogBuffer options.
func (c *Config) bufferOptions() buffer.Options {
	opts := buffer.Options{
		Buffered:      c.UseGlobalBuffer,
		BatchSize:     c.BatchSize,
		FlushInterval: c.FlushInterval.Duration,
		Capacity:      c.MaxBufferSize,
		Policy:        c.OverflowPolicy,
		BlockTimeout:  c.BlockTimeout.Duration,
	}
	if c.DisablePeriodicFlush {
		opts.FlushInterval = 0
	}
	return opts
}

// LoadConfig reads a TOML (.toml) or YAML (.yaml, .yml) file on top of
// DefaultConfig. ${VAR} references are expanded from the environment before
// decoding. The result is validated.
func LoadConfig(path string) (*Config, error) {
	content, err := os.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	expanded := os.ExpandEnv(string(content))

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "parse %s: %v", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "parse %s: %v", path, err)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "unsupported config format %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
