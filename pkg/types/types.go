package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	// LevelNone disables logging when used as a minimum level.
	LevelNone
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "CRITICAL", "NONE"}

// String returns the upper-case level name.
func (l Level) String() string {
	if l < LevelTrace || l > LevelNone {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel converts a level name (case-insensitive) to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "information", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "critical", "fatal":
		return LevelCritical, nil
	case "none", "off":
		return LevelNone, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// UnmarshalText lets Level be decoded from TOML and YAML configuration.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(l.String())), nil
}

// EventID identifies the kind of event being logged.
type EventID struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// IsZero reports whether no event id was supplied.
func (e EventID) IsZero() bool {
	return e.ID == 0 && e.Name == ""
}

// ErrorInfo is the captured form of an error attached to a log entry.
type ErrorInfo struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	StackTrace string `json:"stack_trace,omitempty"`
}

// HTTPRequestInfo carries request metadata populated by HTTP adapters.
type HTTPRequestInfo struct {
	Method     string        `json:"method,omitempty"`
	Path       string        `json:"path,omitempty"`
	Query      string        `json:"query,omitempty"`
	RemoteAddr string        `json:"remote_addr,omitempty"`
	UserAgent  string        `json:"user_agent,omitempty"`
	RequestID  string        `json:"request_id,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// LogEntry is a single finished log event.
//
// Entries are built once per log call and must not be modified afterwards;
// every component downstream of the logger (buffer, sinks, formatters) only
// reads them. Maps held by an entry are private copies.
type LogEntry struct {
	ID           uuid.UUID              `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	Category     string                 `json:"category"`
	Level        Level                  `json:"level"`
	EventID      EventID                `json:"event_id"`
	Message      string                 `json:"message"`
	Error        *ErrorInfo             `json:"error,omitempty"`
	State        map[string]interface{} `json:"state,omitempty"`
	Scopes       map[string]interface{} `json:"scopes,omitempty"`
	TraceID      string                 `json:"trace_id,omitempty"`
	SpanID       string                 `json:"span_id,omitempty"`
	ParentSpanID string                 `json:"parent_span_id,omitempty"`
	ServiceName  string                 `json:"service_name,omitempty"`
	Environment  string                 `json:"environment,omitempty"`
	HTTPRequest  *HTTPRequestInfo       `json:"http_request,omitempty"`
}

// Sink receives finished log entries. Implementations are external
// collaborators (console, file, message bus...).
type Sink interface {
	Write(entry *LogEntry) error
}

// BatchSink is a sink with a native batch write path. Batch writes need not
// be atomic across entries.
type BatchSink interface {
	Sink
	WriteBatch(entries []*LogEntry) error
}

// NamedSink lets a sink choose the name it is reported under.
type NamedSink interface {
	Name() string
}

// TypedSink lets a sink report a type tag for health snapshots.
type TypedSink interface {
	Type() string
}

// HealthReporter is implemented by sinks that can describe their own health.
// Health must never block on I/O.
type HealthReporter interface {
	Health() SinkHealth
}

// Formatter renders an entry into a wire format. It is consumed by concrete
// sinks, never by the pipeline core.
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
}

// SinkHealth is a point-in-time snapshot of a sink's operational state.
type SinkHealth struct {
	Name                string     `json:"name"`
	Type                string     `json:"type"`
	IsOperational       bool       `json:"is_operational"`
	StatusMessage       string     `json:"status_message,omitempty"`
	LastSuccessfulWrite *time.Time `json:"last_successful_write,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures,omitempty"`
}

// OverflowPolicy decides what happens when the buffer is full.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest queued entry to make room.
	DropOldest OverflowPolicy = iota
	// DropNewest discards the incoming entry.
	DropNewest
	// Block waits, up to a timeout, for a flush to make room.
	Block
)

// String returns the configuration spelling of the policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "drop_oldest"
	case DropNewest:
		return "drop_newest"
	case Block:
		return "block"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseOverflowPolicy converts a configuration value to a policy.
func ParseOverflowPolicy(name string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(name))) {
	case "drop_oldest", "dropoldest", "":
		return DropOldest, nil
	case "drop_newest", "dropnewest":
		return DropNewest, nil
	case "block":
		return Block, nil
	}
	return DropOldest, fmt.Errorf("unknown overflow policy %q", name)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *OverflowPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseOverflowPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p OverflowPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
