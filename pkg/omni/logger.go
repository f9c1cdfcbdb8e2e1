package omni

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/internal/utils"
	"github.com/wayneeseguin/omnipipe/pkg/scope"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// Logger is a lightweight view over a Provider for one category. Loggers
// are safe for concurrent use and cheap to copy via WithFields.
type Logger struct {
	provider *Provider
	category string
	fields   map[string]interface{}
}

// Category returns the logger's category.
func (l *Logger) Category() string { return l.category }

// IsEnabled reports whether entries at level would be recorded.
func (l *Logger) IsEnabled(level Level) bool {
	return level >= l.provider.cfg.MinLevel && level < LevelNone && l.provider.IsOperational()
}

// BeginScope opens a correlation scope on ctx. Every entry logged with the
// returned context, or a context derived from it, carries the frame's values
// until the handle is released. Inner frames win on key collisions.
//
//	ctx, h := logger.BeginScope(ctx, map[string]interface{}{"order_id": id})
//	defer h.Release()
func (l *Logger) BeginScope(ctx context.Context, frame interface{}) (context.Context, *scope.Handle) {
	return l.provider.scopes.Push(ctx, frame)
}

// WithFields returns a logger that adds fields to the state of every entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{provider: l.provider, category: l.category, fields: merged}
}

// Log records one entry. The template's {Name} placeholders are filled from
// args and added to the state; explicit state wins over template values,
// which win over WithFields values. Log never fails and never panics: below
// the minimum level or outside the Operational state it does nothing.
func (l *Logger) Log(ctx context.Context, level Level, eventID EventID, state map[string]interface{}, err error, template string, args ...interface{}) {
	if !l.IsEnabled(level) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.provider.reportError(LogError{
				Operation:   "log",
				Destination: l.category,
				Message:     fmt.Sprintf("building entry panicked: %v", r),
				Level:       ErrorLevelMedium,
			})
		}
	}()

	l.provider.enqueue(l.newEntry(ctx, level, eventID, state, err, template, args))
}

func (l *Logger) newEntry(ctx context.Context, level Level, eventID EventID, state map[string]interface{}, err error, template string, args []interface{}) *types.LogEntry {
	message, named := renderTemplate(template, args)

	merged := make(map[string]interface{}, len(l.fields)+len(named)+len(state))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range named {
		merged[k] = v
	}
	for k, v := range state {
		merged[k] = v
	}

	entry := &types.LogEntry{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Category:  l.category,
		Level:     level,
		EventID:   eventID,
		Message:   message,
		Error:     errorInfo(err),
		State:     copyFields(merged),
	}

	if ctx != nil {
		entry.Scopes = copyFields(l.provider.scopes.Current(ctx))
	}

	c := utils.CorrelationFrom(ctx)
	entry.TraceID = c.TraceID
	entry.SpanID = c.SpanID
	entry.ParentSpanID = c.ParentSpanID
	entry.HTTPRequest = c.HTTPRequest
	entry.ServiceName = firstNonEmpty(c.ServiceName, l.provider.cfg.ServiceName)
	entry.Environment = firstNonEmpty(c.Environment, l.provider.cfg.Environment)

	if l.provider.redactor != nil {
		l.provider.redactor.Apply(entry)
	}
	return entry
}

// Trace logs at LevelTrace
func (l *Logger) Trace(ctx context.Context, template string, args ...interface{}) {
	l.Log(ctx, LevelTrace, EventID{}, nil, nil, template, args...)
}

// Debug logs at LevelDebug
func (l *Logger) Debug(ctx context.Context, template string, args ...interface{}) {
	l.Log(ctx, LevelDebug, EventID{}, nil, nil, template, args...)
}

// Info logs at LevelInfo
func (l *Logger) Info(ctx context.Context, template string, args ...interface{}) {
	l.Log(ctx, LevelInfo, EventID{}, nil, nil, template, args...)
}

// Warn logs at LevelWarn
func (l *Logger) Warn(ctx context.Context, template string, args ...interface{}) {
	l.Log(ctx, LevelWarn, EventID{}, nil, nil, template, args...)
}

// Error logs at LevelError with an optional error payload
func (l *Logger) Error(ctx context.Context, err error, template string, args ...interface{}) {
	l.Log(ctx, LevelError, EventID{}, nil, err, template, args...)
}

// Critical logs at LevelCritical with an optional error payload
func (l *Logger) Critical(ctx context.Context, err error, template string, args ...interface{}) {
	l.Log(ctx, LevelCritical, EventID{}, nil, err, template, args...)
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// errorInfo captures err for an entry. The stack trace is taken from the
// innermost error in the chain that recorded one.
func errorInfo(err error) *types.ErrorInfo {
	if err == nil {
		return nil
	}
	info := &types.ErrorInfo{
		Type:    fmt.Sprintf("%T", errors.Cause(err)),
		Message: err.Error(),
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			info.StackTrace = fmt.Sprintf("%+v", st.StackTrace())
		}
	}
	return info
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
