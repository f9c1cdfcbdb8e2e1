package omni

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/wayneeseguin/omnipipe/pkg/backends"
)

// ErrorLevel represents the severity of an internal pipeline failure
type ErrorLevel int

const (
	// ErrorLevelLow represents minor errors that don't significantly impact operation
	ErrorLevelLow ErrorLevel = iota
	// ErrorLevelWarn represents warning-level errors
	ErrorLevelWarn
	// ErrorLevelMedium represents errors that degrade a single sink or drop entries
	ErrorLevelMedium
	// ErrorLevelHigh represents errors that affect the whole pipeline
	ErrorLevelHigh
	// ErrorLevelCritical represents failures that require immediate attention
	ErrorLevelCritical
)

var errorLevelNames = [...]string{"low", "warn", "medium", "high", "critical"}

func (l ErrorLevel) String() string {
	if l < ErrorLevelLow || l > ErrorLevelCritical {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return errorLevelNames[l]
}

// Usage errors returned by the provider
var (
	// ErrObjectDisposed is returned when a logger is requested from a
	// provider that is shutting down or already shut down.
	ErrObjectDisposed = errors.New("provider has been disposed")

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownSinkScheme is returned when a sink URI has no known backend.
	ErrUnknownSinkScheme = backends.ErrUnknownScheme
)

// LogError describes a failure the pipeline absorbed. It is delivered to the
// configured ErrorHandler and never returned to the code that logged.
type LogError struct {
	Operation   string                 // The operation that failed (write, flush, dispose...)
	Destination string                 // The sink or component where the error occurred
	Message     string                 // Human readable error message
	Err         error                  // The underlying error
	Level       ErrorLevel             // The severity level of the error
	Timestamp   time.Time              // When the error occurred
	Context     map[string]interface{} // Additional context
}

// Error implements the error interface
func (e LogError) Error() string {
	if e.Err != nil && e.Message != e.Err.Error() {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e LogError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives internal pipeline failures
type ErrorHandler func(err LogError)

// SilentErrorHandler discards all errors (used in tests)
var SilentErrorHandler ErrorHandler = func(LogError) {}

// StderrErrorHandler writes errors to stderr
var StderrErrorHandler ErrorHandler = func(err LogError) {
	dest := err.Destination
	if dest == "" {
		dest = "-"
	}
	fmt.Fprintf(os.Stderr, "[omnipipe] %s %s %s %s: %s\n",
		err.Timestamp.Format(time.RFC3339), err.Level, err.Operation, dest, err.Error())
}

// InvariantError reports a lifecycle transition that observed an unexpected
// predecessor state. It is raised as a panic and never recovered by the
// provider.
type InvariantError struct {
	From   ProviderState
	To     ProviderState
	Actual ProviderState
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("lifecycle invariant violated: transition %s -> %s found state %s", e.From, e.To, e.Actual)
}
