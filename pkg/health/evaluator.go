package health

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// Buffer usage thresholds, in percent.
const (
	HighUsagePercent = 80.0
	FullUsagePercent = 100.0
)

// DefaultStaleThreshold is how long a sink may go without a successful write
// before it is considered degraded.
const DefaultStaleThreshold = 5 * time.Minute

// Evaluator computes health reports. The zero value uses the defaults.
type Evaluator struct {
	StaleThreshold time.Duration
	Now            func() time.Time
}

// NewEvaluator creates an evaluator with the given staleness threshold.
func NewEvaluator(staleThreshold time.Duration) *Evaluator {
	return &Evaluator{StaleThreshold: staleThreshold}
}

func (e *Evaluator) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Evaluator) staleThreshold() time.Duration {
	if e == nil || e.StaleThreshold <= 0 {
		return DefaultStaleThreshold
	}
	return e.StaleThreshold
}

// Evaluate builds a report from state. It never panics: a nil state or a
// failure while reading it yields an Unknown report.
func (e *Evaluator) Evaluate(state State) (report Report) {
	now := e.now()
	if isNil(state) {
		return unknownReport(now, "health state unavailable")
	}

	defer func() {
		if r := recover(); r != nil {
			report = unknownReport(now, fmt.Sprintf("health evaluation failed: %v", r))
		}
	}()

	var issues []Issue
	add := func(component string, severity Status, format string, args ...interface{}) {
		issues = append(issues, Issue{
			Component:   component,
			Severity:    severity,
			Description: fmt.Sprintf(format, args...),
			DetectedAt:  now,
		})
	}

	usage := UsageUnavailable
	size, capacity := state.BufferSize(), state.BufferCapacity()
	if capacity > 0 {
		usage = float64(size) / float64(capacity) * 100
	}
	switch {
	case state.IsDiscarding():
		add(ComponentBuffer, StatusUnhealthy, "Buffer full, messages discarding (%d/%d)", size, capacity)
	case usage >= FullUsagePercent:
		add(ComponentBuffer, StatusUnhealthy, "Buffer full (%d/%d)", size, capacity)
	case usage >= HighUsagePercent:
		add(ComponentBuffer, StatusDegraded, "Buffer usage high: %.1f%%", usage)
	}

	if state.IsDegradedMode() {
		add(ComponentProvider, StatusDegraded, "Provider operating in degraded mode")
	}

	sinks := state.Sinks()
	statuses := make(map[string]types.SinkHealth, len(sinks))
	if len(sinks) == 0 {
		add(ComponentSinks, StatusDegraded, "No sinks configured")
	}
	stale := e.staleThreshold()
	for _, s := range sinks {
		statuses[s.Name] = s
		switch {
		case !s.IsOperational:
			msg := s.StatusMessage
			if msg == "" {
				msg = "not operational"
			}
			add(s.Name, StatusUnhealthy, "Sink %s is not operational: %s", s.Name, msg)
		case signalsFallback(s.StatusMessage):
			add(s.Name, StatusDegraded, "Sink %s is running in fallback mode: %s", s.Name, s.StatusMessage)
		case s.LastSuccessfulWrite != nil && now.Sub(*s.LastSuccessfulWrite) > stale:
			add(s.Name, StatusDegraded, "Sink %s has not written successfully since %s",
				s.Name, s.LastSuccessfulWrite.Format(time.RFC3339))
		}
	}

	status := StatusHealthy
	for _, is := range issues {
		status = Worst(status, is.Severity)
	}

	return Report{
		Status:      status,
		Issues:      issues,
		Sinks:       statuses,
		BufferUsage: usage,
		EvaluatedAt: now,
	}
}

func signalsFallback(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "fallback") || strings.Contains(m, "degraded")
}

func isNil(state State) bool {
	if state == nil {
		return true
	}
	v := reflect.ValueOf(state)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
