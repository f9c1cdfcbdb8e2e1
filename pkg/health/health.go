// Package health turns a read-only view of the logging pipeline into a
// health verdict suitable for readiness probes.
package health

import (
	"fmt"
	"strings"
	"time"

	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// Status is a ranked health status. Larger values are worse, so the
// aggregate of several statuses is their maximum.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusDegraded
	StatusUnhealthy
)

var statusNames = [...]string{"unknown", "healthy", "degraded", "unhealthy"}

func (s Status) String() string {
	if s < StatusUnknown || s > StatusUnhealthy {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i, n := range statusNames {
		if n == name {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown health status %q", text)
}

// Worst returns the worse of two statuses.
func Worst(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// Components named in issues that are not tied to a single sink.
const (
	ComponentBuffer    = "Buffer"
	ComponentProvider  = "Provider"
	ComponentSinks     = "Sinks"
	ComponentEvaluator = "HealthEvaluator"
)

// Issue is one problem found during an evaluation.
type Issue struct {
	Component   string    `json:"component"`
	Severity    Status    `json:"severity"`
	Description string    `json:"description"`
	DetectedAt  time.Time `json:"detected_at"`
}

// UsageUnavailable is the buffer usage reported when capacity is unknown.
const UsageUnavailable = -1.0

// Report is the result of one evaluation. It is never mutated after it is
// returned.
type Report struct {
	Status      Status                      `json:"status"`
	Issues      []Issue                     `json:"issues"`
	Sinks       map[string]types.SinkHealth `json:"sinks"`
	BufferUsage float64                     `json:"buffer_usage"`
	EvaluatedAt time.Time                   `json:"evaluated_at"`
}

// Clone returns a copy that shares no slices, maps or pointers with r.
func (r Report) Clone() Report {
	out := r
	if r.Issues != nil {
		out.Issues = append([]Issue(nil), r.Issues...)
	}
	if r.Sinks != nil {
		out.Sinks = make(map[string]types.SinkHealth, len(r.Sinks))
		for name, h := range r.Sinks {
			if h.LastSuccessfulWrite != nil {
				ts := *h.LastSuccessfulWrite
				h.LastSuccessfulWrite = &ts
			}
			out.Sinks[name] = h
		}
	}
	return out
}

// IsReady reports whether the pipeline can accept traffic. Degraded
// pipelines still deliver to at least some destinations.
func (r Report) IsReady() bool {
	return r.Status == StatusHealthy || r.Status == StatusDegraded
}

// State is the read-only view of the pipeline consumed by the evaluator.
// Implementations must not block or perform I/O.
type State interface {
	BufferSize() int
	BufferCapacity() int
	IsDiscarding() bool
	IsDegradedMode() bool
	Sinks() []types.SinkHealth
}

func unknownReport(now time.Time, cause string) Report {
	return Report{
		Status: StatusUnknown,
		Issues: []Issue{{
			Component:   ComponentEvaluator,
			Severity:    StatusUnknown,
			Description: cause,
			DetectedAt:  now,
		}},
		Sinks:       map[string]types.SinkHealth{},
		BufferUsage: UsageUnavailable,
		EvaluatedAt: now,
	}
}
