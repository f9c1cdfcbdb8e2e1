package formatters

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

var testTime = time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

func fullEntry() *types.LogEntry {
	return &types.LogEntry{
		ID:          uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Timestamp:   testTime,
		Category:    "orders",
		Level:       types.LevelWarn,
		EventID:     types.EventID{ID: 42, Name: "OrderLate"},
		Message:     "order 7 is late",
		State:       map[string]interface{}{"order_id": 7, "region": "eu west"},
		Scopes:      map[string]interface{}{"request_id": "r-1"},
		TraceID:     "trace-1",
		SpanID:      "span-1",
		ServiceName: "shop",
		Environment: "prod",
		HTTPRequest: &types.HTTPRequestInfo{Method: "GET", Path: "/orders/7", StatusCode: 200},
		Error:       &types.ErrorInfo{Type: "*errors.errorString", Message: "timeout"},
	}
}

func decode(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("output should be newline terminated")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v\n%s", err, data)
	}
	return m
}

func TestJSONFormatter_Format(t *testing.T) {
	tests := []struct {
		name    string
		entry   *types.LogEntry
		options func(*JSONFormatter)
		check   func(t *testing.T, m map[string]interface{})
	}{
		{
			name:  "minimal entry",
			entry: &types.LogEntry{Timestamp: testTime, Level: types.LevelInfo, Message: "hello"},
			check: func(t *testing.T, m map[string]interface{}) {
				if m["message"] != "hello" || m["level"] != "INFO" {
					t.Errorf("unexpected document %v", m)
				}
				if m["timestamp"] != "2023-01-01T12:00:00Z" {
					t.Errorf("timestamp = %v", m["timestamp"])
				}
				for _, absent := range []string{"id", "category", "event_id", "state", "scopes", "trace_id", "http"} {
					if _, ok := m[absent]; ok {
						t.Errorf("%s should be omitted", absent)
					}
				}
			},
		},
		{
			name:  "full entry",
			entry: fullEntry(),
			check: func(t *testing.T, m map[string]interface{}) {
				if m["id"] != "6ba7b810-9dad-11d1-80b4-00c04fd430c8" {
					t.Errorf("id = %v", m["id"])
				}
				state := m["state"].(map[string]interface{})
				if state["order_id"] != float64(7) {
					t.Errorf("state = %v", state)
				}
				scopes := m["scopes"].(map[string]interface{})
				if scopes["request_id"] != "r-1" {
					t.Errorf("scopes = %v", scopes)
				}
				if m["trace_id"] != "trace-1" || m["service"] != "shop" || m["environment"] != "prod" {
					t.Errorf("correlation fields missing: %v", m)
				}
				if m["error"].(map[string]interface{})["message"] != "timeout" {
					t.Errorf("error = %v", m["error"])
				}
				if m["http"].(map[string]interface{})["path"] != "/orders/7" {
					t.Errorf("http = %v", m["http"])
				}
				if m["event_id"].(map[string]interface{})["name"] != "OrderLate" {
					t.Errorf("event_id = %v", m["event_id"])
				}
			},
		},
		{
			name:    "flattened and filtered state",
			entry:   fullEntry(),
			options: func(f *JSONFormatter) { f.Options.FlattenFields = true; f.WithExcludeFields("region") },
			check: func(t *testing.T, m map[string]interface{}) {
				if m["order_id"] != float64(7) {
					t.Errorf("order_id should be at the root: %v", m)
				}
				if _, ok := m["region"]; ok {
					t.Error("region should be excluded")
				}
				if _, ok := m["state"]; ok {
					t.Error("state should not be nested when flattened")
				}
			},
		},
		{
			name: "unencodable state value",
			entry: &types.LogEntry{
				Timestamp: testTime,
				Message:   "nan",
				State:     map[string]interface{}{"ratio": math.NaN()},
			},
			check: func(t *testing.T, m map[string]interface{}) {
				if m["message"] != "nan" {
					t.Errorf("message = %v", m["message"])
				}
				if !strings.HasPrefix(m["state"].(string), "[unencodable") {
					t.Errorf("state = %v", m["state"])
				}
			},
		},
		{
			name:    "lower case level",
			entry:   &types.LogEntry{Timestamp: testTime, Level: types.LevelError, Message: "x"},
			options: func(f *JSONFormatter) { f.Options.LevelFormat = LevelFormatNameLower },
			check: func(t *testing.T, m map[string]interface{}) {
				if m["level"] != "error" {
					t.Errorf("level = %v", m["level"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewJSONFormatter()
			if tt.options != nil {
				tt.options(f)
			}
			data, err := f.Format(tt.entry)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			tt.check(t, decode(t, data))
		})
	}
}

func TestTextFormatter_Format(t *testing.T) {
	tests := []struct {
		name     string
		entry    *types.LogEntry
		options  func(*TextFormatter)
		contains []string
		absent   []string
	}{
		{
			name:     "basic",
			entry:    &types.LogEntry{Timestamp: testTime, Level: types.LevelInfo, Message: "started"},
			contains: []string{"[2023-01-01T12:00:00Z] [INFO] started\n"},
		},
		{
			name:  "full entry",
			entry: fullEntry(),
			contains: []string{
				"[WARN] orders: order 7 is late",
				"event_id=42",
				"event=OrderLate",
				"order_id=7",
				`region="eu west"`,
				"scope.request_id=r-1",
				"trace_id=trace-1",
				"http.method=GET",
				"http.status=200",
				"error=timeout",
			},
		},
		{
			name:     "no time or level",
			entry:    &types.LogEntry{Timestamp: testTime, Level: types.LevelDebug, Message: "bare"},
			options:  func(f *TextFormatter) { f.Options.IncludeTime = false; f.Options.IncludeLevel = false },
			contains: []string{"bare\n"},
			absent:   []string{"[", "DEBUG"},
		},
		{
			name:     "symbol level",
			entry:    &types.LogEntry{Timestamp: testTime, Level: types.LevelError, Message: "m"},
			options:  func(f *TextFormatter) { f.Options.LevelFormat = LevelFormatSymbol },
			contains: []string{"[E] m"},
		},
		{
			name: "stack trace on following lines",
			entry: &types.LogEntry{
				Timestamp: testTime,
				Message:   "failed",
				Error:     &types.ErrorInfo{Message: "boom", StackTrace: "main.go:10\nmain.go:20"},
			},
			contains: []string{"error=boom\nmain.go:10\nmain.go:20\n"},
		},
		{
			name:     "truncated field",
			entry:    &types.LogEntry{Timestamp: testTime, Message: "m", State: map[string]interface{}{"body": "abcdefghij"}},
			options:  func(f *TextFormatter) { f.Options.MaxFieldSize = 4 },
			contains: []string{"body=abcd...(truncated)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewTextFormatter()
			if tt.options != nil {
				tt.options(f)
			}
			data, err := f.Format(tt.entry)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			out := string(data)
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output %q does not contain %q", out, want)
				}
			}
			for _, unwanted := range tt.absent {
				if strings.Contains(out, unwanted) {
					t.Errorf("output %q should not contain %q", out, unwanted)
				}
			}
		})
	}
}

func TestTextFormatter_FieldsSorted(t *testing.T) {
	f := NewTextFormatter()
	got := f.FormatFields("", map[string]interface{}{"b": 2, "a": 1, "c": 3})
	if strings.Join(got, ",") != "a=1,b=2,c=3" {
		t.Errorf("FormatFields() = %v", got)
	}
}

type node struct {
	Name string
	Next *node
}

func TestSafeFields(t *testing.T) {
	loop := &node{Name: "a"}
	loop.Next = loop
	self := map[string]interface{}{"k": "v"}
	self["self"] = self

	out := safeFields(map[string]interface{}{
		"loop":  loop,
		"self":  self,
		"err":   errors.New("bad"),
		"level": types.LevelWarn,
		"fn":    func() {},
		"bytes": []byte("raw"),
	})

	if out["err"] != "bad" {
		t.Errorf("err = %v", out["err"])
	}
	if out["level"] != "WARN" {
		t.Errorf("level = %v", out["level"])
	}
	if out["fn"] != "[func]" {
		t.Errorf("fn = %v", out["fn"])
	}
	if _, err := json.Marshal(out); err != nil {
		t.Fatalf("safe copy should marshal: %v", err)
	}
	inner := out["self"].(map[string]interface{})
	if inner["self"] != "[circular reference]" {
		t.Errorf("self reference = %v", inner["self"])
	}
	next := out["loop"].(map[string]interface{})["Next"]
	if next != "[circular reference]" {
		t.Errorf("pointer cycle = %v", next)
	}
}
