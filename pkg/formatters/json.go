package formatters

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// JSONFormatter formats log entries as line-delimited JSON
type JSONFormatter struct {
	Options       FormatOptions
	IncludeFields []string // Optional: specific state keys to include
	ExcludeFields []string // Optional: state keys to exclude
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{
		Options: DefaultFormatOptions(),
	}
}

// Format formats a log entry as JSON
func (f *JSONFormatter) Format(entry *types.LogEntry) ([]byte, error) {
	data, err := f.safeMarshal(f.document(entry))
	if err != nil {
		return nil, err
	}

	// Add newline for line-delimited JSON
	return append(data, '\n'), nil
}

func (f *JSONFormatter) document(entry *types.LogEntry) map[string]interface{} {
	doc := make(map[string]interface{})

	if f.Options.IncludeTime {
		doc["timestamp"] = f.Options.timestamp(entry.Timestamp)
	}
	if f.Options.IncludeLevel {
		doc["level"] = f.Options.level(entry.Level)
	}
	doc["message"] = entry.Message

	if entry.ID != uuid.Nil {
		doc["id"] = entry.ID.String()
	}
	if entry.Category != "" {
		doc["category"] = entry.Category
	}
	if !entry.EventID.IsZero() {
		doc["event_id"] = entry.EventID
	}
	if entry.Error != nil {
		doc["error"] = entry.Error
	}

	if state := f.filtered(entry.State); len(state) > 0 {
		if f.Options.FlattenFields {
			for k, v := range state {
				if _, taken := doc[k]; !taken {
					doc[k] = v
				}
			}
		} else {
			doc["state"] = state
		}
	}
	if len(entry.Scopes) > 0 {
		doc["scopes"] = safeFields(entry.Scopes)
	}

	putString(doc, "trace_id", entry.TraceID)
	putString(doc, "span_id", entry.SpanID)
	putString(doc, "parent_span_id", entry.ParentSpanID)
	putString(doc, "service", entry.ServiceName)
	putString(doc, "environment", entry.Environment)
	if entry.HTTPRequest != nil {
		doc["http"] = entry.HTTPRequest
	}
	if f.Options.IncludeHost {
		putString(doc, "host", getHostname())
	}
	return doc
}

func putString(doc map[string]interface{}, key, value string) {
	if value != "" {
		doc[key] = value
	}
}

func (f *JSONFormatter) filtered(state map[string]interface{}) map[string]interface{} {
	if len(state) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(state))
	for k, v := range safeFields(state) {
		if !f.shouldExcludeField(k) {
			out[k] = f.Options.field(v)
		}
	}
	return out
}

// shouldExcludeField checks if a field should be excluded from output
func (f *JSONFormatter) shouldExcludeField(field string) bool {
	for _, excluded := range f.ExcludeFields {
		if field == excluded {
			return true
		}
	}

	if len(f.IncludeFields) > 0 {
		for _, included := range f.IncludeFields {
			if field == included {
				return false
			}
		}
		return true
	}

	return false
}

// WithIncludeFields sets fields to include in JSON output
func (f *JSONFormatter) WithIncludeFields(fields ...string) *JSONFormatter {
	f.IncludeFields = fields
	return f
}

// WithExcludeFields sets fields to exclude from JSON output
func (f *JSONFormatter) WithExcludeFields(fields ...string) *JSONFormatter {
	f.ExcludeFields = fields
	return f
}

// safeMarshal marshals data to JSON, degrading unencodable values to strings
func (f *JSONFormatter) safeMarshal(data map[string]interface{}) ([]byte, error) {
	marshal := json.Marshal
	if f.Options.IndentJSON {
		marshal = func(v interface{}) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	}

	result, err := marshal(data)
	if err == nil {
		return result, nil
	}

	safe := make(map[string]interface{}, len(data))
	for k, v := range data {
		if _, err := json.Marshal(v); err != nil {
			safe[k] = "[unencodable: " + err.Error() + "]"
			continue
		}
		safe[k] = v
	}
	return marshal(safe)
}
