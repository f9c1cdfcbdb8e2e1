package formatters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// TextFormatter formats log entries as human-readable text
type TextFormatter struct {
	Options FormatOptions
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		Options: DefaultFormatOptions(),
	}
}

// Format formats a log entry as a single text line:
//
//	[timestamp] [LEVEL] category: message key=value scope.key=value error="..."
func (f *TextFormatter) Format(entry *types.LogEntry) ([]byte, error) {
	var result strings.Builder

	if f.Options.IncludeTime {
		result.WriteString("[")
		result.WriteString(f.Options.timestamp(entry.Timestamp))
		result.WriteString("] ")
	}

	if f.Options.IncludeLevel {
		result.WriteString("[")
		result.WriteString(f.Options.level(entry.Level))
		result.WriteString("] ")
	}

	if entry.Category != "" {
		result.WriteString(entry.Category)
		result.WriteString(": ")
	}
	result.WriteString(strings.TrimRight(entry.Message, "\n"))

	sep := f.Options.FieldSeparator
	if sep == "" {
		sep = " "
	}
	for _, kv := range f.pairs(entry) {
		result.WriteString(sep)
		result.WriteString(kv)
	}

	if entry.Error != nil && entry.Error.StackTrace != "" {
		result.WriteString("\n")
		result.WriteString(strings.TrimRight(entry.Error.StackTrace, "\n"))
	}

	result.WriteString("\n")
	return []byte(result.String()), nil
}

func (f *TextFormatter) pairs(entry *types.LogEntry) []string {
	var out []string
	if !entry.EventID.IsZero() {
		out = append(out, fmt.Sprintf("event_id=%d", entry.EventID.ID))
		if entry.EventID.Name != "" {
			out = append(out, "event="+quote(entry.EventID.Name))
		}
	}
	out = append(out, f.FormatFields("", entry.State)...)
	out = append(out, f.FormatFields("scope.", entry.Scopes)...)

	for _, kv := range [][2]string{
		{"trace_id", entry.TraceID},
		{"span_id", entry.SpanID},
		{"parent_span_id", entry.ParentSpanID},
		{"service", entry.ServiceName},
		{"environment", entry.Environment},
	} {
		if kv[1] != "" {
			out = append(out, kv[0]+"="+quote(kv[1]))
		}
	}
	if r := entry.HTTPRequest; r != nil {
		out = append(out, "http.method="+quote(r.Method), "http.path="+quote(r.Path))
		if r.StatusCode != 0 {
			out = append(out, fmt.Sprintf("http.status=%d", r.StatusCode))
		}
	}
	if entry.Error != nil {
		out = append(out, "error="+quote(entry.Error.Message))
	}
	if f.Options.IncludeHost {
		out = append(out, "host="+quote(getHostname()))
	}
	return out
}

// FormatFields formats fields as prefixed key=value pairs, sorted by key
func (f *TextFormatter) FormatFields(prefix string, fields map[string]interface{}) []string {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, prefix+k+"="+quote(fmt.Sprintf("%v", f.Options.field(fields[k]))))
	}
	return parts
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
