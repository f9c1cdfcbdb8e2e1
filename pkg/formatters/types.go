package formatters

import (
	"fmt"
	"strings"
	"time"

	"github.com/wayneeseguin/omnipipe/pkg/types"
)

// FormatOptions controls the output format
type FormatOptions struct {
	TimestampFormat string
	IncludeLevel    bool
	IncludeTime     bool
	LevelFormat     LevelFormat
	IndentJSON      bool
	FieldSeparator  string
	TimeZone        *time.Location
	FlattenFields   bool // Put state at the JSON root instead of under "state"
	IncludeHost     bool // Whether to include hostname field
	MaxFieldSize    int  // Values longer than this are truncated; 0 disables
}

// LevelFormat defines level format options
type LevelFormat int

const (
	// LevelFormatName formats levels as their names (DEBUG, INFO, etc)
	LevelFormatName LevelFormat = iota
	// LevelFormatNameUpper formats levels as uppercase names
	LevelFormatNameUpper
	// LevelFormatNameLower formats levels as lowercase names
	LevelFormatNameLower
	// LevelFormatSymbol formats levels as single-character symbols
	LevelFormatSymbol
)

// DefaultFormatOptions returns default formatting options
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{
		TimestampFormat: time.RFC3339Nano,
		IncludeLevel:    true,
		IncludeTime:     true,
		LevelFormat:     LevelFormatName,
		IndentJSON:      false,
		FieldSeparator:  " ",
		TimeZone:        time.UTC,
		FlattenFields:   false,
	}
}

func (o FormatOptions) timestamp(t time.Time) string {
	loc := o.TimeZone
	if loc == nil {
		loc = time.UTC
	}
	layout := o.TimestampFormat
	if layout == "" || layout == "RFC3339" {
		layout = time.RFC3339Nano
	}
	return t.In(loc).Format(layout)
}

func (o FormatOptions) level(l types.Level) string {
	name := l.String()
	switch o.LevelFormat {
	case LevelFormatNameLower:
		return strings.ToLower(name)
	case LevelFormatSymbol:
		return name[:1]
	default:
		return name
	}
}

func (o FormatOptions) field(value interface{}) interface{} {
	if o.MaxFieldSize <= 0 {
		return value
	}
	return truncateFieldValue(value, o.MaxFieldSize, true)
}

// truncateFieldValue truncates a field value if it exceeds the maximum size.
func truncateFieldValue(value interface{}, maxSize int, truncate bool) interface{} {
	switch v := value.(type) {
	case string:
		if len(v) > maxSize {
			if truncate {
				return v[:maxSize] + "...(truncated)"
			}
			return fmt.Sprintf("[string too long: %d bytes]", len(v))
		}
		return v
	case []byte:
		if len(v) > maxSize {
			if truncate {
				return string(v[:maxSize]) + "...(truncated)"
			}
			return fmt.Sprintf("[bytes too long: %d bytes]", len(v))
		}
		return v
	default:
		return v
	}
}
