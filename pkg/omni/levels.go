package omni

import "github.com/wayneeseguin/omnipipe/pkg/types"

// Level is the severity of a log entry.
type Level = types.Level

// Log levels, lowest to highest. LevelNone as a minimum level disables logging.
const (
	LevelTrace    = types.LevelTrace
	LevelDebug    = types.LevelDebug
	LevelInfo     = types.LevelInfo
	LevelWarn     = types.LevelWarn
	LevelError    = types.LevelError
	LevelCritical = types.LevelCritical
	LevelNone     = types.LevelNone
)

// ParseLevel converts a level name such as "warn" or "Information" to a Level.
func ParseLevel(name string) (Level, error) {
	return types.ParseLevel(name)
}

// EventID identifies the kind of event being logged.
type EventID = types.EventID

// OverflowPolicy decides what the buffer does when it is full.
type OverflowPolicy = types.OverflowPolicy

// Overflow policies
const (
	DropOldest = types.DropOldest
	DropNewest = types.DropNewest
	Block      = types.Block
)
