package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	// LevelOff disables tracing.
	LevelOff     Level = iota
	LevelError         // only defect reports
	LevelSession       // session boundaries
	LevelTable         // table-wide operations
	LevelEntry         // every interned entry
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelSession:
		return "session"
	case LevelTable:
		return "table"
	case LevelEntry:
		return "entry"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "off", "":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "session":
		return LevelSession, nil
	case "table":
		return LevelTable, nil
	case "entry":
		return LevelEntry, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|session|table|entry)", s)
	}
}

// ShouldEmit returns true if the given scope should emit at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelOff:
		return false
	case LevelError:
		return scope == ScopeDefect
	case LevelSession:
		return scope <= ScopeSession || scope == ScopeDefect
	case LevelTable:
		return scope <= ScopeTable || scope == ScopeDefect
	case LevelEntry:
		return true
	}
	return false
}
