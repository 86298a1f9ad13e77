package diagnostic

import (
	"fmt"
	"strings"
)

// Level is the severity of a diagnostic. The zero value, LevelAny, only appears in expectations
// and matches every other level.
type Level uint8

const (
	LevelAny Level = iota
	LevelHelp
	LevelNote
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelAny:
		return "any"
	case LevelHelp:
		return "help"
	case LevelNote:
		return "note"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// Matches reports whether an expectation of level l is satisfied by a diagnostic of level actual.
func (l Level) Matches(actual Level) bool {
	return l == LevelAny || l == actual
}

// ParseLevel parses a level name as compilers usually print it. It is case-insensitive and
// accepts "warn" as a synonym of "warning".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "any":
		return LevelAny, nil
	case "help":
		return LevelHelp, nil
	case "note", "failure-note":
		return LevelNote, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error", "error: internal compiler error":
		return LevelError, nil
	}
	return LevelAny, fmt.Errorf("unknown diagnostic level %q, expected one of error, warning, note, help", s)
}

// UnmarshalText lets levels be used directly in configuration files.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
