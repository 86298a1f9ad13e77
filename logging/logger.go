// Package logging is the harness-level console logger, used for messages that do not belong to
// any one test case.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel accepts debug, info, warn (or warning) and error, in any case. The empty string
// means info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q, expected debug, info, warn or error", s)
}

var levelColors = map[Level]*color.Color{
	LevelDebug: color.New(color.Faint),
	LevelInfo:  color.New(color.FgCyan),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed, color.Bold),
}

// Logger writes leveled messages to a writer. It is safe for concurrent use, and its Printf
// method makes it usable wherever a framework.Logger is expected.
type Logger struct {
	out      io.Writer
	minLevel Level
	useColor bool
	lock     sync.Mutex
}

// New creates a Logger. Level tags are colored only when out is a terminal and color has not
// been disabled globally (NO_COLOR, or color.NoColor set by the command line).
func New(out io.Writer, minLevel Level) *Logger {
	return &Logger{out: out, minLevel: minLevel, useColor: IsTerminal(out) && !color.NoColor}
}

// IsTerminal reports whether w is an *os.File attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetColor overrides terminal detection.
func (l *Logger) SetColor(on bool) {
	l.lock.Lock()
	l.useColor = on
	l.lock.Unlock()
}

func (l *Logger) Enabled(level Level) bool {
	return level >= l.minLevel
}

func (l *Logger) Log(level Level, message string, args ...interface{}) {
	if l == nil || !l.Enabled(level) {
		return
	}
	text := fmt.Sprintf(message, args...)
	tag := "[" + strings.ToUpper(level.String()) + "]"

	l.lock.Lock()
	defer l.lock.Unlock()
	if l.useColor {
		tag = levelColors[level].Sprint(tag)
	}
	fmt.Fprintf(l.out, "%s %s\n", tag, strings.TrimSuffix(text, "\n"))
}

func (l *Logger) Debugf(message string, args ...interface{}) { l.Log(LevelDebug, message, args...) }
func (l *Logger) Infof(message string, args ...interface{})  { l.Log(LevelInfo, message, args...) }
func (l *Logger) Warnf(message string, args ...interface{})  { l.Log(LevelWarn, message, args...) }
func (l *Logger) Errorf(message string, args ...interface{}) { l.Log(LevelError, message, args...) }

// Printf logs at debug level.
func (l *Logger) Printf(message string, args ...interface{}) { l.Log(LevelDebug, message, args...) }
