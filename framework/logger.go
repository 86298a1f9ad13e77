package framework

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const timestampFormat = "15:04:05.000"

// Logger is the minimal logging interface used throughout the harness.
type Logger interface {
	Printf(message string, args ...interface{})
}

type nullLogger struct{}

func (n nullLogger) Printf(message string, args ...interface{}) {}

func NullLogger() Logger { return nullLogger{} }

type CapturedMessage struct {
	Time    time.Time
	Message string
}

// CapturedOutput is the debug output of one test case, in the order it was logged.
type CapturedOutput []CapturedMessage

// CapturingLogger keeps messages in memory until the outcome of a case is known. It is safe for
// concurrent use.
type CapturingLogger struct {
	output []CapturedMessage
	lock   sync.Mutex
}

func (l *CapturingLogger) Printf(message string, args ...interface{}) {
	m := CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(message, args...)}
	l.lock.Lock()
	l.output = append(l.output, m)
	l.lock.Unlock()
}

func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append(CapturedOutput(nil), l.output...)
}

// Dump writes each message after prefix and a timestamp. Continuation lines of a multi-line
// message are indented under the first.
func (output CapturedOutput) Dump(dest io.Writer, prefix string) {
	for _, m := range output {
		stamp := fmt.Sprintf("%s[%s] ", prefix, m.Time.Format(timestampFormat))
		indent := strings.Repeat(" ", len(stamp))
		for i, line := range strings.Split(strings.TrimSuffix(m.Message, "\n"), "\n") {
			if i == 0 {
				fmt.Fprintf(dest, "%s%s\n", stamp, line)
			} else {
				fmt.Fprintf(dest, "%s%s\n", indent, line)
			}
		}
	}
}
