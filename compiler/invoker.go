// Package compiler runs the compiler under test, either as a subprocess or through an HTTP
// compile service, and captures what it printed.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/launchdarkly/diagnostic-contract-tests/framework"

	"github.com/alessio/shellescape"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Environment variables exported to every compiler process.
const (
	EnvScratch  = "UI_TEST_SCRATCH"
	EnvRevision = "UI_TEST_REVISION"
)

// Placeholders substituted in configured compiler arguments.
const (
	PlaceholderFixture  = "{fixture}"
	PlaceholderScratch  = "{scratch}"
	PlaceholderRevision = "{revision}"
)

var (
	// ErrTimeout is wrapped by the error of an invocation that exceeded its timeout.
	ErrTimeout = errors.New("compiler invocation timed out")
	// ErrUnsupported is wrapped by the error of an invocation that needs something the invoker
	// cannot do. The compiler was not run.
	ErrUnsupported = errors.New("not supported by the compile service")
)

// Invocation describes one run of the compiler on one revision of a fixture.
type Invocation struct {
	// Tag names the test case, for logs.
	Tag string
	// FixturePath is the absolute path of the file to compile.
	FixturePath string
	// FixtureName is the slash-separated path of the fixture relative to the fixture root.
	FixtureName string
	// Source is the fixture content. Only the compile service needs it.
	Source   string
	Revision string
	// Flags are the fixture's own compile flags, passed after the configured arguments.
	Flags []string
	// Env holds extra KEY=VALUE pairs.
	Env        []string
	ScratchDir string
	// Timeout of 0 means no limit.
	Timeout time.Duration
	// Logger receives debug output about the invocation; it may be nil.
	Logger framework.Logger
}

func (inv Invocation) logger() framework.Logger {
	if inv.Logger == nil {
		return framework.NullLogger()
	}
	return inv.Logger
}

// Output is what the compiler produced.
type Output struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Invoker runs the compiler. An error means the compiler could not be run to completion at all;
// a compiler that ran and reported errors is a successful invocation with a non-zero exit code.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (Output, error)
}

// InvocationError reports that the compiler could not be run, or that what it printed could not
// be used.
type InvocationError struct {
	Command string
	Err     error
}

func (e *InvocationError) Error() string {
	if e.Command == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (command: %s)", e.Err, e.Command)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err came from an invocation that ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// CommandLine renders a program and its arguments as a shell command, for messages and logs.
func CommandLine(program string, args []string) string {
	return shellescape.QuoteCommand(append([]string{program}, args...))
}

var (
	utf8BOM    = []byte{0xef, 0xbb, 0xbf}
	utf16LEBOM = []byte{0xff, 0xfe}
	utf16BEBOM = []byte{0xfe, 0xff}
)

// DecodeOutput turns a captured output stream into text. A UTF-8 byte order mark is dropped,
// UTF-16 output with a byte order mark is transcoded, and CRLF line endings become LF. Anything
// else that is not valid UTF-8 is an *InvocationError.
func DecodeOutput(stream string, data []byte) (string, error) {
	if bytes.HasPrefix(data, utf16LEBOM) || bytes.HasPrefix(data, utf16BEBOM) {
		decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", &InvocationError{Err: fmt.Errorf("non-conforming output encoding on %s: %w", stream, err)}
		}
		data = decoded
	} else {
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", &InvocationError{Err: fmt.Errorf("non-conforming output encoding on %s: not valid UTF-8", stream)}
		}
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}
