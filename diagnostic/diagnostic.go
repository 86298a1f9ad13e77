// Package diagnostic contains the decoded form of compiler output.
package diagnostic

import (
	"fmt"
	"strings"

	"github.com/launchdarkly/diagnostic-contract-tests/normalize"
)

// Applicability values of a suggestion, as reported in JSON output.
const (
	MachineApplicable = "MachineApplicable"
	MaybeIncorrect    = "MaybeIncorrect"
	HasPlaceholders   = "HasPlaceholders"
	Unspecified       = "Unspecified"
)

// Suggestion is a replacement of a byte range of a source file proposed by the compiler.
type Suggestion struct {
	File          string
	ByteStart     int
	ByteEnd       int
	Replacement   string
	Applicability string
}

// MachineApplicable reports whether the compiler considers the suggestion safe to apply
// without human review.
func (s Suggestion) MachineApplicable() bool {
	return s.Applicability == MachineApplicable
}

// Diagnostic is one message reported by the compiler. Line and Column are 1-based; a Line of
// 0 means the diagnostic has no source location.
type Diagnostic struct {
	Level   Level
	File    string
	Line    int
	Column  int
	Code    string
	Message string
	// Suggestions is only filled in by the JSON decoder.
	Suggestions []Suggestion
}

// Located reports whether the diagnostic points at a source line.
func (d Diagnostic) Located() bool {
	return d.Line > 0
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Located() {
		fmt.Fprintf(&b, "%s:%d", d.File, d.Line)
		if d.Column > 0 {
			fmt.Fprintf(&b, ":%d", d.Column)
		}
		b.WriteString(": ")
	}
	b.WriteString(d.Level.String())
	if d.Code != "" {
		fmt.Fprintf(&b, "[%s]", d.Code)
	}
	fmt.Fprintf(&b, ": %s", d.Message)
	return b.String()
}

func (d *Diagnostic) normalize(rules normalize.Rules) {
	d.File = rules.Apply(d.File)
	d.Message = rules.Apply(d.Message)
	for i := range d.Suggestions {
		d.Suggestions[i].File = rules.Apply(d.Suggestions[i].File)
	}
}

// Format names an output format of the compiler under test.
type Format string

const (
	// FormatText is line-oriented human output, "path:line:col: level: message" and the
	// rustc-style "level[code]: message" header followed by a "--> path:line:col" line.
	FormatText Format = "text"
	// FormatJSON is one rustc-like JSON object per line.
	FormatJSON Format = "json"
)

// ParseFormat validates a format name; the empty string selects FormatText.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown diagnostic format %q, expected %q or %q", s, FormatText, FormatJSON)
}

// Decoded is compiler output split into diagnostics.
type Decoded struct {
	Diagnostics []Diagnostic
	// Raw holds the lines that did not decode into a diagnostic.
	Raw []string
	// Rendered is the normalized text used for snapshot comparison.
	Rendered string
}

// Decode normalizes the raw output of the compiler with rules and decodes it.
//
// Text output is normalized as a whole before it is decoded. JSON output is decoded first, and
// then the message, file name and rendered form of each diagnostic are normalized, so rules
// never have to account for JSON escaping.
func Decode(format Format, output string, rules normalize.Rules) (Decoded, error) {
	switch format {
	case "", FormatText:
		text := rules.Apply(output)
		d := decodeText(text)
		d.Rendered = text
		return d, nil
	case FormatJSON:
		d, err := decodeJSON(output)
		if err != nil {
			return Decoded{}, err
		}
		for i := range d.Diagnostics {
			d.Diagnostics[i].normalize(rules)
		}
		for i := range d.Raw {
			d.Raw[i] = rules.Apply(d.Raw[i])
		}
		d.Rendered = rules.Apply(d.Rendered)
		return d, nil
	}
	return Decoded{}, fmt.Errorf("unknown diagnostic format %q", format)
}
