// Package annotation parses the expectations embedded in fixture source text.
//
// Two kinds of magic comments are recognized. Commands start a line with "//@" and configure
// how the fixture is compiled (flags, revisions, normalization rules, and so on). Markers
// contain "//~" anywhere on a line and describe one expected diagnostic, for instance:
//
//	let x = Foo; //~ WARN: unused variable
//	x = Foo;
//	//~^ ERROR: cannot assign twice to immutable variable
//
// The scanner is line oriented and knows nothing about the lexical grammar of the language
// under test.
package annotation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/launchdarkly/diagnostic-contract-tests/diagnostic"
)

// Kind describes how an annotation's target lines are interpreted.
type Kind int

const (
	// KindExactLine expects a diagnostic on exactly one line.
	KindExactLine Kind = iota
	// KindLineRange expects a diagnostic anywhere between Line and EndLine, inclusive.
	KindLineRange
	// KindMore expects Count further diagnostics on Line, beyond what other annotations account for.
	KindMore
)

func (k Kind) String() string {
	switch k {
	case KindExactLine:
		return "exact-line"
	case KindLineRange:
		return "line-range"
	case KindMore:
		return "this-line-reports-N-more"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ColumnRange is an inclusive range of 1-based columns.
type ColumnRange struct {
	Start int
	End   int
}

// Contains reports whether column falls within the range.
func (r ColumnRange) Contains(column int) bool {
	return column >= r.Start && column <= r.End
}

func (r ColumnRange) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Annotation is one expected diagnostic.
type Annotation struct {
	// Line is the 1-based target line in the original fixture.
	Line int
	// EndLine is the last line of a KindLineRange annotation; it equals Line otherwise.
	EndLine int
	// Columns optionally restricts the column of the matching diagnostic.
	Columns *ColumnRange
	Level   diagnostic.Level
	// Pattern is nil when any message of the given level is accepted.
	Pattern *Pattern
	// Revisions lists the revisions this annotation is scoped to; empty means all of them.
	Revisions []string
	Kind      Kind
	// Count is the number of further diagnostics expected by a KindMore annotation.
	Count int
	// DefinitionLine is the line holding the marker.
	DefinitionLine int
}

// CoversLine reports whether line is one of the annotation's target lines.
func (a Annotation) CoversLine(line int) bool {
	return line >= a.Line && line <= a.EndLine
}

// MatchesMessage reports whether msg satisfies the annotation's pattern.
func (a Annotation) MatchesMessage(msg string) bool {
	return a.Pattern == nil || a.Pattern.Matches(msg)
}

func (a Annotation) String() string {
	var b strings.Builder
	if a.Kind == KindLineRange {
		fmt.Fprintf(&b, "lines %d-%d: ", a.Line, a.EndLine)
	} else {
		fmt.Fprintf(&b, "line %d: ", a.Line)
	}
	b.WriteString(strings.ToUpper(a.Level.String()))
	if a.Columns != nil {
		fmt.Fprintf(&b, "@%s", a.Columns)
	}
	if a.Kind == KindMore {
		fmt.Fprintf(&b, " (+%d more)", a.Count)
	}
	if a.Pattern != nil {
		fmt.Fprintf(&b, ": %s", a.Pattern)
	}
	if a.DefinitionLine != a.Line {
		fmt.Fprintf(&b, " (defined on line %d)", a.DefinitionLine)
	}
	return b.String()
}

// Pattern is an expected message: either a substring or a regular expression.
type Pattern struct {
	substring string
	regex     *regexp.Regexp
}

// SubstringPattern returns a pattern matching any message that contains s.
func SubstringPattern(s string) *Pattern {
	return &Pattern{substring: s}
}

// RegexPattern returns a pattern matching any message in which re finds a match.
func RegexPattern(re *regexp.Regexp) *Pattern {
	return &Pattern{regex: re}
}

func (p *Pattern) Matches(msg string) bool {
	if p.regex != nil {
		return p.regex.MatchString(msg)
	}
	return strings.Contains(msg, p.substring)
}

func (p *Pattern) String() string {
	if p.regex != nil {
		return "/" + p.regex.String() + "/"
	}
	return p.substring
}

// OtherFileMatch is an "error-in-other-file" expectation: a diagnostic that is reported without a
// location on one of the fixture's own lines.
type OtherFileMatch struct {
	Pattern *Pattern
	Line    int
}
