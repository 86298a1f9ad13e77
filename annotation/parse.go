package annotation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/launchdarkly/diagnostic-contract-tests/diagnostic"
	"github.com/launchdarkly/diagnostic-contract-tests/normalize"
)

// Issue is one problem found in a fixture's magic comments.
type Issue struct {
	Line int
	Msg  string
}

// ParseError lists every problem found in one fixture. It is fatal to all test cases of that
// fixture, but not to the rest of the run.
type ParseError struct {
	Path   string
	Issues []Issue
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		fmt.Fprintf(&b, "%s: ", e.Path)
	}
	if len(e.Issues) == 1 {
		fmt.Fprintf(&b, "invalid test annotation on line %d: %s", e.Issues[0].Line, e.Issues[0].Msg)
		return b.String()
	}
	fmt.Fprintf(&b, "%d invalid test annotations:", len(e.Issues))
	for _, issue := range e.Issues {
		fmt.Fprintf(&b, "\n  line %d: %s", issue.Line, issue.Msg)
	}
	return b.String()
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

var markerLevels = map[string]diagnostic.Level{
	"ERROR":   diagnostic.LevelError,
	"WARN":    diagnostic.LevelWarning,
	"WARNING": diagnostic.LevelWarning,
	"NOTE":    diagnostic.LevelNote,
	"HELP":    diagnostic.LevelHelp,
	"ANY":     diagnostic.LevelAny,
}

type parser struct {
	comments *Comments
	issues   []Issue
	line     int
	// fallthroughTo is the target line of the previous marker, for "//~|"; 0 if there is none.
	fallthroughTo int
}

// Parse parses the magic comments in the content of the fixture at path. The path is only used
// to label errors.
func Parse(path, content string) (*Comments, error) {
	lines := splitLines(content)
	p := &parser{comments: newComments()}
	p.comments.LineCount = len(lines)
	for i, line := range lines {
		p.line = i + 1
		p.parseLine(line)
	}
	p.comments.checkRevisions(p)
	if len(p.issues) > 0 {
		return nil, &ParseError{Path: path, Issues: p.issues}
	}
	return p.comments, nil
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func (p *parser) error(msg string) {
	p.errorAt(p.line, msg)
}

func (p *parser) errorAt(line int, msg string) {
	p.issues = append(p.issues, Issue{Line: line, Msg: msg})
}

func (p *parser) parseLine(line string) {
	if command, ok := strings.CutPrefix(line, "//@"); ok {
		p.parseCommand(strings.TrimSpace(command))
		return
	}
	if i := strings.Index(line, "//~"); i >= 0 {
		scope, rest, ok := p.parseRevisions(line[i+3:])
		if !ok {
			return
		}
		p.parseMarker(p.comments.entry(scope, p.line), scope, rest)
		return
	}
	p.fallthroughTo = 0
	p.checkSuspicious(line)
}

// parseRevisions parses an optional "[a, b]" prefix.
func (p *parser) parseRevisions(s string) ([]string, string, bool) {
	if !strings.HasPrefix(s, "[") {
		return nil, s, true
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		p.error("`[` without corresponding `]`")
		return nil, s, false
	}
	var scope []string
	for _, name := range strings.Split(s[1:end], ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			p.error(fmt.Sprintf("malformed revision list `%s`: empty revision name", s[:end+1]))
			return nil, s, false
		}
		scope = append(scope, name)
	}
	return scope, strings.TrimLeft(s[end+1:], " \t"), true
}

func leadingCount(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}

// leadingNumber parses the decimal digits at the start of s.
func leadingNumber(s string) (int, string, bool) {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, s, false
	}
	v, err := strconv.Atoi(s[:n])
	if err != nil {
		return 0, s, false
	}
	return v, s[n:], true
}

// parseMarker parses everything after "//~" and its optional revision list:
//
//	(\||\^+|v+|@L(-L)?)? (\+N)? LEVEL (@C(-C)?)? (: pattern)?
func (p *parser) parseMarker(entry *Revisioned, scope []string, s string) {
	target, endLine, kind := p.line, 0, KindExactLine
	switch {
	case strings.HasPrefix(s, "|"):
		if p.fallthroughTo == 0 {
			p.error("`//~|` pattern without preceding line")
			return
		}
		target = p.fallthroughTo
		s = s[1:]
	case strings.HasPrefix(s, "^"):
		n := leadingCount(s, '^')
		if n >= p.line {
			p.error(fmt.Sprintf("//~^ pattern is trying to refer to %d lines above, but there are only %d lines above", n, p.line-1))
			return
		}
		target = p.line - n
		s = s[n:]
	case strings.HasPrefix(s, "v"):
		n := leadingCount(s, 'v')
		if p.line+n > p.comments.LineCount {
			p.error(fmt.Sprintf("//~v pattern is trying to refer to %d lines below, but there are only %d lines below", n, p.comments.LineCount-p.line))
			return
		}
		target = p.line + n
		s = s[n:]
	case strings.HasPrefix(s, "@"):
		first, rest, ok := leadingNumber(s[1:])
		if !ok {
			p.error("expected a line number after `@`")
			return
		}
		if !p.checkLineExists(first) {
			return
		}
		target, s = first, rest
		if strings.HasPrefix(s, "-") {
			last, rest, ok := leadingNumber(s[1:])
			if !ok {
				p.error("expected the last line of the range after `-`")
				return
			}
			if last < first {
				p.error(fmt.Sprintf("line range %d-%d is empty", first, last))
				return
			}
			if !p.checkLineExists(last) {
				return
			}
			endLine, kind, s = last, KindLineRange, rest
		}
	}

	count := 0
	if strings.HasPrefix(s, "+") {
		n, rest, ok := leadingNumber(s[1:])
		if !ok || n == 0 {
			p.error("expected a positive count after `+`")
			return
		}
		if kind == KindLineRange {
			p.error("`+N` cannot be combined with a line range")
			return
		}
		count, kind, s = n, KindMore, rest
	}

	s = strings.TrimLeft(s, " \t")
	word := 0
	for word < len(s) && (s[word] >= 'A' && s[word] <= 'Z' || s[word] >= 'a' && s[word] <= 'z') {
		word++
	}
	if word == 0 {
		p.error("pattern without level")
		return
	}
	level, ok := markerLevels[s[:word]]
	if !ok {
		p.error(fmt.Sprintf("unknown level `%s`, expected one of ERROR, WARN, NOTE, HELP, ANY", s[:word]))
		return
	}
	s = s[word:]

	var columns *ColumnRange
	if strings.HasPrefix(s, "@") {
		start, rest, ok := leadingNumber(s[1:])
		if !ok || start == 0 {
			p.error("expected a 1-based column after `@`")
			return
		}
		columns = &ColumnRange{Start: start, End: start}
		s = rest
		if strings.HasPrefix(s, "-") {
			end, rest, ok := leadingNumber(s[1:])
			if !ok || end < start {
				p.error("malformed column range")
				return
			}
			columns.End = end
			s = rest
		}
	}

	var pattern *Pattern
	if s = strings.TrimSpace(s); s != "" {
		text, ok := strings.CutPrefix(s, ":")
		if !ok {
			p.error("no `:` after level found")
			return
		}
		if text = strings.TrimSpace(text); text == "" {
			p.error("no pattern specified after `:`")
			return
		}
		if pattern = p.parsePattern(text); pattern == nil {
			return
		}
	}

	if endLine == 0 {
		endLine = target
	}
	p.fallthroughTo = target
	entry.Annotations = append(entry.Annotations, Annotation{
		Line:           target,
		EndLine:        endLine,
		Columns:        columns,
		Level:          level,
		Pattern:        pattern,
		Revisions:      scope,
		Kind:           kind,
		Count:          count,
		DefinitionLine: p.line,
	})
}

func (p *parser) checkLineExists(line int) bool {
	if line < 1 || line > p.comments.LineCount {
		p.error(fmt.Sprintf("line %d does not exist, the file has %d lines", line, p.comments.LineCount))
		return false
	}
	return true
}

// parsePattern turns "/re/" into a regex pattern and anything else into a substring pattern. It
// returns nil after reporting an error.
func (p *parser) parsePattern(text string) *Pattern {
	body, ok := strings.CutPrefix(text, "/")
	if !ok {
		return SubstringPattern(text)
	}
	body, ok = strings.CutSuffix(body, "/")
	if !ok {
		p.error("expected regex pattern due to leading `/`, but found no closing `/`")
		return nil
	}
	re, err := regexp.Compile(body)
	if err != nil {
		p.error(fmt.Sprintf("invalid regex: %s", err))
		return nil
	}
	return RegexPattern(re)
}

// parseStr parses a double-quoted string. Everything up to the next unescaped quote is returned
// verbatim, and the rest of s with leading whitespace removed.
func (p *parser) parseStr(s string) (string, string, bool) {
	body, ok := strings.CutPrefix(s, `"`)
	if !ok {
		if s == "" {
			p.error("expected quoted string, but found end of line")
		} else {
			p.error(fmt.Sprintf("expected `\"`, got `%c`", s[0]))
		}
		return "", "", false
	}
	escaped := false
	for i := 0; i < len(body); i++ {
		switch {
		case escaped:
			escaped = false
		case body[i] == '\\':
			escaped = true
		case body[i] == '"':
			return body[:i], strings.TrimLeft(body[i+1:], " \t"), true
		}
	}
	p.error(fmt.Sprintf("no closing quotes found for %s", body))
	return "", "", false
}

func (p *parser) checkSuspicious(line string) {
	for off := 0; ; {
		i := strings.Index(line[off:], "//")
		if i < 0 {
			return
		}
		rest := line[off+i+2:]
		candidates := []string{rest}
		if trimmed, ok := strings.CutPrefix(rest, " "); ok {
			candidates = append(candidates, trimmed)
		}
		for _, c := range candidates {
			if c != "" && strings.IndexByte("@~[]^|", c[0]) >= 0 {
				p.error(fmt.Sprintf("comment looks suspiciously like a test suite command: `%s`\n"+
					"All `//@` test suite commands must be at the start of the line.\n"+
					"The `//` must be directly followed by `@` or `~`. Use `//#` if you wanted a comment.", c))
				return
			}
		}
		off += i + 2
	}
}

func (p *parser) parseCommand(s string) {
	scope, s, ok := p.parseRevisions(s)
	if !ok {
		return
	}
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_')
	})
	name, args := s, ""
	if end >= 0 {
		name = s[:end]
		if s[end] != ':' {
			p.error("test command must be followed by `:` (or end the line)")
		}
		args = strings.TrimSpace(s[end+1:])
	}
	if name == "" {
		p.error("empty test command after `//@`")
		return
	}

	if name == "revisions" {
		if len(scope) > 0 {
			p.error("revisions cannot be declared under a revision")
		}
		if p.comments.Revisions != nil {
			p.error("cannot specify `revisions` twice")
			return
		}
		names := strings.Fields(args)
		if len(names) == 0 {
			p.error("`revisions` needs at least one revision name")
			return
		}
		seen := make(map[string]bool)
		for _, n := range names {
			if seen[n] {
				p.error(fmt.Sprintf("revision `%s` declared twice", n))
			}
			seen[n] = true
		}
		p.comments.Revisions = names
		p.comments.revisionsLine = p.line
		return
	}
	p.runCommand(p.comments.entry(scope, p.line), name, args)
}

func (p *parser) parseRequiredLevel(args string) (diagnostic.Level, bool) {
	if level, ok := markerLevels[args]; ok && level != diagnostic.LevelAny {
		return level, true
	}
	level, err := diagnostic.ParseLevel(args)
	if err != nil || level == diagnostic.LevelAny {
		p.error(fmt.Sprintf("`%s` is not a valid level for `require-annotations-for-level`", args))
		return diagnostic.LevelAny, false
	}
	return level, true
}

func (p *parser) setMode(r *Revisioned, mode Mode) {
	if r.Mode != ModeDefault {
		p.error("cannot specify test mode changes twice")
		return
	}
	r.Mode = mode
	r.modeLine = p.line
}

func (p *parser) parseNormalize(r *Revisioned, args string) {
	from, rest, ok := p.parseStr(args)
	if !ok {
		return
	}
	rest, ok = strings.CutPrefix(rest, "->")
	if !ok {
		p.error("normalize-stderr needs a pattern and replacement separated by `->`")
		return
	}
	to, rest, ok := p.parseStr(strings.TrimLeft(rest, " \t"))
	if !ok {
		return
	}
	if rest != "" {
		p.error(fmt.Sprintf("trailing text after pattern replacement: %s", rest))
	}
	rule, err := normalize.NewRule(from, to)
	if err != nil {
		p.error(err.Error())
		return
	}
	r.Normalize = append(r.Normalize, rule)
}
