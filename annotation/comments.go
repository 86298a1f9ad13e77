package annotation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/launchdarkly/diagnostic-contract-tests/diagnostic"
	"github.com/launchdarkly/diagnostic-contract-tests/normalize"
)

// Mode is the exit status a fixture expects from the compiler.
type Mode int

const (
	// ModeDefault defers to the configured mode.
	ModeDefault Mode = iota
	// ModeFail expects the compiler to exit with a non-zero status.
	ModeFail
	// ModePass expects the compiler to exit successfully.
	ModePass
)

func (m Mode) String() string {
	switch m {
	case ModeFail:
		return "fail"
	case ModePass:
		return "pass"
	}
	return "default"
}

// EnvVar is an extra environment variable for the compiler.
type EnvVar struct {
	Key   string
	Value string
}

// Revisioned holds everything declared under one revision scope. The unscoped entry applies to
// every revision.
type Revisioned struct {
	// Scope lists the revisions the entry is restricted to; empty for the unscoped entry.
	Scope []string
	// Line is the first line that contributed to this entry.
	Line         int
	CompileFlags []string
	Env          []EnvVar
	Normalize    normalize.Rules
	Annotations  []Annotation
	OtherFiles   []OtherFileMatch
	RequireLevel *diagnostic.Level
	Mode         Mode
	RunFix       bool
	Ignore       []Condition
	Only         []Condition
	// StderrPerBitwidth keeps a separate stderr golden for each target bitwidth.
	StderrPerBitwidth bool

	requireLevelLine int
	modeLine         int
}

// Comments is the parsed form of a fixture's magic comments.
type Comments struct {
	// Revisions is nil if the fixture does not declare any.
	Revisions []string
	// LineCount is the number of lines in the fixture.
	LineCount int

	revisionsLine int
	scoped        map[string]*Revisioned
	order         []string
}

func newComments() *Comments {
	return &Comments{scoped: make(map[string]*Revisioned)}
}

func scopeKey(scope []string) string {
	return strings.Join(scope, ",")
}

// entry returns the Revisioned for scope, creating it on first use.
func (c *Comments) entry(scope []string, line int) *Revisioned {
	key := scopeKey(scope)
	if r, ok := c.scoped[key]; ok {
		return r
	}
	r := &Revisioned{Scope: append([]string(nil), scope...), Line: line}
	c.scoped[key] = r
	c.order = append(c.order, key)
	return r
}

// Entries returns every scope entry in declaration order.
func (c *Comments) Entries() []*Revisioned {
	ret := make([]*Revisioned, 0, len(c.order))
	for _, key := range c.order {
		ret = append(ret, c.scoped[key])
	}
	return ret
}

func (r *Revisioned) appliesTo(revision string) bool {
	if len(r.Scope) == 0 {
		return true
	}
	for _, s := range r.Scope {
		if s == revision {
			return true
		}
	}
	return false
}

// RevisionNames returns the revisions a fixture expands into: the declared ones, or the single
// implicit revision "".
func (c *Comments) RevisionNames() []string {
	if c.Revisions == nil {
		return []string{""}
	}
	return append([]string(nil), c.Revisions...)
}

// Revision is the merged view of a fixture's comments for one revision.
type Revision struct {
	Name         string
	CompileFlags []string
	Env          []EnvVar
	Normalize    normalize.Rules
	Annotations  []Annotation
	OtherFiles   []OtherFileMatch
	// RequireLevel is the fixture's own severity floor, if it declares one.
	RequireLevel      *diagnostic.Level
	Mode              Mode
	RunFix            bool
	Ignore            []Condition
	Only              []Condition
	StderrPerBitwidth bool
}

// ForRevision merges the unscoped entry with every entry scoped to name. Annotations are ordered
// by target line and then by the line that defined them.
func (c *Comments) ForRevision(name string) Revision {
	rev := Revision{Name: name}
	for _, r := range c.Entries() {
		if !r.appliesTo(name) {
			continue
		}
		rev.CompileFlags = append(rev.CompileFlags, r.CompileFlags...)
		rev.Env = append(rev.Env, r.Env...)
		rev.Normalize = append(rev.Normalize, r.Normalize...)
		rev.Annotations = append(rev.Annotations, r.Annotations...)
		rev.OtherFiles = append(rev.OtherFiles, r.OtherFiles...)
		rev.Ignore = append(rev.Ignore, r.Ignore...)
		rev.Only = append(rev.Only, r.Only...)
		rev.RunFix = rev.RunFix || r.RunFix
		rev.StderrPerBitwidth = rev.StderrPerBitwidth || r.StderrPerBitwidth
		if r.RequireLevel != nil {
			rev.RequireLevel = r.RequireLevel
		}
		if r.Mode != ModeDefault {
			rev.Mode = r.Mode
		}
	}
	sort.SliceStable(rev.Annotations, func(i, j int) bool {
		ai, aj := rev.Annotations[i], rev.Annotations[j]
		if ai.Line != aj.Line {
			return ai.Line < aj.Line
		}
		return ai.DefinitionLine < aj.DefinitionLine
	})
	return rev
}

// checkRevisions validates scopes against the declared revisions, and makes sure single-valued
// commands are not given twice for the same revision through different scopes.
func (c *Comments) checkRevisions(p *parser) {
	known := make(map[string]bool)
	for _, r := range c.Revisions {
		known[r] = true
	}
	for _, r := range c.Entries() {
		if len(r.Scope) == 0 {
			continue
		}
		if c.Revisions == nil {
			p.errorAt(r.Line, "there are no revisions in this test")
			continue
		}
		for _, name := range r.Scope {
			if !known[name] {
				p.errorAt(r.Line, fmt.Sprintf("the revision `%s` is not known", name))
			}
		}
	}
	for _, name := range c.RevisionNames() {
		var levelLines, modeLines []int
		for _, r := range c.Entries() {
			if !r.appliesTo(name) {
				continue
			}
			if r.RequireLevel != nil {
				levelLines = append(levelLines, r.requireLevelLine)
			}
			if r.Mode != ModeDefault {
				modeLines = append(modeLines, r.modeLine)
			}
		}
		if len(levelLines) > 1 {
			p.errorAt(levelLines[1], "`require-annotations-for-level` specified twice"+forRevision(name))
		}
		if len(modeLines) > 1 {
			p.errorAt(modeLines[1], "cannot specify test mode changes twice"+forRevision(name))
		}
	}
}

func forRevision(name string) string {
	if name == "" {
		return ""
	}
	return fmt.Sprintf(" for revision `%s`", name)
}
