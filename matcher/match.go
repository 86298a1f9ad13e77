// Package matcher reconciles the diagnostics a compiler reported with the diagnostics a fixture
// expects, and compares full output with golden snapshots.
package matcher

import (
	"fmt"

	"github.com/launchdarkly/diagnostic-contract-tests/annotation"
	"github.com/launchdarkly/diagnostic-contract-tests/diagnostic"
)

// Input is everything needed to match one revision of a fixture.
type Input struct {
	// FixtureFiles are the names under which the fixture appears in normalized diagnostics. A
	// located diagnostic without a file name is also taken to be in the fixture.
	FixtureFiles []string
	Diagnostics  []diagnostic.Diagnostic
	// Annotations must be ordered by line, then by definition line.
	Annotations []annotation.Annotation
	OtherFiles  []annotation.OtherFileMatch
	// Floor is the lowest level that must be annotated.
	Floor diagnostic.Level
}

// Missing is an annotation that was not satisfied. Want is 1 except for "N more" annotations.
type Missing struct {
	Annotation annotation.Annotation
	Want       int
	Found      int
}

func (m Missing) String() string {
	if m.Annotation.Kind == annotation.KindMore {
		return fmt.Sprintf("%s: found only %d of %d", m.Annotation, m.Found, m.Want)
	}
	return m.Annotation.String()
}

type matching struct {
	in       Input
	byLine   map[int][]int
	consumed []bool
}

func (m *matching) inFixture(d diagnostic.Diagnostic) bool {
	if !d.Located() {
		return false
	}
	if d.File == "" {
		return true
	}
	for _, f := range m.in.FixtureFiles {
		if d.File == f {
			return true
		}
	}
	return false
}

func fits(a annotation.Annotation, d diagnostic.Diagnostic) bool {
	return a.Level.Matches(d.Level) &&
		(a.Columns == nil || a.Columns.Contains(d.Column)) &&
		a.MatchesMessage(d.Message)
}

// take consumes the first unconsumed diagnostic on line that satisfies a.
func (m *matching) take(a annotation.Annotation, line int) bool {
	for _, i := range m.byLine[line] {
		if !m.consumed[i] && fits(a, m.in.Diagnostics[i]) {
			m.consumed[i] = true
			return true
		}
	}
	return false
}

// Match pairs annotations with diagnostics. Exact-line annotations are considered first, then
// "N more" annotations, then line ranges; each consumes the first suitable diagnostic in source
// order and there is no backtracking.
func Match(in Input) Outcome {
	m := &matching{
		in:       in,
		byLine:   make(map[int][]int),
		consumed: make([]bool, len(in.Diagnostics)),
	}
	for i, d := range in.Diagnostics {
		if m.inFixture(d) {
			m.byLine[d.Line] = append(m.byLine[d.Line], i)
		}
	}

	var out Outcome
	for _, a := range in.Annotations {
		if a.Kind == annotation.KindExactLine && !m.take(a, a.Line) {
			out.Missing = append(out.Missing, Missing{Annotation: a, Want: 1})
		}
	}
	for _, a := range in.Annotations {
		if a.Kind != annotation.KindMore {
			continue
		}
		found := 0
		for found < a.Count && m.take(a, a.Line) {
			found++
		}
		if found < a.Count {
			out.Missing = append(out.Missing, Missing{Annotation: a, Want: a.Count, Found: found})
		}
	}
	for _, a := range in.Annotations {
		if a.Kind != annotation.KindLineRange {
			continue
		}
		ok := false
		for line := a.Line; line <= a.EndLine && !ok; line++ {
			ok = m.take(a, line)
		}
		if !ok {
			out.Missing = append(out.Missing, Missing{Annotation: a, Want: 1})
		}
	}

	for _, o := range in.OtherFiles {
		matched := false
		for i, d := range in.Diagnostics {
			if !m.consumed[i] && !m.inFixture(d) && o.Pattern.Matches(d.Message) {
				m.consumed[i] = true
				matched = true
				break
			}
		}
		if !matched {
			out.MissingOtherFiles = append(out.MissingOtherFiles, o)
		}
	}

	// Diagnostics without a line are only checked through the snapshot.
	for i, d := range in.Diagnostics {
		if !m.consumed[i] && d.Located() && d.Level >= in.Floor {
			out.Unexpected = append(out.Unexpected, d)
		}
	}
	return out
}

// ResolveFloor picks the severity floor of a revision. A floor declared by the fixture wins.
// Otherwise configured is used, where "auto" means the lowest level any annotation names, or
// error if there are no annotations with a specific level.
func ResolveFloor(declared *diagnostic.Level, configured string, anns []annotation.Annotation) (diagnostic.Level, error) {
	if declared != nil {
		return *declared, nil
	}
	if configured == "" {
		return diagnostic.LevelWarning, nil
	}
	if configured != "auto" {
		level, err := diagnostic.ParseLevel(configured)
		if err != nil {
			return diagnostic.LevelAny, err
		}
		return level, nil
	}
	floor := diagnostic.LevelError
	for _, a := range anns {
		if a.Level != diagnostic.LevelAny && a.Level < floor {
			floor = a.Level
		}
	}
	return floor, nil
}
