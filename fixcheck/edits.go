// Package fixcheck applies the fixes a compiler suggests and checks the result against golden
// files.
package fixcheck

import (
	"fmt"
	"sort"
	"strings"

	"github.com/launchdarkly/diagnostic-contract-tests/diagnostic"
)

// Edit replaces the bytes [Start, End) of a source file.
type Edit struct {
	Start       int
	End         int
	Replacement string
}

func (e Edit) String() string {
	return fmt.Sprintf("%d..%d -> %q", e.Start, e.End, e.Replacement)
}

// OverlappingEditError reports two suggestions that touch the same bytes.
type OverlappingEditError struct {
	First  Edit
	Second Edit
}

func (e *OverlappingEditError) Error() string {
	return fmt.Sprintf("suggested fixes overlap: %s and %s", e.First, e.Second)
}

// CollectEdits returns the machine-applicable suggestions of diags whose file is one of files,
// without duplicates, in the order they were reported.
func CollectEdits(diags []diagnostic.Diagnostic, files []string) []Edit {
	inFixture := make(map[string]bool, len(files))
	for _, f := range files {
		inFixture[f] = true
	}
	seen := make(map[Edit]bool)
	var edits []Edit
	for _, d := range diags {
		for _, s := range d.Suggestions {
			if !s.MachineApplicable() || !inFixture[s.File] {
				continue
			}
			e := Edit{Start: s.ByteStart, End: s.ByteEnd, Replacement: s.Replacement}
			if !seen[e] {
				seen[e] = true
				edits = append(edits, e)
			}
		}
	}
	return edits
}

// ApplyEdits applies edits to source after sorting them by position. Insertions at the same
// offset are applied in the order given; any other overlap is an *OverlappingEditError.
func ApplyEdits(source string, edits []Edit) (string, error) {
	sorted := append([]Edit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})
	var b strings.Builder
	pos := 0
	for i, e := range sorted {
		if e.Start < 0 || e.End < e.Start || e.End > len(source) {
			return "", fmt.Errorf("suggested fix %s is outside of the %d-byte source", e, len(source))
		}
		if i > 0 && e.Start < pos {
			return "", &OverlappingEditError{First: sorted[i-1], Second: e}
		}
		b.WriteString(source[pos:e.Start])
		b.WriteString(e.Replacement)
		pos = e.End
	}
	b.WriteString(source[pos:])
	return b.String(), nil
}
