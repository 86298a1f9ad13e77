package matcher

import (
	"fmt"
	"strings"

	"github.com/launchdarkly/diagnostic-contract-tests/annotation"
	"github.com/launchdarkly/diagnostic-contract-tests/diagnostic"
)

// Outcome is the result of checking one revision.
type Outcome struct {
	Missing           []Missing
	MissingOtherFiles []annotation.OtherFileMatch
	Unexpected        []diagnostic.Diagnostic
	Snapshots         []SnapshotMismatch
	// Blessed lists golden files that were rewritten.
	Blessed []string
	// ExitStatus describes an unexpected exit status; it is empty if the status was as expected.
	ExitStatus string
}

// OK reports whether nothing mismatched. Blessed snapshots do not count as mismatches.
func (o Outcome) OK() bool {
	return len(o.Missing) == 0 && len(o.MissingOtherFiles) == 0 && len(o.Unexpected) == 0 &&
		len(o.Snapshots) == 0 && o.ExitStatus == ""
}

// CheckExit compares an exit status with what mode expects.
func CheckExit(mode annotation.Mode, exitCode int) string {
	switch {
	case mode == annotation.ModePass && exitCode != 0:
		return fmt.Sprintf("compilation was expected to succeed, but exited with status %d", exitCode)
	case mode != annotation.ModePass && exitCode == 0:
		return "compilation was expected to fail, but exited with status 0"
	}
	return ""
}

// Report describes every mismatch, for failure messages.
func (o Outcome) Report() string {
	var b strings.Builder
	if o.ExitStatus != "" {
		fmt.Fprintf(&b, "%s\n", o.ExitStatus)
	}
	if len(o.Missing) > 0 {
		b.WriteString("expected diagnostics that were not reported:\n")
		for _, m := range o.Missing {
			fmt.Fprintf(&b, "  %s\n", m)
		}
	}
	if len(o.MissingOtherFiles) > 0 {
		b.WriteString("expected diagnostics in other files that were not reported:\n")
		for _, m := range o.MissingOtherFiles {
			fmt.Fprintf(&b, "  %s (defined on line %d)\n", m.Pattern, m.Line)
		}
	}
	if len(o.Unexpected) > 0 {
		b.WriteString("reported diagnostics that were not expected:\n")
		for _, d := range o.Unexpected {
			fmt.Fprintf(&b, "  %s\n", d)
		}
	}
	for _, s := range o.Snapshots {
		fmt.Fprintf(&b, "actual output differs from %s:\n%s\n", s.Name, indent(s.Diff))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func indent(s string) string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
