package matcher

import (
	"fmt"

	"github.com/launchdarkly/diagnostic-contract-tests/golden"

	"github.com/kylelemons/godebug/diff"
)

// Snapshot is the normalized text a golden file should hold.
type Snapshot struct {
	// Name is the golden file name.
	Name   string
	Actual string
}

// SnapshotMismatch is a golden file whose content differs from the actual output.
type SnapshotMismatch struct {
	Name     string
	Expected string
	Actual   string
	// Diff is a line diff from Expected to Actual.
	Diff string
}

// Diff renders a line diff from expected to actual; removed lines start with "-", added lines
// with "+".
func Diff(expected, actual string) string {
	return diff.Diff(expected, actual)
}

// CompareSnapshots compares each snapshot with its golden file; an absent golden file counts as
// empty. In bless mode, differing golden files are rewritten instead of reported, and removed if
// the actual output is empty. It returns the names of rewritten files along with any
// mismatches.
func CompareSnapshots(store golden.Store, bless bool, snapshots ...Snapshot) ([]SnapshotMismatch, []string, error) {
	var mismatches []SnapshotMismatch
	var blessed []string
	for _, s := range snapshots {
		expected, exists, err := store.Read(s.Name)
		if err != nil {
			return nil, nil, err
		}
		if expected == s.Actual {
			continue
		}
		if !bless {
			mismatches = append(mismatches, SnapshotMismatch{
				Name:     s.Name,
				Expected: expected,
				Actual:   s.Actual,
				Diff:     Diff(expected, s.Actual),
			})
			continue
		}
		if s.Actual == "" {
			if exists {
				if err := store.Remove(s.Name); err != nil {
					return nil, nil, fmt.Errorf("failed to bless %s: %w", s.Name, err)
				}
			}
		} else if err := store.Write(s.Name, s.Actual); err != nil {
			return nil, nil, fmt.Errorf("failed to bless %s: %w", s.Name, err)
		}
		blessed = append(blessed, s.Name)
	}
	return mismatches, blessed, nil
}
