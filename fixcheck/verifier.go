package fixcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/launchdarkly/diagnostic-contract-tests/compiler"
	"github.com/launchdarkly/diagnostic-contract-tests/diagnostic"
	"github.com/launchdarkly/diagnostic-contract-tests/golden"
	"github.com/launchdarkly/diagnostic-contract-tests/matcher"
	"github.com/launchdarkly/diagnostic-contract-tests/normalize"
)

// Verifier applies suggested fixes, recompiles the fixed source, and compares both with their
// golden files.
type Verifier struct {
	Invoker compiler.Invoker
	Store   golden.Store
	Format  diagnostic.Format
	Bless   bool
}

// Request describes the revision whose fixes are verified.
type Request struct {
	// Invocation is the one that produced Diagnostics; the fixed source is compiled the same
	// way, from a copy in Invocation.ScratchDir.
	Invocation   compiler.Invocation
	Diagnostics  []diagnostic.Diagnostic
	FixtureFiles []string
	Source       string
	// Rules normalize the output of the second compilation.
	Rules           normalize.Rules
	FixedName       string
	FixedStderrName string
}

// Result is what fix verification found. A golden file that does not exist is reported in
// Skipped rather than compared, unless blessing.
type Result struct {
	// NoFixes is set when the compiler suggested nothing applicable.
	NoFixes    bool
	Edits      int
	Skipped    []string
	Mismatches []matcher.SnapshotMismatch
	Blessed    []string
}

// Verify runs fix verification. Overlapping suggestions produce an *OverlappingEditError.
func (v Verifier) Verify(ctx context.Context, req Request) (Result, error) {
	edits := CollectEdits(req.Diagnostics, req.FixtureFiles)
	if len(edits) == 0 {
		return Result{NoFixes: true}, nil
	}
	fixed, err := ApplyEdits(req.Source, edits)
	if err != nil {
		return Result{}, err
	}
	result := Result{Edits: len(edits)}
	if err := v.compare(&result, req.FixedName, fixed); err != nil {
		return result, err
	}

	inv := req.Invocation
	inv.FixturePath = filepath.Join(inv.ScratchDir, filepath.Base(inv.FixturePath))
	inv.Source = fixed
	if err := os.MkdirAll(inv.ScratchDir, 0755); err != nil {
		return result, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	if err := os.WriteFile(inv.FixturePath, []byte(fixed), 0644); err != nil {
		return result, fmt.Errorf("failed to write fixed source: %w", err)
	}
	if inv.Logger != nil {
		inv.Logger.Printf("Applied %d suggested fixes, recompiling %s", len(edits), inv.FixturePath)
	}
	out, err := v.Invoker.Invoke(ctx, inv)
	if err != nil {
		return result, err
	}
	decoded, err := diagnostic.Decode(v.Format, out.Stderr, req.Rules)
	if err != nil {
		return result, &compiler.InvocationError{Err: fmt.Errorf("cannot decode output of fixed source: %w", err)}
	}
	err = v.compare(&result, req.FixedStderrName, decoded.Rendered)
	return result, err
}

func (v Verifier) compare(result *Result, name, actual string) error {
	_, exists, err := v.Store.Read(name)
	if err != nil {
		return err
	}
	if !exists && !v.Bless {
		result.Skipped = append(result.Skipped, name)
		return nil
	}
	mismatches, blessed, err := matcher.CompareSnapshots(v.Store, v.Bless, matcher.Snapshot{Name: name, Actual: actual})
	if err != nil {
		return err
	}
	result.Mismatches = append(result.Mismatches, mismatches...)
	result.Blessed = append(result.Blessed, blessed...)
	return nil
}
