package uitests

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/launchdarkly/diagnostic-contract-tests/annotation"
	"github.com/launchdarkly/diagnostic-contract-tests/compiler"
	"github.com/launchdarkly/diagnostic-contract-tests/config"
	"github.com/launchdarkly/diagnostic-contract-tests/diagnostic"
	"github.com/launchdarkly/diagnostic-contract-tests/fixcheck"
	"github.com/launchdarkly/diagnostic-contract-tests/framework"
	"github.com/launchdarkly/diagnostic-contract-tests/golden"
	"github.com/launchdarkly/diagnostic-contract-tests/matcher"
	"github.com/launchdarkly/diagnostic-contract-tests/normalize"
	"github.com/launchdarkly/diagnostic-contract-tests/revision"

	"github.com/google/uuid"
)

// Suite holds the settings shared by every case of a run.
type Suite struct {
	// Root is the absolute fixture root; paths under it are normalized to root-relative ones.
	Root    string
	Invoker compiler.Invoker
	Store   golden.Store
	Format  diagnostic.Format
	// Rules are the configured normalization rules. They run after the built-in rules and
	// before the fixture's own.
	Rules normalize.Rules
	// Floor is the configured severity floor: a level name, "auto", or "" for warning.
	Floor       string
	DefaultMode annotation.Mode
	Platform    annotation.Platform
	Timeout     time.Duration
	Bless       bool
	// VerifyFixes runs fix verification for every case; otherwise only fixtures that ask for it
	// with run-fix are verified.
	VerifyFixes bool
	ScratchRoot string
	// KeepScratch keeps the scratch directories of passing cases too.
	KeepScratch bool
	// Logger receives harness-level messages; it may be nil.
	Logger framework.Logger
}

// NewSuite builds a Suite from a validated configuration.
func NewSuite(cfg config.Config, invoker compiler.Invoker, store golden.Store, logger framework.Logger) (*Suite, error) {
	format, err := diagnostic.ParseFormat(cfg.Compiler.Format)
	if err != nil {
		return nil, err
	}
	rules, err := cfg.NormalizeRules()
	if err != nil {
		return nil, err
	}
	mode, err := cfg.DefaultMode()
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	return &Suite{
		Root:        root,
		Invoker:     invoker,
		Store:       store,
		Format:      format,
		Rules:       rules,
		Floor:       cfg.SeverityFloor,
		DefaultMode: mode,
		Platform:    cfg.Platform(),
		Timeout:     cfg.Timeout,
		Bless:       cfg.Bless,
		VerifyFixes: cfg.VerifyFixes,
		ScratchRoot: cfg.ScratchRoot,
		KeepScratch: cfg.KeepScratch,
		Logger:      logger,
	}, nil
}

func (s *Suite) logger() framework.Logger {
	if s.Logger == nil {
		return framework.NullLogger()
	}
	return s.Logger
}

// Cases parses the annotations of each fixture and returns one case per revision. A fixture
// whose annotations cannot be parsed becomes a single case that reports the parse error.
func (s *Suite) Cases(ctx context.Context, fixtures []revision.Fixture) []framework.Case {
	var cases []framework.Case
	for _, f := range fixtures {
		comments, err := annotation.Parse(f.Name, f.Source)
		if err != nil {
			cases = append(cases, framework.Case{
				ID:  framework.TestID{Fixture: f.Name},
				Run: func(c *framework.Context) { c.Fatal(err) },
			})
			continue
		}
		for _, tc := range revision.Expand(f, comments, s.Platform.Bitwidth) {
			tc := tc
			cases = append(cases, framework.Case{
				ID:  framework.TestID{Fixture: f.Name, Revision: tc.Revision.Name},
				Run: func(c *framework.Context) { s.RunCase(ctx, c, tc) },
			})
		}
	}
	return cases
}

// RunCase checks one revision of one fixture, recording the verdict in c.
func (s *Suite) RunCase(ctx context.Context, c *framework.Context, tc revision.TestCase) {
	rev := tc.Revision
	if reason := rev.IgnoreReason(s.Platform); reason != "" {
		c.SkipWithReason(reason)
	}

	scratch, err := s.makeScratchDir(tc.Fixture.Name)
	if err != nil {
		c.Fatal(err)
	}
	defer s.cleanUpScratchDir(c, scratch)

	inv := compiler.Invocation{
		Tag:         tc.Name(),
		FixturePath: tc.Fixture.Path,
		FixtureName: tc.Fixture.Name,
		Source:      tc.Fixture.Source,
		Revision:    rev.Name,
		Flags:       rev.CompileFlags,
		Env:         envPairs(rev.Env),
		ScratchDir:  scratch,
		Timeout:     s.Timeout,
		Logger:      c.DebugLogger(),
	}
	out, err := s.Invoker.Invoke(ctx, inv)
	if errors.Is(err, compiler.ErrUnsupported) {
		c.SkipWithReason(err.Error())
	}
	if err != nil {
		c.Fatal(err)
	}

	rules := normalize.Defaults(normalize.Context{
		TempDir:     scratch,
		FixturePath: tc.Fixture.Path,
		RootDir:     s.Root,
	}).Concat(s.Rules, rev.Normalize)
	decoded, err := diagnostic.Decode(s.Format, out.Stderr, rules)
	if err != nil {
		c.Fatal(&compiler.InvocationError{Command: tc.Name(), Err: fmt.Errorf("cannot decode compiler output: %w", err)})
	}
	c.Debug("Decoded %d diagnostics and %d other lines", len(decoded.Diagnostics), len(decoded.Raw))

	floor, err := matcher.ResolveFloor(rev.RequireLevel, s.Floor, rev.Annotations)
	if err != nil {
		c.Fatal(err)
	}
	fixtureFiles := fixtureFileNames(tc.Fixture, rules)
	outcome := matcher.Match(matcher.Input{
		FixtureFiles: fixtureFiles,
		Diagnostics:  decoded.Diagnostics,
		Annotations:  rev.Annotations,
		OtherFiles:   rev.OtherFiles,
		Floor:        floor,
	})
	mode := rev.Mode
	if mode == annotation.ModeDefault {
		mode = s.DefaultMode
	}
	outcome.ExitStatus = matcher.CheckExit(mode, out.ExitCode)

	mismatches, blessed, err := matcher.CompareSnapshots(s.Store, s.Bless,
		matcher.Snapshot{Name: tc.GoldenName(revision.ExtStderr), Actual: decoded.Rendered},
		matcher.Snapshot{Name: tc.GoldenName(revision.ExtStdout), Actual: rules.Apply(out.Stdout)},
	)
	if err != nil {
		c.Fatal(err)
	}
	outcome.Snapshots = append(outcome.Snapshots, mismatches...)
	outcome.Blessed = append(outcome.Blessed, blessed...)

	if rev.RunFix || s.VerifyFixes {
		s.verifyFixes(ctx, c, tc, inv, decoded, fixtureFiles, rules, &outcome)
	}

	c.Blessed(outcome.Blessed...)
	for _, name := range outcome.Blessed {
		s.logger().Printf("Blessed %s", name)
	}
	if !outcome.OK() {
		c.Errorf("%s", outcome.Report())
	}
}

func (s *Suite) verifyFixes(
	ctx context.Context,
	c *framework.Context,
	tc revision.TestCase,
	inv compiler.Invocation,
	decoded diagnostic.Decoded,
	fixtureFiles []string,
	rules normalize.Rules,
	outcome *matcher.Outcome,
) {
	if s.Format != diagnostic.FormatJSON {
		c.Debug("Not verifying fixes: suggestions are only available with the %q format", diagnostic.FormatJSON)
		return
	}
	verifier := fixcheck.Verifier{Invoker: s.Invoker, Store: s.Store, Format: s.Format, Bless: s.Bless}
	result, err := verifier.Verify(ctx, fixcheck.Request{
		Invocation:      inv,
		Diagnostics:     decoded.Diagnostics,
		FixtureFiles:    fixtureFiles,
		Source:          tc.Fixture.Source,
		Rules:           rules,
		FixedName:       tc.GoldenName(revision.ExtFixed),
		FixedStderrName: tc.GoldenName(revision.ExtFixedStderr),
	})
	if err != nil {
		c.Fatal(err)
	}
	if result.NoFixes {
		c.Debug("The compiler suggested no machine-applicable fixes")
		return
	}
	c.Debug("Applied %d suggested edits", result.Edits)
	for _, name := range result.Skipped {
		c.Debug("No golden file %s, not compared", name)
	}
	outcome.Snapshots = append(outcome.Snapshots, result.Mismatches...)
	outcome.Blessed = append(outcome.Blessed, result.Blessed...)
}

func (s *Suite) makeScratchDir(fixtureName string) (string, error) {
	base := path.Base(fixtureName)
	stem := strings.TrimSuffix(base, path.Ext(base))
	dir := filepath.Join(s.ScratchRoot, stem+"-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return dir, nil
}

// cleanUpScratchDir removes the scratch directory of a case that did not fail. It also runs
// when the case ends early, since that unwinds through deferred calls.
func (s *Suite) cleanUpScratchDir(c *framework.Context, dir string) {
	if c.Failed() || s.KeepScratch {
		if c.Failed() {
			c.Errorf("scratch directory kept at %s", dir)
		}
		s.logger().Printf("Kept scratch directory %s", dir)
		return
	}
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger().Printf("Failed to remove scratch directory %s: %s", dir, err)
	}
}

// fixtureFileNames lists the names under which normalized diagnostics may refer to the fixture.
func fixtureFileNames(f revision.Fixture, rules normalize.Rules) []string {
	var names []string
	add := func(name string) {
		for _, n := range names {
			if n == name {
				return
			}
		}
		names = append(names, name)
	}
	add(rules.Apply(f.Path))
	add(rules.Apply(filepath.ToSlash(f.Path)))
	add(rules.Apply(f.Name))
	add(f.Name)
	return names
}

func envPairs(vars []annotation.EnvVar) []string {
	ret := make([]string, 0, len(vars))
	for _, v := range vars {
		ret = append(ret, v.Key+"="+v.Value)
	}
	return ret
}
