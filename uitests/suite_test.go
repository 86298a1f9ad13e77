package uitests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/launchdarkly/diagnostic-contract-tests/annotation"
	"github.com/launchdarkly/diagnostic-contract-tests/compiler"
	"github.com/launchdarkly/diagnostic-contract-tests/config"
	"github.com/launchdarkly/diagnostic-contract-tests/diagnostic"
	"github.com/launchdarkly/diagnostic-contract-tests/framework"
	"github.com/launchdarkly/diagnostic-contract-tests/golden"
	"github.com/launchdarkly/diagnostic-contract-tests/revision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureRoot = "/work/ui"

type fakeInvoker struct {
	respond     func(inv compiler.Invocation) (compiler.Output, error)
	lock        sync.Mutex
	invocations []compiler.Invocation
}

func (f *fakeInvoker) Invoke(_ context.Context, inv compiler.Invocation) (compiler.Output, error) {
	f.lock.Lock()
	f.invocations = append(f.invocations, inv)
	f.lock.Unlock()
	return f.respond(inv)
}

func failWith(stderr string) func(compiler.Invocation) (compiler.Output, error) {
	return func(compiler.Invocation) (compiler.Output, error) {
		return compiler.Output{ExitCode: 1, Stderr: stderr}, nil
	}
}

func fixture(name string, lines ...string) revision.Fixture {
	return revision.Fixture{
		Path:   fixtureRoot + "/" + name,
		Name:   name,
		Source: strings.Join(lines, "\n") + "\n",
	}
}

func newSuite(t *testing.T, invoker compiler.Invoker, store golden.Store) *Suite {
	return &Suite{
		Root:        fixtureRoot,
		Invoker:     invoker,
		Store:       store,
		Format:      diagnostic.FormatText,
		DefaultMode: annotation.ModeFail,
		Platform:    annotation.Platform{Host: "x86_64-linux", Target: "x86_64-linux", Bitwidth: 64},
		ScratchRoot: t.TempDir(),
	}
}

func run(s *Suite, fixtures ...revision.Fixture) framework.Results {
	scheduler := framework.Scheduler{Parallelism: 1}
	return scheduler.Run(context.Background(), s.Cases(context.Background(), fixtures))
}

var assignSource = []string{
	"fn main() {",
	"    let x = Foo; //~ WARN: unused",
	"    x = Foo;",
	"    //~^ ERROR: cannot assign twice",
	"}",
}

const assignStderr = "warning: unused variable: `x`\n" +
	"  --> /work/ui/assign.rs:2:9\n" +
	"\n" +
	"error[E0384]: cannot assign twice to immutable variable `x`\n" +
	"  --> /work/ui/assign.rs:3:5\n" +
	"\n" +
	"error: aborting due to 1 previous error; 1 warning emitted\n"

func TestBlessThenCheck(t *testing.T) {
	store := golden.NewMemoryStore(nil)
	s := newSuite(t, &fakeInvoker{respond: failWith(assignStderr)}, store)
	s.Bless = true

	results := run(s, fixture("assign.rs", assignSource...))
	require.Len(t, results.Tests, 1)
	assert.Equal(t, framework.StatusBlessed, results.Tests[0].Status, results.Tests[0].Errors)
	assert.Equal(t, []string{"assign.stderr"}, results.Tests[0].Blessed)

	text, ok, err := store.Read("assign.stderr")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, text, "--> $DIR/assign.rs:3:5")
	assert.NotContains(t, text, fixtureRoot)

	s.Bless = false
	results = run(s, fixture("assign.rs", assignSource...))
	assert.Equal(t, framework.StatusPassed, results.Tests[0].Status, results.Tests[0].Errors)
	assert.True(t, results.OK())
}

func TestMissingWarningFails(t *testing.T) {
	stderr := strings.Replace(assignStderr, "warning: unused variable: `x`\n  --> /work/ui/assign.rs:2:9\n\n", "", 1)
	store := golden.NewMemoryStore(map[string]string{"assign.stderr": stderr})
	invoker := &fakeInvoker{respond: failWith(stderr)}
	s := newSuite(t, invoker, store)

	results := run(s, fixture("assign.rs", assignSource...))
	require.Len(t, results.Failures, 1)
	result := results.Failures[0]
	assert.Equal(t, framework.StatusFailed, result.Status)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0].Error(), "line 2: WARNING: unused")
	assert.Contains(t, result.Errors[1].Error(), "scratch directory kept at")

	require.Len(t, invoker.invocations, 1)
	assert.DirExists(t, invoker.invocations[0].ScratchDir)
}

func TestUnexpectedDiagnosticAndSnapshotMismatch(t *testing.T) {
	stderr := "/work/ui/plain.rs:1:1: error: something odd\n"
	store := golden.NewMemoryStore(nil)
	s := newSuite(t, &fakeInvoker{respond: failWith(stderr)}, store)

	results := run(s, fixture("plain.rs", "fn main() {}"))
	require.Len(t, results.Failures, 1)
	report := results.Failures[0].Errors[0].Error()
	assert.Contains(t, report, "reported diagnostics that were not expected:")
	assert.Contains(t, report, "$DIR/plain.rs:1:1: error: something odd")
	assert.Contains(t, report, "actual output differs from plain.stderr")
}

func TestCleanFixturePassesAndRemovesScratchDir(t *testing.T) {
	invoker := &fakeInvoker{respond: failWith("")}
	s := newSuite(t, invoker, golden.NewMemoryStore(nil))

	results := run(s, fixture("clean.rs", "fn main() {}"))
	assert.Equal(t, framework.StatusPassed, results.Tests[0].Status, results.Tests[0].Errors)
	require.Len(t, invoker.invocations, 1)
	scratch := invoker.invocations[0].ScratchDir
	assert.True(t, strings.HasPrefix(filepath.Base(scratch), "clean-"))
	assert.NoDirExists(t, scratch)
}

func TestRevisionsRunSeparately(t *testing.T) {
	invoker := &fakeInvoker{respond: func(inv compiler.Invocation) (compiler.Output, error) {
		assert.Equal(t, []string{"--cfg", inv.Revision}, inv.Flags)
		switch inv.Revision {
		case "a":
			return compiler.Output{ExitCode: 1, Stderr: "/work/ui/rev.rs:4:5: error: first\n"}, nil
		case "b":
			return compiler.Output{ExitCode: 1, Stderr: "/work/ui/rev.rs:5:5: warning: second\n"}, nil
		}
		return compiler.Output{}, fmt.Errorf("unexpected revision %q", inv.Revision)
	}}
	store := golden.NewMemoryStore(nil)
	s := newSuite(t, invoker, store)
	s.Bless = true

	results := run(s, fixture("rev.rs",
		"//@revisions: a b",
		"//@[a] compile-flags: --cfg a",
		"//@[b] compile-flags: --cfg b",
		"    x; //~[a] ERROR: first",
		"    y; //~[b] WARN: second",
	))
	require.Len(t, results.Tests, 2)
	assert.Equal(t, "rev.rs#a", results.Tests[0].TestID.String())
	assert.Equal(t, "rev.rs#b", results.Tests[1].TestID.String())
	for _, r := range results.Tests {
		assert.Equal(t, framework.StatusBlessed, r.Status, r.Errors)
	}
	assert.ElementsMatch(t, []string{"rev.a.stderr", "rev.b.stderr"}, store.Names())
}

func TestStderrPerBitwidthGolden(t *testing.T) {
	store := golden.NewMemoryStore(nil)
	s := newSuite(t, &fakeInvoker{respond: failWith("error: usize is 8 bytes\n")}, store)
	s.Bless = true

	results := run(s, fixture("width.rs", "//@stderr-per-bitwidth", "fn main() {}"))
	require.Len(t, results.Tests, 1)
	assert.Equal(t, framework.StatusBlessed, results.Tests[0].Status, results.Tests[0].Errors)
	assert.Equal(t, []string{"width.64bit.stderr"}, store.Names())
}

func TestParseErrorIsErrored(t *testing.T) {
	invoker := &fakeInvoker{respond: failWith("")}
	s := newSuite(t, invoker, golden.NewMemoryStore(nil))

	results := run(s, fixture("bad.rs", "x //~ BOOM: nope"))
	require.Len(t, results.Tests, 1)
	assert.Equal(t, framework.StatusErrored, results.Tests[0].Status)
	assert.True(t, annotation.IsParseError(results.Tests[0].Errors[0]))
	assert.Empty(t, invoker.invocations)
}

func TestIgnoredOnPlatform(t *testing.T) {
	invoker := &fakeInvoker{respond: failWith("")}
	s := newSuite(t, invoker, golden.NewMemoryStore(nil))

	results := run(s, fixture("skip.rs", "//@ignore-host-linux", "fn main() {}"))
	require.Len(t, results.Tests, 1)
	assert.Equal(t, framework.StatusIgnored, results.Tests[0].Status)
	assert.Contains(t, results.Tests[0].Reason, "ignore-host-linux")
	assert.Empty(t, invoker.invocations)
	assert.True(t, results.OK())
}

func TestTimeoutIsErrored(t *testing.T) {
	invoker := &fakeInvoker{respond: func(compiler.Invocation) (compiler.Output, error) {
		return compiler.Output{}, &compiler.InvocationError{Command: "rustc", Err: fmt.Errorf("%w after 1s", compiler.ErrTimeout)}
	}}
	s := newSuite(t, invoker, golden.NewMemoryStore(nil))

	results := run(s, fixture("slow.rs", "fn main() {}"))
	require.Len(t, results.Failures, 1)
	assert.Equal(t, framework.StatusErrored, results.Failures[0].Status)
	assert.True(t, compiler.IsTimeout(results.Failures[0].Errors[0]))
}

func TestUnsupportedInvocationIsIgnored(t *testing.T) {
	invoker := &fakeInvoker{respond: func(compiler.Invocation) (compiler.Output, error) {
		return compiler.Output{}, fmt.Errorf("environment variables are %w", compiler.ErrUnsupported)
	}}
	s := newSuite(t, invoker, golden.NewMemoryStore(nil))

	results := run(s, fixture("env.rs", "//@env: LANG=C", "fn main() {}"))
	require.Len(t, results.Tests, 1)
	assert.Equal(t, framework.StatusIgnored, results.Tests[0].Status, results.Tests[0].Errors)
	assert.Contains(t, results.Tests[0].Reason, "not supported by the compile service")
	assert.Equal(t, []string{"LANG=C"}, invoker.invocations[0].Env)
	assert.True(t, results.OK())
}

func TestCheckPassRequiresSuccess(t *testing.T) {
	s := newSuite(t, &fakeInvoker{respond: failWith("")}, golden.NewMemoryStore(nil))

	results := run(s, fixture("pass.rs", "//@check-pass", "fn main() {}"))
	require.Len(t, results.Failures, 1)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "expected to succeed")
}

func TestFixVerification(t *testing.T) {
	source := []string{
		"//@check-pass",
		"//@run-fix",
		"fn main() {",
		"    let x = 1; //~ WARN: unused variable",
		"}",
	}
	start := strings.Index(strings.Join(source, "\n"), "x = 1")
	warning := fmt.Sprintf(`{"$message_type":"diagnostic","message":"unused variable: x","code":null,"level":"warning",`+
		`"spans":[{"file_name":"/work/ui/fix.rs","byte_start":%d,"byte_end":%d,"line_start":4,"line_end":4,"column_start":9,"column_end":10,"is_primary":true,"suggested_replacement":"_x","suggestion_applicability":"MachineApplicable"}],`+
		`"children":[],"rendered":"warning: unused variable: x\n --> /work/ui/fix.rs:4:9\n"}`, start, start+1)
	invoker := &fakeInvoker{respond: func(inv compiler.Invocation) (compiler.Output, error) {
		if strings.Contains(inv.Source, "_x") {
			return compiler.Output{}, nil
		}
		return compiler.Output{Stderr: warning + "\n"}, nil
	}}
	store := golden.NewMemoryStore(nil)
	s := newSuite(t, invoker, store)
	s.Format = diagnostic.FormatJSON
	s.Bless = true

	results := run(s, fixture("fix.rs", source...))
	require.Len(t, results.Tests, 1)
	assert.Equal(t, framework.StatusBlessed, results.Tests[0].Status, results.Tests[0].Errors)

	fixed, ok, err := store.Read("fix.fixed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, fixed, "let _x = 1;")
	rendered, _, _ := store.Read("fix.stderr")
	assert.Equal(t, "warning: unused variable: x\n --> $DIR/fix.rs:4:9\n", rendered)

	require.Len(t, invoker.invocations, 2)
	second := invoker.invocations[1]
	assert.Equal(t, filepath.Join(second.ScratchDir, "fix.rs"), second.FixturePath)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	for name, content := range map[string]string{
		"b.rs":             "b",
		"a/z.rs":           "z",
		"a/notes.txt":      "n",
		"a/z.stderr":       "s",
		".hidden/x.rs":     "x",
		"c/deeper/last.rs": "l",
	} {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	fixtures, err := Discover(root, []string{"rs"})
	require.NoError(t, err)
	var names []string
	for _, f := range fixtures {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a/z.rs", "b.rs", "c/deeper/last.rs"}, names)
	assert.Equal(t, "z", fixtures[0].Source)
	assert.Equal(t, filepath.Join(root, "a", "z.rs"), fixtures[0].Path)

	_, err = Discover(filepath.Join(root, "missing"), []string{".rs"})
	assert.Error(t, err)
}

func TestNewSuiteFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Compiler.Program = "rustc"
	cfg.Compiler.Format = "json"
	cfg.Mode = "pass"
	cfg.Root = "/work/ui"
	cfg.Normalize = []config.NormalizeRule{{Pattern: `\d+ms`, Replacement: "Nms"}}

	s, err := NewSuite(cfg, &fakeInvoker{}, golden.NewMemoryStore(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, diagnostic.FormatJSON, s.Format)
	assert.Equal(t, annotation.ModePass, s.DefaultMode)
	assert.Len(t, s.Rules, 1)
	assert.Equal(t, cfg.Timeout, s.Timeout)
}
