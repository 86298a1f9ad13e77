package revision

import (
	"testing"

	"github.com/launchdarkly/diagnostic-contract-tests/annotation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTwoRevisions(t *testing.T) {
	src := "//@revisions: a b\n" +
		"x //~[a] ERROR: only a\n" +
		"y //~[b] WARN: only b\n" +
		"z //~ NOTE: both\n"
	comments, err := annotation.Parse("ui/x.rs", src)
	require.NoError(t, err)

	cases := Expand(Fixture{Name: "ui/x.rs", Source: src}, comments, 64)
	require.Len(t, cases, 2)

	a, b := cases[0], cases[1]
	assert.Equal(t, "ui/x.rs#a", a.Name())
	assert.Equal(t, "ui/x.rs#b", b.Name())
	require.Len(t, a.Revision.Annotations, 2)
	assert.Equal(t, 2, a.Revision.Annotations[0].Line)
	assert.Equal(t, 4, a.Revision.Annotations[1].Line)
	require.Len(t, b.Revision.Annotations, 2)
	assert.Equal(t, 3, b.Revision.Annotations[0].Line)
	assert.Equal(t, 4, b.Revision.Annotations[1].Line)

	assert.Equal(t, "ui/x.a.stderr", a.GoldenName(ExtStderr))
	assert.Equal(t, "ui/x.b.fixed.stderr", b.GoldenName(ExtFixedStderr))
}

func TestExpandImplicitRevision(t *testing.T) {
	comments, err := annotation.Parse("y.rs", "fn main() {}\n")
	require.NoError(t, err)
	cases := Expand(Fixture{Name: "dir/y.rs"}, comments, 64)
	require.Len(t, cases, 1)
	assert.Equal(t, "dir/y.rs", cases[0].Name())
	assert.Equal(t, "dir/y.stderr", cases[0].GoldenName(ExtStderr))
	assert.Equal(t, "dir/y.fixed", cases[0].GoldenName(ExtFixed))
}

func TestSingleDeclaredRevisionIsNotQualified(t *testing.T) {
	comments, err := annotation.Parse("z.rs", "//@revisions: only\n")
	require.NoError(t, err)
	cases := Expand(Fixture{Name: "z.rs"}, comments, 64)
	require.Len(t, cases, 1)
	assert.Equal(t, "z.rs#only", cases[0].Name())
	assert.Equal(t, "z.stdout", cases[0].GoldenName(ExtStdout))
}

func TestStderrPerBitwidth(t *testing.T) {
	comments, err := annotation.Parse("w.rs", "//@revisions: a b\n//@[b] stderr-per-bitwidth\n")
	require.NoError(t, err)
	cases := Expand(Fixture{Name: "ui/w.rs"}, comments, 32)
	require.Len(t, cases, 2)

	assert.Equal(t, "ui/w.a.stderr", cases[0].GoldenName(ExtStderr))
	assert.Equal(t, "ui/w.b.32bit.stderr", cases[1].GoldenName(ExtStderr))
	assert.Equal(t, "ui/w.b.32bit.fixed.stderr", cases[1].GoldenName(ExtFixedStderr))
	assert.Equal(t, "ui/w.b.stdout", cases[1].GoldenName(ExtStdout))
	assert.Equal(t, "ui/w.b.fixed", cases[1].GoldenName(ExtFixed))

	cases = Expand(Fixture{Name: "ui/w.rs"}, comments, 64)
	assert.Equal(t, "ui/w.b.64bit.stderr", cases[1].GoldenName(ExtStderr))
}

func TestGoldenNameWithoutExtension(t *testing.T) {
	assert.Equal(t, "a/Makefile.stderr", GoldenName("a/Makefile", "", false, ExtStderr))
	assert.Equal(t, "a.b/c.r1.stderr", GoldenName("a.b/c.rs", "r1", true, ExtStderr))
}
