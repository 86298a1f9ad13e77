package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulesApplyInOrder(t *testing.T) {
	first, err := NewRule(`foo`, "bar")
	require.NoError(t, err)
	second, err := NewRule(`bar`, "baz")
	require.NoError(t, err)

	assert.Equal(t, "baz baz", Rules{first, second}.Apply("foo bar"))
	assert.Equal(t, "bar baz", Rules{second, first}.Apply("foo bar"))
}

func TestCaptureGroupsInReplacement(t *testing.T) {
	r, err := NewRule(`(\w+)\.rs:(\d+)`, "$1.rs:LL")
	require.NoError(t, err)
	assert.Equal(t, "--> main.rs:LL:5", Rules{r}.Apply("--> main.rs:12:5"))
}

func TestInvalidPattern(t *testing.T) {
	_, err := NewRule(`(`, "x")
	assert.Error(t, err)
}

func TestLiteralRuleIgnoresDollarSigns(t *testing.T) {
	r := LiteralRule("/tmp/x.y", "$TMP")
	assert.Equal(t, "$TMP/a and /tmp/xzy", Rules{r}.Apply("/tmp/x.y/a and /tmp/xzy"))
}

func TestConcatDoesNotAlias(t *testing.T) {
	base := make(Rules, 0, 4)
	base = append(base, LiteralRule("a", "b"))
	x := base.Concat(Rules{LiteralRule("b", "c")})
	y := base.Concat(Rules{LiteralRule("b", "d")})
	assert.Equal(t, "c", x.Apply("a"))
	assert.Equal(t, "d", y.Apply("a"))
}

func TestDefaultSeparatorRule(t *testing.T) {
	rules := Defaults(Context{})
	assert.Equal(t, "--> src/lib/mod.rs:1:1", rules.Apply(`--> src\lib\mod.rs:1:1`))
	assert.Equal(t, "C:/Users/me/x.rs", rules.Apply(`C:\\Users\\me\\x.rs`))
	assert.Equal(t, `a "\n" escape`, rules.Apply(`a "\n" escape`))
}

func TestDefaultDirectoryRules(t *testing.T) {
	rules := Defaults(Context{
		TempDir:     "/scratch/case-1/",
		FixturePath: "/work/tests/ui/borrowck/move.rs",
		RootDir:     "/work/tests/ui",
	})
	in := "error: cannot move\n" +
		"  --> /work/tests/ui/borrowck/move.rs:3:5\n" +
		"note: wrote /scratch/case-1/out.o\n" +
		"note: see /work/tests/ui/aux/helper.rs\n"
	want := "error: cannot move\n" +
		"  --> $DIR/move.rs:3:5\n" +
		"note: wrote $TMP/out.o\n" +
		"note: see aux/helper.rs\n"
	assert.Equal(t, want, rules.Apply(in))
}

func TestDefaultRulesAreIdempotent(t *testing.T) {
	rules := Defaults(Context{
		TempDir:     `/tmp/ui`,
		FixturePath: "/src/tests/a/b.rs",
		RootDir:     "/src",
	})
	for _, in := range []string{
		`error at C:\a\b\c.rs and D:\\x\\y`,
		"/tmp/ui/x /src/tests/a/b.rs /src/other.rs",
		`mixed /src/tests/a\b.rs`,
		"",
	} {
		once := rules.Apply(in)
		assert.Equal(t, once, rules.Apply(once), "input %q", in)
	}
}

func TestCleanPathSkipsMeaninglessPrefixes(t *testing.T) {
	assert.Equal(t, "", cleanPath(""))
	assert.Equal(t, "", cleanPath("."))
	assert.Equal(t, "", cleanPath("/"))
	assert.Equal(t, "/a/b", cleanPath("/a/b/"))
	assert.Len(t, Defaults(Context{FixturePath: "x.rs"}), 1)
}
