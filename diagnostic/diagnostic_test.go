package diagnostic

import (
	"strings"
	"testing"

	"github.com/launchdarkly/diagnostic-contract-tests/normalize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"error":        LevelError,
		"ERROR":        LevelError,
		"warn":         LevelWarning,
		"Warning":      LevelWarning,
		"note":         LevelNote,
		"help":         LevelHelp,
		"any":          LevelAny,
		"failure-note": LevelNote,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("fatal")
	assert.Error(t, err)
}

func TestLevelOrderingAndMatching(t *testing.T) {
	assert.True(t, LevelHelp < LevelNote && LevelNote < LevelWarning && LevelWarning < LevelError)
	assert.True(t, LevelAny.Matches(LevelError))
	assert.True(t, LevelWarning.Matches(LevelWarning))
	assert.False(t, LevelWarning.Matches(LevelError))
}

func TestDecodeTextGccStyle(t *testing.T) {
	out := "src/a.c:3:9: warning: unused variable 'x'\n" +
		"src/a.c:7: error[E12]: expected ';'\n" +
		"    7 | int y = 2\n" +
		"error: 1 error generated\n"
	d, err := Decode(FormatText, out, nil)
	require.NoError(t, err)
	require.Len(t, d.Diagnostics, 3)

	assert.Equal(t, Diagnostic{Level: LevelWarning, File: "src/a.c", Line: 3, Column: 9, Message: "unused variable 'x'"}, d.Diagnostics[0])
	assert.Equal(t, Diagnostic{Level: LevelError, File: "src/a.c", Line: 7, Code: "E12", Message: "expected ';'"}, d.Diagnostics[1])
	assert.False(t, d.Diagnostics[2].Located())
	assert.Equal(t, []string{"    7 | int y = 2"}, d.Raw)
	assert.Equal(t, out, d.Rendered)
}

func TestDecodeTextDriveLetterPaths(t *testing.T) {
	d, err := Decode(FormatText, "C:/x/y.c:3:4: error: expected ';'\nd:/lib/z.h:9: warning: shadowed\n", nil)
	require.NoError(t, err)
	require.Len(t, d.Diagnostics, 2)
	assert.Equal(t, Diagnostic{Level: LevelError, File: "C:/x/y.c", Line: 3, Column: 4, Message: "expected ';'"}, d.Diagnostics[0])
	assert.Equal(t, Diagnostic{Level: LevelWarning, File: "d:/lib/z.h", Line: 9, Message: "shadowed"}, d.Diagnostics[1])
	assert.Empty(t, d.Raw)
}

func TestDecodeTextRustcStyle(t *testing.T) {
	out := strings.Join([]string{
		"warning: unused variable: `x`",
		"  --> /work/ui/assign.rs:4:9",
		"   |",
		"4  |     let x = Foo;",
		"   |         ^ help: prefix it with an underscore: `_x`",
		"",
		"error[E0384]: cannot assign twice to immutable variable `x`",
		"  --> /work/ui/assign.rs:5:5",
		"",
		"error: aborting due to 1 previous error; 1 warning emitted",
		"",
	}, "\n")
	rules := normalize.Defaults(normalize.Context{FixturePath: "/work/ui/assign.rs"})
	d, err := Decode(FormatText, out, rules)
	require.NoError(t, err)
	require.Len(t, d.Diagnostics, 2)

	assert.Equal(t, LevelWarning, d.Diagnostics[0].Level)
	assert.Equal(t, "$DIR/assign.rs", d.Diagnostics[0].File)
	assert.Equal(t, 4, d.Diagnostics[0].Line)
	assert.Equal(t, 9, d.Diagnostics[0].Column)

	assert.Equal(t, LevelError, d.Diagnostics[1].Level)
	assert.Equal(t, "E0384", d.Diagnostics[1].Code)
	assert.Equal(t, 5, d.Diagnostics[1].Line)
	assert.Equal(t, "$DIR/assign.rs:5:5: error[E0384]: cannot assign twice to immutable variable `x`", d.Diagnostics[1].String())

	assert.Contains(t, d.Rendered, "--> $DIR/assign.rs:5:5")
	assert.Contains(t, d.Raw, "error: aborting due to 1 previous error; 1 warning emitted")
}

func TestDecodeEmptyOutput(t *testing.T) {
	d, err := Decode(FormatText, "", nil)
	require.NoError(t, err)
	assert.Empty(t, d.Diagnostics)
	assert.Empty(t, d.Raw)
	assert.Equal(t, "", d.Rendered)
}

const jsonDiagnostic = `{"$message_type":"diagnostic","message":"unused variable: ` + "`x`" + `","code":{"code":"unused_variables","explanation":null},"level":"warning",` +
	`"spans":[{"file_name":"C:\\work\\ui\\fix.rs","byte_start":24,"byte_end":25,"line_start":2,"line_end":2,"column_start":9,"column_end":10,"is_primary":true,"suggested_replacement":null,"suggestion_applicability":null}],` +
	`"children":[{"message":"if this is intentional, prefix it with an underscore","code":null,"level":"help","spans":[{"file_name":"C:\\work\\ui\\fix.rs","byte_start":24,"byte_end":25,"line_start":2,"line_end":2,"column_start":9,"column_end":10,"is_primary":true,"suggested_replacement":"_x","suggestion_applicability":"MachineApplicable"}],"children":[],"rendered":null},` +
	`{"message":"` + "`#[warn(unused_variables)]`" + ` on by default","code":null,"level":"note","spans":[],"children":[],"rendered":null}],` +
	`"rendered":"warning: unused variable\n --> C:\\work\\ui\\fix.rs:2:9\n"}`

func TestDecodeJSON(t *testing.T) {
	out := jsonDiagnostic + "\n" +
		`{"$message_type":"artifact","artifact":"x.rmeta","emit":"metadata"}` + "\n" +
		"thread 'main' panicked\n" +
		`{"message":"aborting due to 1 previous error","code":null,"level":"error","spans":[],"children":[],"rendered":"error: aborting due to 1 previous error\n"}` + "\n"
	rules := normalize.Defaults(normalize.Context{FixturePath: "C:/work/ui/fix.rs"})
	d, err := Decode(FormatJSON, out, rules)
	require.NoError(t, err)
	require.Len(t, d.Diagnostics, 3)

	warn, help, note := d.Diagnostics[0], d.Diagnostics[1], d.Diagnostics[2]
	assert.Equal(t, LevelWarning, warn.Level)
	assert.Equal(t, "unused_variables", warn.Code)
	assert.Equal(t, "$DIR/fix.rs", warn.File)
	assert.Equal(t, 2, warn.Line)
	assert.Equal(t, 9, warn.Column)
	assert.Empty(t, warn.Suggestions)

	assert.Equal(t, LevelHelp, help.Level)
	require.Len(t, help.Suggestions, 1)
	assert.Equal(t, Suggestion{File: "$DIR/fix.rs", ByteStart: 24, ByteEnd: 25, Replacement: "_x", Applicability: MachineApplicable}, help.Suggestions[0])
	assert.True(t, help.Suggestions[0].MachineApplicable())

	assert.Equal(t, LevelNote, note.Level)
	assert.Equal(t, 2, note.Line, "child without spans inherits the parent location")

	assert.Equal(t, []string{"thread 'main' panicked"}, d.Raw)
	assert.Equal(t, "warning: unused variable\n --> $DIR/fix.rs:2:9\nthread 'main' panicked\nerror: aborting due to 1 previous error\n", d.Rendered)
}

func TestDecodeJSONRejectsBadOffsets(t *testing.T) {
	out := `{"message":"m","level":"error","spans":[{"file_name":"a.rs","byte_start":1.5,"byte_end":2,"line_start":1,"column_start":1,"is_primary":true,"suggested_replacement":"x"}],"children":[]}`
	_, err := Decode(FormatJSON, out, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output line 1")
}

func TestDecodeJSONRejectsUnknownLevel(t *testing.T) {
	_, err := Decode(FormatJSON, `{"message":"m","level":"catastrophe","spans":[],"children":[]}`, nil)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)
	f, err = ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
