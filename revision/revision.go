// Package revision expands fixtures into test cases, one per revision, and names the golden
// files that belong to each of them.
package revision

import (
	"path"
	"strconv"
	"strings"

	"github.com/launchdarkly/diagnostic-contract-tests/annotation"
)

// Golden file extensions.
const (
	ExtStderr      = "stderr"
	ExtStdout      = "stdout"
	ExtFixed       = "fixed"
	ExtFixedStderr = "fixed.stderr"
)

// Fixture is one source file of the test suite.
type Fixture struct {
	// Path is the absolute path of the file.
	Path string
	// Name is the slash-separated path relative to the fixture root.
	Name   string
	Source string
}

// TestCase is one revision of one fixture, the unit of scheduling.
type TestCase struct {
	Fixture  Fixture
	Revision annotation.Revision
	// Revisions is the number of revisions of the fixture.
	Revisions int
	// Bitwidth of the target, which qualifies stderr golden names of fixtures that keep one per
	// bitwidth.
	Bitwidth int
}

// Expand returns one TestCase per revision of the fixture, in declaration order.
func Expand(f Fixture, comments *annotation.Comments, bitwidth int) []TestCase {
	names := comments.RevisionNames()
	ret := make([]TestCase, 0, len(names))
	for _, name := range names {
		ret = append(ret, TestCase{
			Fixture:   f,
			Revision:  comments.ForRevision(name),
			Revisions: len(names),
			Bitwidth:  bitwidth,
		})
	}
	return ret
}

// Name identifies the case in output and filters: the fixture name, followed by "#revision" for
// named revisions.
func (tc TestCase) Name() string {
	return CaseName(tc.Fixture.Name, tc.Revision.Name)
}

// CaseName is the name of the case for revision of the fixture with the given name.
func CaseName(fixtureName, revision string) string {
	if revision == "" {
		return fixtureName
	}
	return fixtureName + "#" + revision
}

// GoldenName returns the name of the golden file with extension ext for this case. With
// stderr-per-bitwidth, the stderr goldens get a ".64bit" style qualifier: "ui/a.64bit.stderr".
func (tc TestCase) GoldenName(ext string) string {
	if tc.Revision.StderrPerBitwidth && tc.Bitwidth > 0 && (ext == ExtStderr || ext == ExtFixedStderr) {
		ext = strconv.Itoa(tc.Bitwidth) + "bit." + ext
	}
	return GoldenName(tc.Fixture.Name, tc.Revision.Name, tc.Revisions > 1, ext)
}

// GoldenName strips the extension of fixtureName and appends ".ext", inserting ".revision"
// before it when the fixture has several revisions: "ui/a.rs" becomes "ui/a.stderr" or
// "ui/a.rev.stderr".
func GoldenName(fixtureName, revision string, multi bool, ext string) string {
	stem := strings.TrimSuffix(fixtureName, path.Ext(fixtureName))
	if multi && revision != "" {
		stem += "." + revision
	}
	return stem + "." + ext
}
