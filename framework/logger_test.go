package framework

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapturedOutputDump(t *testing.T) {
	var l CapturingLogger
	l.Printf("running %s", "rustc")
	l.Printf("stderr:\n%s", "line one\nline two\n")

	var buf bytes.Buffer
	l.Output().Dump(&buf, "  ")
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "  ["))
	assert.True(t, strings.HasSuffix(lines[0], "] running rustc"))
	assert.Equal(t, len(lines[1])-len("stderr:"), len(lines[2])-len("line one"))
	assert.True(t, strings.HasSuffix(lines[3], "line two"))
	assert.Equal(t, strings.TrimSpace(lines[3]), "line two")
}
