package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/launchdarkly/diagnostic-contract-tests/framework"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ framework.Logger = (*Logger)(nil)

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.Debugf("hidden")
	l.Infof("hidden too")
	l.Warnf("kept %d", 1)
	l.Errorf("kept %d\n", 2)
	assert.Equal(t, "[WARN] kept 1\n[ERROR] kept 2\n", buf.String())
}

func TestLoggerDoesNotColorNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug)
	assert.False(t, IsTerminal(&buf))
	l.Printf("plain")
	assert.Equal(t, "[DEBUG] plain\n", buf.String())
}

func TestLoggerConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Infof("message")
		}()
	}
	wg.Wait()
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 20)
	for _, line := range lines {
		assert.Equal(t, "[INFO] message", line)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"": LevelInfo, "DEBUG": LevelDebug, "warning": LevelWarn, " error ": LevelError} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestNilLoggerIsSilent(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Infof("nothing") })
}
