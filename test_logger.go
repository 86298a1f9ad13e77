package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/launchdarkly/diagnostic-contract-tests/framework"

	"github.com/fatih/color"
)

var (
	failColor  = color.New(color.FgRed, color.Bold)
	skipColor  = color.New(color.FgYellow)
	passColor  = color.New(color.FgGreen)
	debugColor = color.New(color.Faint)
)

// ConsoleTestLogger prints each case as it finishes. The scheduler calls it from one goroutine.
type ConsoleTestLogger struct {
	Out                  io.Writer
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
}

func (c *ConsoleTestLogger) TestStarted(id framework.TestID) {
	fmt.Fprintf(c.Out, "[%s]\n", id)
}

func (c *ConsoleTestLogger) TestError(id framework.TestID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(c.Out, "  %s\n", line)
	}
}

func (c *ConsoleTestLogger) TestFinished(id framework.TestID, result framework.TestResult, debugOutput framework.CapturedOutput) {
	failed := !result.Status.OK()
	switch result.Status {
	case framework.StatusFailed:
		failColor.Fprintf(c.Out, "  FAILED: %s\n", id)
	case framework.StatusErrored:
		failColor.Fprintf(c.Out, "  ERRORED: %s\n", id)
	case framework.StatusBlessed:
		for _, name := range result.Blessed {
			passColor.Fprintf(c.Out, "  BLESSED: %s\n", name)
		}
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		var buf strings.Builder
		debugOutput.Dump(&buf, "    DEBUG ")
		debugColor.Fprint(c.Out, buf.String())
	}
}

func (c *ConsoleTestLogger) TestSkipped(id framework.TestID, reason string) {
	if reason == "" {
		skipColor.Fprintf(c.Out, "  SKIPPED: %s\n", id)
	} else {
		skipColor.Fprintf(c.Out, "  SKIPPED: %s (%s)\n", id, reason)
	}
}

func printResults(out io.Writer, results framework.Results) {
	fmt.Fprintln(out)
	if len(results.Suggestions) > 0 {
		failColor.Fprintln(out, "No tests matched the --run filter.")
		fmt.Fprintln(out, "Closest test names:")
		for _, s := range results.Suggestions {
			fmt.Fprintf(out, "  %s\n", s)
		}
		return
	}

	fmt.Fprintf(out, "Ran %d tests: %d passed, %d blessed, %d failed, %d ignored, %d errored\n",
		len(results.Tests),
		results.Count(framework.StatusPassed),
		results.Count(framework.StatusBlessed),
		results.Count(framework.StatusFailed),
		results.Count(framework.StatusIgnored),
		results.Count(framework.StatusErrored),
	)
	if results.Filtered > 0 {
		fmt.Fprintf(out, "%d tests were filtered out\n", results.Filtered)
	}
	if results.NotRun > 0 {
		skipColor.Fprintf(out, "%d tests were not run because the run was stopped early\n", results.NotRun)
	}
	if len(results.Failures) > 0 {
		failColor.Fprintln(out, "Failed tests:")
		for _, f := range results.Failures {
			var err error = fmt.Errorf("%s", f.Status)
			if len(f.Errors) > 0 {
				first, _, _ := strings.Cut(f.Errors[0].Error(), "\n")
				err = fmt.Errorf("%s: %s", f.Status, first)
			}
			fmt.Fprintf(out, "  %s\n", framework.TestFailure{ID: f.TestID, Err: err})
		}
		return
	}
	passColor.Fprintln(out, "All tests passed")
}
