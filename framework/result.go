package framework

import (
	"fmt"
	"time"
)

// Status is the final state of a test case.
type Status int

const (
	StatusPassed Status = iota
	// StatusBlessed means golden files were rewritten; it counts as passing.
	StatusBlessed
	StatusFailed
	StatusIgnored
	// StatusErrored means the case could not be checked at all, for instance because the
	// fixture has invalid annotations or the compiler could not be run.
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusBlessed:
		return "blessed"
	case StatusFailed:
		return "failed"
	case StatusIgnored:
		return "ignored"
	case StatusErrored:
		return "errored"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// OK reports whether the status does not fail the run.
func (s Status) OK() bool {
	return s == StatusPassed || s == StatusBlessed || s == StatusIgnored
}

type Results struct {
	Tests []TestResult
	// Failures holds the failed and errored results, in the order the cases were dispatched.
	Failures []TestResult
	// NotRun counts selected cases that were never dispatched because of fail-fast or
	// cancellation.
	NotRun int
	// Filtered counts cases excluded by the filters.
	Filtered int
	// Suggestions are the closest case names, when the filters matched nothing.
	Suggestions []string
}

func (r Results) OK() bool {
	return len(r.Failures) == 0 && r.NotRun == 0 && len(r.Suggestions) == 0
}

// Count returns the number of results with status s.
func (r Results) Count(s Status) int {
	n := 0
	for _, t := range r.Tests {
		if t.Status == s {
			n++
		}
	}
	return n
}

type TestResult struct {
	TestID TestID
	Status Status
	Errors []error
	// Reason explains an ignored case.
	Reason string
	// Blessed lists the golden files the case rewrote.
	Blessed  []string
	Duration time.Duration
}

// TestID identifies one revision of one fixture.
type TestID struct {
	Fixture  string
	Revision string
}

func (t TestID) String() string {
	if t.Revision == "" {
		return t.Fixture
	}
	return t.Fixture + "#" + t.Revision
}

type TestFailure struct {
	ID  TestID
	Err error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.ID, f.Err)
}
