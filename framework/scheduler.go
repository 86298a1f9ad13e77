package framework

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Case is one unit of scheduling.
type Case struct {
	ID  TestID
	Run func(*Context)
}

// Scheduler runs cases concurrently and reports them to TestLogger in the order they were
// dispatched.
type Scheduler struct {
	// Parallelism is the number of cases that may run at once; 0 means GOMAXPROCS.
	Parallelism int
	// FailFast stops dispatching new cases after the first failed or errored one. Cases that
	// are already running are allowed to finish.
	FailFast   bool
	Filters    RegexFilters
	TestLogger TestLogger
}

type finishedCase struct {
	counter int
	result  TestResult
	output  CapturedOutput
}

// Run executes the cases that pass the filters. If a --run filter selects nothing, nothing is
// run and the closest fixture names are returned in Results.Suggestions.
//
// Cancelling ctx stops dispatch; it does not interrupt cases that are already running.
func (s *Scheduler) Run(ctx context.Context, cases []Case) Results {
	logger := s.TestLogger
	if logger == nil {
		logger = nullTestLogger{}
	}

	var results Results
	var selected []Case
	for _, c := range cases {
		if s.Filters.AsFilter(c.ID) {
			selected = append(selected, c)
		} else {
			results.Filtered++
		}
	}
	if len(selected) == 0 {
		if s.Filters.MustMatch.IsDefined() {
			results.Suggestions = s.Filters.Suggest(fixtureNames(cases))
		}
		return results
	}

	parallelism := s.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	slots := semaphore.NewWeighted(int64(parallelism))
	var stop atomic.Bool

	done := make(chan finishedCase, len(selected))
	queue := NewMessageSortingQueue[finishedCase](len(selected))
	ordered := queue.C

	go func() {
		for f := range done {
			queue.Accept(f.counter, f)
		}
		queue.Close()
	}()

	drained := make(chan struct{})
	var tests, failures []TestResult
	go func() {
		defer close(drained)
		for f := range ordered {
			id := f.result.TestID
			logger.TestStarted(id)
			for _, err := range f.result.Errors {
				logger.TestError(id, err)
			}
			if f.result.Status == StatusIgnored {
				logger.TestSkipped(id, f.result.Reason)
			} else {
				logger.TestFinished(id, f.result, f.output)
			}
			tests = append(tests, f.result)
			if !f.result.Status.OK() {
				failures = append(failures, f.result)
			}
		}
	}()

	var g errgroup.Group
	dispatched := 0
	for _, c := range selected {
		c := c
		if stop.Load() {
			break
		}
		if err := slots.Acquire(ctx, 1); err != nil {
			break
		}
		// a case that failed while we were waiting for its slot has already set stop
		if stop.Load() {
			slots.Release(1)
			break
		}
		dispatched++
		counter := dispatched
		g.Go(func() error {
			defer slots.Release(1)
			result, output := runCase(c.ID, c.Run)
			if s.FailFast && !result.Status.OK() {
				stop.Store(true)
			}
			done <- finishedCase{counter: counter, result: result, output: output}
			return nil
		})
	}
	_ = g.Wait()
	close(done)
	<-drained

	results.Tests = tests
	results.Failures = failures
	results.NotRun = len(selected) - dispatched
	return results
}

// fixtureNames returns the distinct fixture names of cases, in order.
func fixtureNames(cases []Case) []string {
	seen := make(map[string]bool)
	var ret []string
	for _, c := range cases {
		if !seen[c.ID.Fixture] {
			seen[c.ID.Fixture] = true
			ret = append(ret, c.ID.Fixture)
		}
	}
	return ret
}
