package framework

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// Context is passed to the action of each test case. Like *testing.T, the methods that end the
// case (FailNow, Skip, Fatal) stop it by panicking, so they must be called from the goroutine
// running the action.
type Context struct {
	id          TestID
	debugLogger CapturingLogger
	status      Status
	skipReason  string
	errors      []error
	blessed     []string
}

// runCase runs action and returns what it recorded. Panics other than the ones used to end the
// case are recovered and reported as errors.
func runCase(id TestID, action func(*Context)) (TestResult, CapturedOutput) {
	c := &Context{id: id}
	start := time.Now()
	c.run(action)
	result := TestResult{
		TestID:   id,
		Status:   c.status,
		Errors:   c.errors,
		Reason:   c.skipReason,
		Blessed:  c.blessed,
		Duration: time.Since(start),
	}
	if result.Status == StatusPassed && len(c.blessed) > 0 {
		result.Status = StatusBlessed
	}
	return result, c.debugLogger.Output()
}

func (c *Context) run(action func(*Context)) {
	defer func() {
		if r := recover(); r != nil {
			if c.status == StatusIgnored {
				return
			}
			if _, ok := r.(*Context); ok {
				if len(c.errors) == 0 {
					c.status = StatusFailed
					c.errors = append(c.errors, errors.New("test failed with no failure message"))
				}
				return
			}
			c.status = StatusErrored
			c.errors = append(c.errors, fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack())))
		}
	}()

	action(c)
}

func (c *Context) ID() TestID {
	return c.id
}

// Errorf records a failure and lets the case continue.
func (c *Context) Errorf(format string, args ...interface{}) {
	if c.status != StatusErrored {
		c.status = StatusFailed
	}
	c.errors = append(c.errors, fmt.Errorf(format, args...))
}

// Fatal records err as the reason the case could not be checked, and ends the case.
func (c *Context) Fatal(err error) {
	c.status = StatusErrored
	c.errors = append(c.errors, err)
	c.FailNow()
}

func (c *Context) FailNow() {
	panic(c)
}

// Failed reports whether the case has failed or errored so far.
func (c *Context) Failed() bool {
	return c.status == StatusFailed || c.status == StatusErrored
}

// Skip ends the case. A case that has already failed stays failed.
func (c *Context) Skip() {
	if !c.Failed() {
		c.status = StatusIgnored
	}
	panic(c)
}

func (c *Context) SkipWithReason(reason string) {
	if !c.Failed() {
		c.skipReason = reason
	}
	c.Skip()
}

// Blessed records that a golden file was rewritten.
func (c *Context) Blessed(names ...string) {
	c.blessed = append(c.blessed, names...)
}

func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

func (c *Context) DebugLogger() Logger {
	return &c.debugLogger
}
