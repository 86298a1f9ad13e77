// Package framework contains the test-running infrastructure that does not know what is being
// tested.
//
// The general model is:
//
// 1. Each unit of work is a Case: a TestID naming one revision of one fixture, and an action.
//
// 2. The action receives a *Context, which is similar to Go's *testing.T. It can record
// failures, end the case early, skip it, and mark golden files it rewrote.
//
// 3. A Scheduler runs the selected cases on a bounded number of goroutines and hands the
// results to a TestLogger, one case at a time, in the order the cases were dispatched.
//
// The domain-specific code that knows how to invoke a compiler and check its output lives in
// the uitests package.
package framework
