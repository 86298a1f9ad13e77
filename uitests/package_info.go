// Package uitests connects the pieces of the harness into the check that runs for every
// revision of every fixture: compile it, normalize and decode what the compiler printed, match
// the diagnostics against the fixture's annotations, compare the output with golden files, and
// optionally verify the compiler's suggested fixes.
package uitests
