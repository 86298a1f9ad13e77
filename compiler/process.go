package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long we wait for output pipes after the compiler has been killed, in
// case it left children holding them open.
const waitDelay = 2 * time.Second

// ProcessInvoker runs the compiler as a local subprocess.
type ProcessInvoker struct {
	Program string
	// Args come before the fixture's own flags and may contain the {fixture}, {scratch} and
	// {revision} placeholders. If none of them mentions {fixture}, the fixture path is passed
	// as the last argument.
	Args []string
	// Env holds extra KEY=VALUE pairs for every invocation.
	Env []string
	// Dir is the working directory; empty means the current one.
	Dir string
}

func (p ProcessInvoker) commandArgs(inv Invocation) []string {
	replacer := strings.NewReplacer(
		PlaceholderFixture, inv.FixturePath,
		PlaceholderScratch, inv.ScratchDir,
		PlaceholderRevision, inv.Revision,
	)
	var args []string
	sawFixture := false
	for _, a := range p.Args {
		if strings.Contains(a, PlaceholderFixture) {
			sawFixture = true
		}
		args = append(args, replacer.Replace(a))
	}
	args = append(args, inv.Flags...)
	if !sawFixture {
		args = append(args, inv.FixturePath)
	}
	return args
}

// Invoke runs the compiler to completion. Cancellation of ctx does not stop a compiler that has
// already started; only the invocation's own timeout does.
func (p ProcessInvoker) Invoke(ctx context.Context, inv Invocation) (Output, error) {
	args := p.commandArgs(inv)
	cmdLine := CommandLine(p.Program, args)
	logger := inv.logger()

	runCtx := context.WithoutCancel(ctx)
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, p.Program, args...)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), p.Env...)
	cmd.Env = append(cmd.Env, inv.Env...)
	cmd.Env = append(cmd.Env, EnvScratch+"="+inv.ScratchDir, EnvRevision+"="+inv.Revision)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Printf("Running: %s", cmdLine)
	start := time.Now()
	err := cmd.Run()
	out := Output{Duration: time.Since(start)}

	if killedByTimeout(runCtx, err) {
		logger.Printf("Compiler killed after %s", inv.Timeout)
		return out, &InvocationError{Command: cmdLine, Err: fmt.Errorf("%w after %s", ErrTimeout, inv.Timeout)}
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	default:
		return out, &InvocationError{Command: cmdLine, Err: fmt.Errorf("failed to run compiler: %w", err)}
	}

	if out.Stdout, err = DecodeOutput("stdout", stdout.Bytes()); err != nil {
		return out, withCommand(err, cmdLine)
	}
	if out.Stderr, err = DecodeOutput("stderr", stderr.Bytes()); err != nil {
		return out, withCommand(err, cmdLine)
	}
	logger.Printf("Compiler exited with status %d after %s", out.ExitCode, out.Duration)
	return out, nil
}

func withCommand(err error, cmdLine string) error {
	var ie *InvocationError
	if errors.As(err, &ie) && ie.Command == "" {
		ie.Command = cmdLine
	}
	return err
}

// killedByTimeout reports whether a run that ended with runErr was stopped by the deadline of
// runCtx. A compiler that exited on its own is not a timeout even if the deadline passed since.
func killedByTimeout(runCtx context.Context, runErr error) bool {
	return runErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)
}
