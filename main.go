package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/launchdarkly/diagnostic-contract-tests/compiler"
	"github.com/launchdarkly/diagnostic-contract-tests/config"
	"github.com/launchdarkly/diagnostic-contract-tests/diagnostic"
	"github.com/launchdarkly/diagnostic-contract-tests/framework"
	"github.com/launchdarkly/diagnostic-contract-tests/golden"
	"github.com/launchdarkly/diagnostic-contract-tests/logging"
	"github.com/launchdarkly/diagnostic-contract-tests/uitests"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const statusQueryTimeout = time.Second * 10

// Exit statuses.
const (
	exitOK          = 0
	exitTestsFailed = 1
	exitEngineError = 2
)

// errTestsFailed is returned by the run function when the harness worked but tests did not pass.
var errTestsFailed = errors.New("tests failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var params commandParams
	cmd := newRootCommand(&params, func(cmd *cobra.Command) error {
		return runTests(cmd.Context(), cmd, &params, stdout)
	})
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errTestsFailed):
		return exitTestsFailed
	default:
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return exitEngineError
	}
}

func runTests(ctx context.Context, cmd *cobra.Command, params *commandParams, out io.Writer) error {
	cfg, err := config.Load(params.configPath)
	if err != nil {
		return err
	}
	params.apply(&cfg, cmd.Flags())
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Root, err = filepath.Abs(cfg.Root); err != nil {
		return err
	}

	useColor, err := params.colorEnabled(logging.IsTerminal(out))
	if err != nil {
		return err
	}
	color.NoColor = !useColor
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(out, level)
	logger.SetColor(useColor)

	invoker, cleanup, err := newInvoker(cfg, params, out, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	fixtures, err := uitests.Discover(cfg.Root, cfg.Extensions)
	if err != nil {
		return err
	}
	logger.Infof("Found %d fixtures under %s", len(fixtures), cfg.Root)

	suite, err := uitests.NewSuite(cfg, invoker, golden.DirStore{Root: cfg.Root}, logger)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	framework.PrintFilterDescription(out, params.filters)
	fmt.Fprintln(out, "Running test suite")

	scheduler := framework.Scheduler{
		Parallelism: cfg.Parallelism,
		FailFast:    cfg.FailFast,
		Filters:     params.filters,
		TestLogger: &ConsoleTestLogger{
			Out:                  out,
			DebugOutputOnFailure: params.debug || params.debugAll,
			DebugOutputOnSuccess: params.debugAll,
		},
	}
	results := scheduler.Run(ctx, suite.Cases(ctx, fixtures))

	printResults(out, results)
	if !results.OK() {
		return errTestsFailed
	}
	return nil
}

// newInvoker sets up the configured way of running the compiler. The returned cleanup function
// must be called at the end of the run.
func newInvoker(cfg config.Config, params *commandParams, out io.Writer, logger *logging.Logger) (compiler.Invoker, func(), error) {
	if cfg.Compiler.ServiceURL != "" {
		service, err := compiler.ConnectService(cfg.Compiler.ServiceURL, statusQueryTimeout, out)
		if err != nil {
			return nil, nil, fmt.Errorf("compile service error: %w", err)
		}
		format, err := diagnostic.ParseFormat(cfg.Compiler.Format)
		if err != nil {
			return nil, nil, err
		}
		if err := service.RequireFormat(format); err != nil {
			return nil, nil, err
		}
		cleanup := func() {}
		if params.stopServiceAtEnd {
			cleanup = func() {
				logger.Infof("Stopping compile service")
				if err := service.Stop(); err != nil {
					logger.Warnf("Failed to stop compile service: %s", err)
				}
			}
		}
		return service, cleanup, nil
	}

	program, err := exec.LookPath(cfg.Compiler.Program)
	if err != nil {
		return nil, nil, fmt.Errorf("no compiler: %w", err)
	}
	logger.Debugf("Compiler: %s", compiler.CommandLine(program, cfg.Compiler.Args))
	return compiler.ProcessInvoker{
		Program: program,
		Args:    cfg.Compiler.Args,
		Env:     cfg.CompilerEnv(),
	}, func() {}, nil
}
