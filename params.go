package main

import (
	"fmt"

	"github.com/launchdarkly/diagnostic-contract-tests/config"
	"github.com/launchdarkly/diagnostic-contract-tests/framework"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const defaultConfigFile = "ui-test.yaml"

type commandParams struct {
	configPath       string
	filters          framework.RegexFilters
	bless            bool
	jobs             int
	failFast         bool
	verifyFixes      bool
	color            string
	debug            bool
	debugAll         bool
	compiler         string
	serviceURL       string
	stopServiceAtEnd bool
	logLevel         string
}

func newRootCommand(params *commandParams, run func(cmd *cobra.Command) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui-test [flags]",
		Short: "Check compiler diagnostics against annotated fixtures",
		Long: `ui-test compiles every fixture under the configured root, and checks the
diagnostics the compiler reports against the //~ annotations in the fixture and
against golden .stderr and .stdout files next to it.

Settings come from the config file, then UI_TEST_* environment variables, then
the flags below.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&params.configPath, "config", defaultConfigFile, "config file (.yaml, .yml or .toml); a missing file means defaults")
	fs.Var(&params.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&params.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&params.bless, "bless", false, "rewrite golden files instead of comparing with them")
	fs.IntVarP(&params.jobs, "jobs", "j", 0, "number of tests to run at once (0 means one per CPU)")
	fs.BoolVar(&params.failFast, "fail-fast", false, "stop starting tests after the first failure")
	fs.BoolVar(&params.verifyFixes, "verify-fixes", false, "apply suggested fixes and recompile, for every test")
	fs.StringVar(&params.color, "color", "auto", "colored output: auto, on or off")
	fs.BoolVar(&params.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&params.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&params.compiler, "compiler", "", "compiler program to run")
	fs.StringVar(&params.serviceURL, "service-url", "", "URL of a compile service to use instead of a program")
	fs.BoolVar(&params.stopServiceAtEnd, "stop-service-at-end", false, "tell the compile service to exit after the test run")
	fs.StringVar(&params.logLevel, "log-level", "", "harness log level: debug, info, warn or error")
	return cmd
}

// apply copies the flags that were given on the command line over cfg.
func (p *commandParams) apply(cfg *config.Config, fs *pflag.FlagSet) {
	if fs.Changed("bless") {
		cfg.Bless = p.bless
	}
	if fs.Changed("jobs") {
		cfg.Parallelism = p.jobs
	}
	if fs.Changed("fail-fast") {
		cfg.FailFast = p.failFast
	}
	if fs.Changed("verify-fixes") {
		cfg.VerifyFixes = p.verifyFixes
	}
	if fs.Changed("compiler") {
		cfg.Compiler.Program = p.compiler
		cfg.Compiler.ServiceURL = ""
	}
	if fs.Changed("service-url") {
		cfg.Compiler.ServiceURL = p.serviceURL
		cfg.Compiler.Program = ""
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = p.logLevel
	}
	if p.debugAll {
		cfg.LogLevel = "debug"
	}
}

// colorEnabled resolves --color; auto means color only on a terminal.
func (p *commandParams) colorEnabled(isTerminal bool) (bool, error) {
	switch p.color {
	case "", "auto":
		return isTerminal, nil
	case "on", "always":
		return true, nil
	case "off", "never":
		return false, nil
	}
	return false, fmt.Errorf("invalid --color value %q, expected auto, on or off", p.color)
}
