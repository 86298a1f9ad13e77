// Package config loads the harness configuration from a YAML or TOML file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/launchdarkly/diagnostic-contract-tests/annotation"
	"github.com/launchdarkly/diagnostic-contract-tests/diagnostic"
	"github.com/launchdarkly/diagnostic-contract-tests/normalize"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable that overrides a setting.
const EnvPrefix = "UI_TEST_"

// Compiler describes how to run the compiler under test. Exactly one of Program and ServiceURL
// must be set.
type Compiler struct {
	Program string `yaml:"program" toml:"program" env:"COMPILER"`
	// Args come before the fixture's own flags and may use the {fixture}, {scratch} and
	// {revision} placeholders.
	Args       []string          `yaml:"args" toml:"args"`
	Env        map[string]string `yaml:"env" toml:"env" env:"COMPILER_ENV"`
	ServiceURL string            `yaml:"service_url" toml:"service_url" env:"SERVICE_URL"`
	// Format is "text" or "json".
	Format string `yaml:"format" toml:"format" env:"FORMAT"`
}

// NormalizeRule is a configured normalization rule. The replacement may refer to capture groups.
type NormalizeRule struct {
	Pattern     string `yaml:"pattern" toml:"pattern"`
	Replacement string `yaml:"replacement" toml:"replacement"`
}

type Config struct {
	Compiler Compiler `yaml:"compiler" toml:"compiler"`
	// Root is the fixture directory. A relative root in a config file is relative to the file.
	Root       string   `yaml:"root" toml:"root" env:"ROOT"`
	Extensions []string `yaml:"extensions" toml:"extensions" env:"EXTENSIONS"`
	// Parallelism of 0 means one case per CPU.
	Parallelism int           `yaml:"parallelism" toml:"parallelism" env:"JOBS"`
	Timeout     time.Duration `yaml:"timeout" toml:"timeout" env:"TIMEOUT"`
	// SeverityFloor is a level name, or "auto" for the lowest level the fixture annotates.
	SeverityFloor string `yaml:"severity_floor" toml:"severity_floor" env:"SEVERITY_FLOOR"`
	// Mode is the exit status expected of fixtures that do not declare one: "fail" or "pass".
	Mode        string          `yaml:"mode" toml:"mode" env:"MODE"`
	Bless       bool            `yaml:"bless" toml:"bless" env:"BLESS"`
	FailFast    bool            `yaml:"fail_fast" toml:"fail_fast" env:"FAIL_FAST"`
	VerifyFixes bool            `yaml:"verify_fixes" toml:"verify_fixes" env:"VERIFY_FIXES"`
	Normalize   []NormalizeRule `yaml:"normalize" toml:"normalize"`
	ScratchRoot string          `yaml:"scratch_root" toml:"scratch_root" env:"SCRATCH_ROOT"`
	KeepScratch bool            `yaml:"keep_scratch" toml:"keep_scratch" env:"KEEP_SCRATCH"`
	Host        string          `yaml:"host" toml:"host" env:"HOST"`
	Target      string          `yaml:"target" toml:"target" env:"TARGET"`
	Bitwidth    int             `yaml:"bitwidth" toml:"bitwidth" env:"BITWIDTH"`
	LogLevel    string          `yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`
}

func Default() Config {
	host := runtime.GOARCH + "-" + runtime.GOOS
	return Config{
		Compiler:      Compiler{Format: string(diagnostic.FormatText)},
		Root:          "tests/ui",
		Extensions:    []string{".rs"},
		Timeout:       60 * time.Second,
		SeverityFloor: "warning",
		Mode:          "fail",
		ScratchRoot:   filepath.Join(os.TempDir(), "ui-test"),
		Host:          host,
		Target:        host,
		Bitwidth:      strconv.IntSize,
		LogLevel:      "info",
	}
}

// Load starts from Default, applies the file at path if it exists, and then the UI_TEST_*
// environment variables. The result is not validated, since command line flags may still
// override it; call Validate once they have been applied.
func Load(path string) (Config, error) {
	return load(path, nil)
}

// load is Load with an explicit environment; nil means the process environment.
func load(path string, environ map[string]string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := decode(path, data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			if cfg.Root != "" && !filepath.IsAbs(cfg.Root) {
				cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
			}
		}
	}
	if err := env.ParseWithFuncs(&cfg, envParsers, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return cfg, fmt.Errorf("invalid environment override: %w", err)
	}
	return cfg, nil
}

var envParsers = map[reflect.Type]env.ParserFunc{
	reflect.TypeOf(map[string]string(nil)): parseStringMap,
}

// parseStringMap reads "K1:V1,K2:V2". Values may contain colons.
func parseStringMap(value string) (interface{}, error) {
	m := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, ":")
		if !ok || k == "" {
			return nil, fmt.Errorf("%q is not a KEY:VALUE pair", pair)
		}
		m[k] = v
	}
	return m, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".toml":
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			var keys []string
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return fmt.Errorf("unknown settings: %s", strings.Join(keys, ", "))
		}
		return nil
	}
	return fmt.Errorf("unsupported config file type %q, expected .yaml, .yml or .toml", filepath.Ext(path))
}

// Validate checks the settings that can be checked without running anything.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	switch {
	case c.Compiler.Program == "" && c.Compiler.ServiceURL == "":
		add("no compiler configured: set compiler.program or compiler.service_url")
	case c.Compiler.Program != "" && c.Compiler.ServiceURL != "":
		add("compiler.program and compiler.service_url are mutually exclusive")
	}
	if _, err := diagnostic.ParseFormat(c.Compiler.Format); err != nil {
		add("%s", err)
	}
	if c.Root == "" {
		add("root must not be empty")
	}
	if len(c.Extensions) == 0 {
		add("at least one fixture extension is required")
	}
	if c.Parallelism < 0 {
		add("parallelism must not be negative")
	}
	if c.Timeout < 0 {
		add("timeout must not be negative")
	}
	if c.SeverityFloor != "auto" && c.SeverityFloor != "" {
		if _, err := diagnostic.ParseLevel(c.SeverityFloor); err != nil {
			add("severity_floor: %s", err)
		}
	}
	if _, err := c.DefaultMode(); err != nil {
		add("%s", err)
	}
	if _, err := c.NormalizeRules(); err != nil {
		add("%s", err)
	}
	if c.Bitwidth < 0 {
		add("bitwidth must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// DefaultMode is the exit status expected of fixtures that do not declare one.
func (c Config) DefaultMode() (annotation.Mode, error) {
	switch c.Mode {
	case "", "fail":
		return annotation.ModeFail, nil
	case "pass":
		return annotation.ModePass, nil
	}
	return annotation.ModeDefault, fmt.Errorf("mode must be \"fail\" or \"pass\", not %q", c.Mode)
}

// NormalizeRules compiles the configured rules, in order.
func (c Config) NormalizeRules() (normalize.Rules, error) {
	var rules normalize.Rules
	for _, r := range c.Normalize {
		rule, err := normalize.NewRule(r.Pattern, r.Replacement)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (c Config) Platform() annotation.Platform {
	return annotation.Platform{Host: c.Host, Target: c.Target, Bitwidth: c.Bitwidth}
}

// CompilerEnv returns Compiler.Env as KEY=VALUE pairs sorted by key.
func (c Config) CompilerEnv() []string {
	var ret []string
	for k, v := range c.Compiler.Env {
		ret = append(ret, k+"="+v)
	}
	sort.Strings(ret)
	return ret
}
