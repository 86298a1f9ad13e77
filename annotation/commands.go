package annotation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/mattn/go-shellwords"
)

type commandFunc func(p *parser, r *Revisioned, args string)

var commands = map[string]commandFunc{
	"compile-flags": func(p *parser, r *Revisioned, args string) {
		words := shellwords.NewParser()
		flags, err := words.Parse(args)
		if err != nil {
			p.error(fmt.Sprintf("cannot split compile-flags `%s`: %s", args, err))
			return
		}
		if words.Position >= 0 {
			p.error(fmt.Sprintf("compile-flags contain an unquoted shell operator at offset %d", words.Position))
			return
		}
		r.CompileFlags = append(r.CompileFlags, flags...)
	},
	"env": func(p *parser, r *Revisioned, args string) {
		for _, kv := range strings.Fields(args) {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				p.error(fmt.Sprintf("environment variable `%s` must be of the form KEY=VALUE", kv))
				continue
			}
			r.Env = append(r.Env, EnvVar{Key: k, Value: v})
		}
	},
	"normalize-stderr": func(p *parser, r *Revisioned, args string) {
		p.parseNormalize(r, args)
	},
	"error-in-other-file": func(p *parser, r *Revisioned, args string) {
		if args == "" {
			p.error("`error-in-other-file` needs a pattern")
			return
		}
		if pattern := p.parsePattern(args); pattern != nil {
			r.OtherFiles = append(r.OtherFiles, OtherFileMatch{Pattern: pattern, Line: p.line})
		}
	},
	"require-annotations-for-level": func(p *parser, r *Revisioned, args string) {
		level, ok := p.parseRequiredLevel(args)
		if !ok {
			return
		}
		if r.RequireLevel != nil {
			p.error("cannot specify `require-annotations-for-level` twice")
			return
		}
		r.RequireLevel = &level
		r.requireLevelLine = p.line
	},
	"check-pass": func(p *parser, r *Revisioned, args string) {
		p.setMode(r, ModePass)
	},
	"check-fail": func(p *parser, r *Revisioned, args string) {
		p.setMode(r, ModeFail)
	},
	"run-fix": func(p *parser, r *Revisioned, args string) {
		if r.RunFix {
			p.error("cannot specify `run-fix` twice")
			return
		}
		r.RunFix = true
	},
	"stderr-per-bitwidth": func(p *parser, r *Revisioned, args string) {
		if r.StderrPerBitwidth {
			p.error("cannot specify `stderr-per-bitwidth` twice")
			return
		}
		r.StderrPerBitwidth = true
	},
}

// conditionPrefixes are the command prefixes that take a platform condition.
var conditionPrefixes = []string{"ignore-", "only-"}

func (p *parser) runCommand(r *Revisioned, name, args string) {
	if cmd, ok := commands[name]; ok {
		cmd(p, r, args)
		return
	}
	for _, prefix := range conditionPrefixes {
		cond, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		c, err := parseCondition(cond)
		if err != nil {
			p.error(err.Error())
			return
		}
		if prefix == "ignore-" {
			r.Ignore = append(r.Ignore, c)
		} else {
			r.Only = append(r.Only, c)
		}
		return
	}
	msg := fmt.Sprintf("`%s` is not a command known to the test harness", name)
	if s := suggestCommand(name); s != "" {
		msg += fmt.Sprintf(", did you mean `%s`?", s)
	}
	p.error(msg)
}

// suggestCommand returns the known command closest to name, or "" if nothing is close enough.
func suggestCommand(name string) string {
	names := []string{"revisions"}
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	best, bestDist := "", 0
	for _, n := range names {
		d := levenshtein.ComputeDistance(name, n)
		if best == "" || d < bestDist {
			best, bestDist = n, d
		}
	}
	if bestDist > len(name)/3+1 {
		return ""
	}
	return best
}
