// Package normalize rewrites compiler output to remove environment-dependent noise before it is
// compared with expectations.
//
// Rules are an ordered list. Each rule is applied to the whole text before the next one runs, so
// a later rule always sees the output of every earlier rule. The order is part of the contract:
// built-in rules come first, then rules from the configuration file, then rules declared by the
// fixture itself.
package normalize

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Rule replaces every match of Pattern. If Literal is false, Replacement may refer to capture
// groups with $1 or ${name} (use $$ for a literal dollar sign). Built-in rules may instead
// rewrite each match with Transform.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
	Literal     bool
	Transform   func(match string) string
}

// NewRule compiles pattern into a Rule that expands capture groups in replacement.
func NewRule(pattern, replacement string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid normalization pattern %q: %w", pattern, err)
	}
	return Rule{Pattern: re, Replacement: replacement}, nil
}

// LiteralRule returns a Rule that replaces every occurrence of the exact string from.
func LiteralRule(from, to string) Rule {
	return Rule{Pattern: regexp.MustCompile(regexp.QuoteMeta(from)), Replacement: to, Literal: true}
}

func (r Rule) apply(text string) string {
	if r.Transform != nil {
		return r.Pattern.ReplaceAllStringFunc(text, r.Transform)
	}
	if r.Literal {
		return r.Pattern.ReplaceAllLiteralString(text, r.Replacement)
	}
	return r.Pattern.ReplaceAllString(text, r.Replacement)
}

func (r Rule) String() string {
	if r.Transform != nil {
		return fmt.Sprintf("%q -> <builtin>", r.Pattern.String())
	}
	return fmt.Sprintf("%q -> %q", r.Pattern.String(), r.Replacement)
}

// Rules is an ordered rule list.
type Rules []Rule

// Apply runs every rule over text, in order.
func (rs Rules) Apply(text string) string {
	for _, r := range rs {
		text = r.apply(text)
	}
	return text
}

// Concat returns a new list holding the rules of rs followed by the rules of each of more.
func (rs Rules) Concat(more ...Rules) Rules {
	out := append(Rules(nil), rs...)
	for _, m := range more {
		out = append(out, m...)
	}
	return out
}

// Context holds the environment-specific values the built-in rules remove.
type Context struct {
	// TempDir is the scratch directory of the test case.
	TempDir string
	// FixturePath is the absolute path of the fixture being compiled.
	FixturePath string
	// RootDir is the root of the fixture tree; paths under it are made relative to it.
	RootDir string
}

// windowsPath matches a run of path-like characters joined by backslashes.
var windowsPath = regexp.MustCompile(`(?:[\w.\-:$]+\\+)+[\w.\-$]+`)

var backslashes = regexp.MustCompile(`\\+`)

func slashSeparators(path string) string {
	return backslashes.ReplaceAllLiteralString(path, "/")
}

// Defaults returns the built-in rules for ctx:
//
//  1. backslash path separators become "/";
//  2. the scratch directory becomes "$TMP";
//  3. the fixture's directory becomes "$DIR";
//  4. the root directory prefix is stripped, leaving root-relative paths.
//
// Every rule is idempotent, so normalizing normalized text changes nothing.
func Defaults(ctx Context) Rules {
	rules := Rules{{Pattern: windowsPath, Transform: slashSeparators}}
	if dir := cleanPath(ctx.TempDir); dir != "" {
		rules = append(rules, LiteralRule(dir, "$TMP"))
	}
	if ctx.FixturePath != "" {
		if dir := cleanPath(filepath.Dir(ctx.FixturePath)); dir != "" {
			rules = append(rules, LiteralRule(dir, "$DIR"))
		}
	}
	if root := cleanPath(ctx.RootDir); root != "" {
		rules = append(rules, LiteralRule(root+"/", ""))
	}
	return rules
}

// cleanPath returns p in the slash-separated form the separator rule produces, or "" for paths
// that would be meaningless as a prefix.
func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	p = filepath.ToSlash(filepath.Clean(p))
	p = strings.ReplaceAll(p, `\`, "/")
	if p == "." || p == "/" {
		return ""
	}
	return strings.TrimSuffix(p, "/")
}
