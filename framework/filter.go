package framework

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxSuggestions is how many names a filter that matched nothing suggests.
const maxSuggestions = 5

type RegexFilters struct {
	MustMatch    RegexList
	MustNotMatch RegexList
}

func (r RegexFilters) AsFilter(id TestID) bool {
	name := id.String()
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatch(name)) &&
		!r.MustNotMatch.AnyMatch(name)
}

// IsDefined reports whether any filter was given.
func (r RegexFilters) IsDefined() bool {
	return r.MustMatch.IsDefined() || r.MustNotMatch.IsDefined()
}

// Suggest ranks names by their edit distance to the MustMatch patterns, for a run in which the
// filters selected nothing. Each name is ranked by its distance to the closest pattern; ties
// keep the order of names.
func (r RegexFilters) Suggest(names []string) []string {
	if !r.MustMatch.IsDefined() {
		return nil
	}
	type ranked struct {
		name     string
		distance int
	}
	var all []ranked
	for _, name := range names {
		best := -1
		for _, p := range r.MustMatch.sources {
			if d := levenshtein.ComputeDistance(p, name); best < 0 || d < best {
				best = d
			}
		}
		all = append(all, ranked{name, best})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].distance < all[j].distance })
	var ret []string
	for i := 0; i < len(all) && i < maxSuggestions; i++ {
		ret = append(ret, all[i].name)
	}
	return ret
}

// RegexList holds patterns given on the command line. A value that is not a valid regular
// expression matches as a plain substring.
type RegexList struct {
	patterns []*regexp.Regexp
	sources  []string
}

func (r RegexList) String() string {
	var ss []string
	for _, p := range r.sources {
		ss = append(ss, `"`+p+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (r *RegexList) Set(value string) error {
	if value == "" {
		return fmt.Errorf("empty pattern")
	}
	rx, err := regexp.Compile(value)
	if err != nil {
		rx = regexp.MustCompile(regexp.QuoteMeta(value))
	}
	r.patterns = append(r.patterns, rx)
	r.sources = append(r.sources, value)
	return nil
}

// Type is called by the command line parser
func (r *RegexList) Type() string {
	return "pattern"
}

func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

func (r RegexList) AnyMatch(s string) bool {
	for _, p := range r.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// PrintFilterDescription tells the user which tests the filters will exclude.
func PrintFilterDescription(out io.Writer, filters RegexFilters) {
	if !filters.IsDefined() {
		return
	}
	fmt.Fprintln(out, "Some tests will be skipped based on the filter criteria for this test run:")
	if filters.MustMatch.IsDefined() {
		fmt.Fprintf(out, "  skip any not matching %s\n", filters.MustMatch)
	}
	if filters.MustNotMatch.IsDefined() {
		fmt.Fprintf(out, "  skip any matching %s\n", filters.MustNotMatch)
	}
	fmt.Fprintln(out)
}
