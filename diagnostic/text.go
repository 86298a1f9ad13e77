package diagnostic

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	locatedLine   = regexp.MustCompile(`^((?:[A-Za-z]:)?[^\s:][^:]*):(\d+)(?::(\d+))?: (error|warning|note|help)(?:\[([^\]]*)\])?: (.*)$`)
	unlocatedLine = regexp.MustCompile(`^(error|warning|note|help|failure-note)(?:\[([^\]]*)\])?: (.*)$`)
	// arrowLine is the location line rustc prints below an unlocated header.
	arrowLine = regexp.MustCompile(`^\s*--> (.+?):(\d+):(\d+)$`)
	// summaryMessage matches the closing remarks of a compilation, which are not diagnostics.
	summaryMessage = regexp.MustCompile(`^(aborting due to |\d+ warnings? emitted|For more information about )`)
)

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func decodeText(text string) Decoded {
	var d Decoded
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if text == "" {
		lines = nil
	}
	// pending is the index of the last unlocated header, which an arrow line may still locate.
	pending := -1
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if m := locatedLine.FindStringSubmatch(line); m != nil {
			level, _ := ParseLevel(m[4])
			d.Diagnostics = append(d.Diagnostics, Diagnostic{
				Level:   level,
				File:    m[1],
				Line:    atoi(m[2]),
				Column:  atoi(m[3]),
				Code:    m[5],
				Message: m[6],
			})
			pending = -1
			continue
		}
		if m := unlocatedLine.FindStringSubmatch(line); m != nil && !summaryMessage.MatchString(m[3]) {
			level, _ := ParseLevel(m[1])
			d.Diagnostics = append(d.Diagnostics, Diagnostic{Level: level, Code: m[2], Message: m[3]})
			pending = len(d.Diagnostics) - 1
			continue
		}
		if m := arrowLine.FindStringSubmatch(line); m != nil && pending >= 0 {
			diag := &d.Diagnostics[pending]
			diag.File, diag.Line, diag.Column = m[1], atoi(m[2]), atoi(m[3])
			pending = -1
		}
		d.Raw = append(d.Raw, line)
	}
	return d
}
