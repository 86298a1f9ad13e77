package annotation

import (
	"fmt"
	"strconv"
	"strings"
)

// Platform describes where the compiler runs and what it targets, for "ignore-" and "only-"
// conditions.
type Platform struct {
	Host     string
	Target   string
	Bitwidth int
}

// ConditionKind identifies what a Condition tests.
type ConditionKind int

const (
	// ConditionHost holds if Value is a substring of the host triple.
	ConditionHost ConditionKind = iota
	// ConditionTarget holds if Value is a substring of the target triple.
	ConditionTarget
	// ConditionBitwidth holds if the target pointer width equals Bits.
	ConditionBitwidth
	// ConditionOnHost holds if the target is the host.
	ConditionOnHost
)

// Condition is the argument of an "ignore-" or "only-" command.
type Condition struct {
	Kind  ConditionKind
	Value string
	Bits  int
}

func parseCondition(c string) (Condition, error) {
	switch {
	case c == "on-host":
		return Condition{Kind: ConditionOnHost}, nil
	case strings.HasSuffix(c, "bit"):
		bits, err := strconv.Atoi(strings.TrimSuffix(c, "bit"))
		if err != nil {
			return Condition{}, fmt.Errorf("invalid ignore/only filter ending in 'bit': %q is not a valid bitwidth", c)
		}
		return Condition{Kind: ConditionBitwidth, Bits: bits}, nil
	case strings.HasPrefix(c, "target-"):
		return Condition{Kind: ConditionTarget, Value: strings.TrimPrefix(c, "target-")}, nil
	case strings.HasPrefix(c, "host-"):
		return Condition{Kind: ConditionHost, Value: strings.TrimPrefix(c, "host-")}, nil
	}
	return Condition{}, fmt.Errorf("`%s` is not a valid condition, expected `on-host`, /[0-9]+bit/, /host-.*/, or /target-.*/", c)
}

// Holds evaluates the condition on p.
func (c Condition) Holds(p Platform) bool {
	switch c.Kind {
	case ConditionHost:
		return strings.Contains(p.Host, c.Value)
	case ConditionTarget:
		return strings.Contains(p.Target, c.Value)
	case ConditionBitwidth:
		return p.Bitwidth == c.Bits
	case ConditionOnHost:
		return p.Target == "" || p.Target == p.Host
	}
	return false
}

func (c Condition) String() string {
	switch c.Kind {
	case ConditionHost:
		return "host-" + c.Value
	case ConditionTarget:
		return "target-" + c.Value
	case ConditionBitwidth:
		return fmt.Sprintf("%dbit", c.Bits)
	}
	return "on-host"
}

// IgnoreReason returns a non-empty explanation if rev should not run on p: any "ignore-" condition
// holds, or any "only-" condition does not.
func (rev Revision) IgnoreReason(p Platform) string {
	for _, c := range rev.Ignore {
		if c.Holds(p) {
			return fmt.Sprintf("ignored on this platform (ignore-%s)", c)
		}
	}
	for _, c := range rev.Only {
		if !c.Holds(p) {
			return fmt.Sprintf("only runs when only-%s holds", c)
		}
	}
	return ""
}
