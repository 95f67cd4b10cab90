package tools

import (
	"fmt"
	"strings"

	"github.com/cairnsoft/ndiff/rule"
)

// FormatStyle defines formatting options
type FormatStyle int

const (
	FormatDefault  FormatStyle = iota // Standard listing
	FormatCompact                     // One line per rule, no bound or register-op lines
	FormatExpanded                    // Bounds and register ops on their own lines
)

// FormatOptions controls formatter behavior
type FormatOptions struct {
	Style       FormatStyle
	IndexColumn int // Width of the rule-index column
	RangeColumn int // Width of the rows/cols columns
	CmdColumn   int // Width of the command-word column
	ShowBounds  bool
	ShowOps     bool
}

// DefaultFormatOptions returns default formatter options
func DefaultFormatOptions() *FormatOptions {
	return &FormatOptions{
		Style:       FormatDefault,
		IndexColumn: 4,
		RangeColumn: 10,
		CmdColumn:   20,
		ShowBounds:  true,
		ShowOps:     true,
	}
}

// CompactFormatOptions returns options for compact formatting
func CompactFormatOptions() *FormatOptions {
	opts := DefaultFormatOptions()
	opts.Style = FormatCompact
	opts.ShowBounds = false
	opts.ShowOps = false
	return opts
}

// ExpandedFormatOptions returns options for expanded formatting
func ExpandedFormatOptions() *FormatOptions {
	opts := DefaultFormatOptions()
	opts.Style = FormatExpanded
	return opts
}

// FormatRules renders a rule set as a human-readable listing.
func FormatRules(rules []rule.Rule, registers int, opts *FormatOptions) string {
	if opts == nil {
		opts = DefaultFormatOptions()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "registers: %d, rules: %d\n", registers, len(rules))
	if len(rules) == 0 {
		return b.String()
	}
	fmt.Fprintf(&b, "%-*s %-*s %-*s %-*s %s\n",
		opts.IndexColumn, "#",
		opts.RangeColumn, "rows",
		opts.RangeColumn, "cols",
		opts.CmdColumn, "cmd",
		"tag")

	for _, r := range rules {
		fmt.Fprintf(&b, "%-*d %-*s %-*s %-*s %s\n",
			opts.IndexColumn, r.Index,
			opts.RangeColumn, sliceString(r.Rows),
			opts.RangeColumn, sliceString(r.Column),
			opts.CmdColumn, cmdString(r),
			tagString(r))

		if opts.Style == FormatCompact {
			continue
		}
		if opts.ShowBounds {
			for _, bd := range boundLines(r) {
				indent(&b, opts, bd)
			}
		}
		if opts.ShowOps {
			for _, op := range r.Ops {
				indent(&b, opts, fmt.Sprintf("R%d = R%d %s R%d", op.Dst, op.Src, opString(op.Op), op.Src2))
			}
		}
		if opts.Style == FormatExpanded {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func indent(b *strings.Builder, opts *FormatOptions, line string) {
	fmt.Fprintf(b, "%-*s %s\n", opts.IndexColumn, "", line)
}

func sliceString(c rule.ColumnSlice) string {
	if c.Full || c == (rule.ColumnSlice{}) {
		return "*"
	}
	stride := c.Stride
	if stride <= 0 {
		stride = 1
	}
	if stride == 1 {
		if c.End == c.Start+1 {
			return fmt.Sprintf("%d", c.Start)
		}
		return fmt.Sprintf("%d-%d", c.Start, c.End)
	}
	return fmt.Sprintf("%d-%d/%d", c.Start, c.End, stride)
}

// cmdString reassembles the command words a rule would carry in its
// file entry, in a fixed order.
func cmdString(r rule.Rule) string {
	var words []string
	switch r.Action {
	case rule.ActionSkip:
		words = append(words, "skip")
	case rule.ActionGotoTag:
		words = append(words, "goto")
	case rule.ActionGotoNum:
		words = append(words, "gonum")
	}
	if r.Tolerance.Abs {
		words = append(words, "abs")
	}
	if r.Tolerance.Rel {
		words = append(words, "rel")
	}
	if r.Tolerance.Dig {
		words = append(words, "dig")
	}
	if r.Tolerance.Any {
		words = append(words, "any")
	}
	flagWords := []struct {
		on   bool
		name string
	}{
		{r.Flags.Equal, "equ"}, {r.Flags.Ignore, "ign"}, {r.Flags.Omit, "omit"},
		{r.Flags.IStr, "istr"}, {r.Flags.Trace, "trace"}, {r.Flags.TraceR, "tracer"},
		{r.Flags.NoFail, "nofail"}, {r.Flags.OnFail, "onfail"}, {r.Flags.LHS, "lhs"},
		{r.Flags.RHS, "rhs"}, {r.Flags.Swap, "swap"}, {r.Flags.Save, "save"},
		{r.Flags.Group, "sgg"}, {r.Flags.TagReg, "gtoreg"}, {r.Flags.Blank, "blank"},
	}
	for _, w := range flagWords {
		if w.on {
			words = append(words, w.name)
		}
	}
	if len(words) == 0 {
		return "-"
	}
	return strings.Join(words, " ")
}

func tagString(r rule.Rule) string {
	if r.Tag == "" {
		return ""
	}
	return fmt.Sprintf("%q", r.Tag)
}

// boundLines renders the configured tolerance bounds, one metric per
// line, skipping metrics the rule doesn't request.
func boundLines(r rule.Rule) []string {
	var lines []string
	add := func(name string, on bool, upper, lower rule.Bound) {
		if !on {
			return
		}
		lines = append(lines, fmt.Sprintf("%s in [%s, %s]", name, boundString(lower), boundString(upper)))
	}
	add("abs", r.Tolerance.Abs, r.Abs, r.AbsLower)
	add("rel", r.Tolerance.Rel, r.Rel, r.RelLower)
	add("dig", r.Tolerance.Dig, r.Dig, r.DigLower)
	if r.Scale.Value != 0 && r.Scale.Value != 1 || r.Scale.Reg != 0 {
		lines = append(lines, fmt.Sprintf("scale %s", boundString(r.Scale)))
	}
	if r.Offset.Value != 0 || r.Offset.Reg != 0 {
		lines = append(lines, fmt.Sprintf("offset %s", boundString(r.Offset)))
	}
	return lines
}

func boundString(b rule.Bound) string {
	if b.Reg > 0 {
		return fmt.Sprintf("R%d", b.Reg)
	}
	return fmt.Sprintf("%g", b.Value)
}

func opString(op rule.RegOpKind) string {
	switch op {
	case rule.RegAdd:
		return "+"
	case rule.RegSub:
		return "-"
	case rule.RegMul:
		return "*"
	case rule.RegDiv:
		return "/"
	case rule.RegMin:
		return "min"
	case rule.RegMax:
		return "max"
	case rule.RegPow:
		return "pow"
	case rule.RegMod:
		return "mod"
	default:
		return "?"
	}
}
