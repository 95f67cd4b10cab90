// Package tools provides development utilities for rule files: a linter
// that flags mistakes a rule file can carry without failing to parse,
// and a formatter that renders a rule set as an aligned listing.
package tools

import (
	"fmt"

	"github.com/cairnsoft/ndiff/rule"
)

// LintLevel represents the severity of a lint issue
type LintLevel int

const (
	LintError   LintLevel = iota // Rules that cannot work as written
	LintWarning                  // Rules that likely don't do what was meant
	LintInfo                     // Suggestions, style recommendations
)

func (l LintLevel) String() string {
	switch l {
	case LintError:
		return "error"
	case LintWarning:
		return "warning"
	case LintInfo:
		return "info"
	default:
		return "unknown"
	}
}

// LintIssue represents a single lint finding
type LintIssue struct {
	Level   LintLevel
	Rule    int // ordinal index of the offending rule
	Message string
	Code    string // Issue code like "MISSING_TAG", "REG_RANGE"
}

func (i *LintIssue) String() string {
	return fmt.Sprintf("rule %d: %s: %s [%s]", i.Rule, i.Level, i.Message, i.Code)
}

// LintOptions controls linter behavior
type LintOptions struct {
	Strict        bool // Treat warnings as errors
	CheckUnused   bool // Check for registers written but never read
	CheckReserved bool // Check for writes into the reserved register range
	CheckBounds   bool // Check tolerance bound ordering and zero bounds
}

// DefaultLintOptions returns default linter options
func DefaultLintOptions() *LintOptions {
	return &LintOptions{
		Strict:        false,
		CheckUnused:   true,
		CheckReserved: true,
		CheckBounds:   true,
	}
}

// Linter analyzes a rule set for issues
type Linter struct {
	options *LintOptions
	issues  []*LintIssue

	// Analysis state
	registers int
	written   map[int][]int // user register -> rules that write it
	read      map[int]bool  // user register -> read anywhere
}

// NewLinter creates a new linter
func NewLinter(options *LintOptions) *Linter {
	if options == nil {
		options = DefaultLintOptions()
	}
	return &Linter{options: options}
}

// Lint checks every rule and returns the issues found, errors first.
// registers is the configured register-file size.
func (l *Linter) Lint(rules []rule.Rule, registers int) []*LintIssue {
	l.issues = nil
	l.registers = registers
	l.written = make(map[int][]int)
	l.read = make(map[int]bool)

	for _, r := range rules {
		l.lintRule(r)
	}
	if l.options.CheckUnused {
		l.lintUnusedRegisters()
	}

	if l.options.Strict {
		for _, issue := range l.issues {
			if issue.Level == LintWarning {
				issue.Level = LintError
			}
		}
	}

	// Errors first, then warnings, then info; stable within a level.
	ordered := make([]*LintIssue, 0, len(l.issues))
	for _, level := range []LintLevel{LintError, LintWarning, LintInfo} {
		for _, issue := range l.issues {
			if issue.Level == level {
				ordered = append(ordered, issue)
			}
		}
	}
	return ordered
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []*LintIssue) bool {
	for _, issue := range issues {
		if issue.Level == LintError {
			return true
		}
	}
	return false
}

func (l *Linter) addIssue(level LintLevel, ruleIdx int, code, format string, args ...any) {
	l.issues = append(l.issues, &LintIssue{
		Level:   level,
		Rule:    ruleIdx,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

func (l *Linter) lintRule(r rule.Rule) {
	switch r.Action {
	case rule.ActionGotoTag:
		if r.Tag == "" && !r.Flags.TagReg {
			l.addIssue(LintError, r.Index, "MISSING_TAG", "goto rule has no tag to search for")
		}
	case rule.ActionGotoNum:
		if r.Tag == "" && !r.Flags.TagReg {
			l.addIssue(LintError, r.Index, "MISSING_TAG", "gonum rule has no tag value to search for")
		}
		if r.Column.IsFull() && !r.Flags.Equal {
			l.addIssue(LintWarning, r.Index, "GONUM_FULL_COL",
				"gonum over every column matches the first number on any line")
		}
	}

	if r.Flags.Omit && r.Tag == "" {
		l.addIssue(LintWarning, r.Index, "OMIT_NO_TAG", "omit flag without a tag never matches")
	}

	if !r.Rows.Full && r.Rows.End > 0 && r.Rows.Start > r.Rows.End {
		l.addIssue(LintError, r.Index, "BAD_RANGE", "row window start %d is past end %d", r.Rows.Start, r.Rows.End)
	}
	if !r.Column.Full && r.Column.End > 0 && r.Column.Start > r.Column.End {
		l.addIssue(LintError, r.Index, "BAD_RANGE", "column slice start %d is past end %d", r.Column.Start, r.Column.End)
	}

	if r.Tolerance.Any {
		metrics := 0
		for _, on := range []bool{r.Tolerance.Abs, r.Tolerance.Rel, r.Tolerance.Dig} {
			if on {
				metrics++
			}
		}
		if metrics < 2 {
			l.addIssue(LintWarning, r.Index, "ANY_SINGLE",
				"any needs at least two tolerance metrics to choose between")
		}
	}

	if l.options.CheckBounds {
		l.lintBounds(r, "abs", r.Tolerance.Abs, r.Abs, r.AbsLower)
		l.lintBounds(r, "rel", r.Tolerance.Rel, r.Rel, r.RelLower)
		l.lintBounds(r, "dig", r.Tolerance.Dig, r.Dig, r.DigLower)
	}

	l.lintRegisterRefs(r)
}

func (l *Linter) lintBounds(r rule.Rule, name string, requested bool, upper, lower rule.Bound) {
	if !requested {
		return
	}
	if upper.Value == 0 && upper.Reg == 0 {
		l.addIssue(LintWarning, r.Index, "ZERO_BOUND",
			"%s tolerance requested with a zero bound; only exact matches pass", name)
	}
	if upper.Reg == 0 && lower.Reg == 0 && lower.Value > upper.Value {
		l.addIssue(LintError, r.Index, "BOUND_ORDER",
			"%s lower bound %g exceeds upper bound %g", name, lower.Value, upper.Value)
	}
}

// lintRegisterRefs validates every register index the rule mentions and
// records reads/writes for the unused-register pass.
func (l *Linter) lintRegisterRefs(r rule.Rule) {
	reads := []rule.Bound{
		r.Abs, r.AbsLower, r.Rel, r.RelLower, r.Dig, r.DigLower,
		r.Scale, r.Offset, r.LHSLiteral, r.RHSLiteral,
	}
	for _, b := range reads {
		if b.Reg == 0 {
			continue
		}
		if !l.regInRange(b.Reg) {
			l.addIssue(LintError, r.Index, "REG_RANGE",
				"register %d out of range (file holds %d)", b.Reg, l.registers)
			continue
		}
		l.read[b.Reg] = true
	}

	for _, op := range r.Ops {
		for _, src := range []int{op.Src, op.Src2} {
			if src == 0 {
				continue
			}
			if !l.regInRange(src) {
				l.addIssue(LintError, r.Index, "REG_RANGE",
					"register %d out of range (file holds %d)", src, l.registers)
				continue
			}
			l.read[src] = true
		}
		if !l.regInRange(op.Dst) {
			l.addIssue(LintError, r.Index, "REG_RANGE",
				"register %d out of range (file holds %d)", op.Dst, l.registers)
			continue
		}
		if l.options.CheckReserved && op.Dst >= 1 && op.Dst <= 9 {
			l.addIssue(LintWarning, r.Index, "RESERVED_REG",
				"register %d is overwritten by the comparator on every pair", op.Dst)
		}
		if op.Dst >= 10 {
			l.written[op.Dst] = append(l.written[op.Dst], r.Index)
		}
	}
}

func (l *Linter) regInRange(idx int) bool {
	return idx >= 1 && idx <= l.registers
}

// lintUnusedRegisters flags user registers that rules write but nothing
// ever reads back.
func (l *Linter) lintUnusedRegisters() {
	for reg, writers := range l.written {
		if !l.read[reg] {
			l.addIssue(LintInfo, writers[0], "UNUSED_REG",
				"register %d is written but never read", reg)
		}
	}
}
