package tools

import (
	"strings"
	"testing"

	"github.com/cairnsoft/ndiff/rule"
)

func lintOne(t *testing.T, r rule.Rule, registers int) []*LintIssue {
	t.Helper()
	return NewLinter(DefaultLintOptions()).Lint([]rule.Rule{r}, registers)
}

func hasCode(issues []*LintIssue, code string) bool {
	for _, i := range issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

func TestLintCleanRule(t *testing.T) {
	r := rule.Rule{
		Index:     1,
		Rows:      rule.ColumnSlice{Full: true},
		Column:    rule.ColumnSlice{Full: true},
		Tolerance: rule.Tolerance{Abs: true},
		Abs:       rule.Bound{Value: 1e-6},
		AbsLower:  rule.Bound{Value: -1e-6},
	}
	issues := lintOne(t, r, 100)
	if len(issues) != 0 {
		t.Errorf("clean rule produced issues: %v", issues)
	}
}

func TestLintGotoWithoutTag(t *testing.T) {
	r := rule.Rule{Index: 1, Rows: rule.ColumnSlice{Full: true}, Column: rule.ColumnSlice{Full: true}, Action: rule.ActionGotoTag}
	issues := lintOne(t, r, 100)
	if !hasCode(issues, "MISSING_TAG") {
		t.Errorf("expected MISSING_TAG, got %v", issues)
	}
	if !HasErrors(issues) {
		t.Error("a missing tag must be an error")
	}
}

func TestLintGotoTagRegisterIsAccepted(t *testing.T) {
	r := rule.Rule{
		Index: 1, Rows: rule.ColumnSlice{Full: true}, Column: rule.ColumnSlice{Full: true},
		Action: rule.ActionGotoTag, Flags: rule.Flags{TagReg: true},
	}
	if issues := lintOne(t, r, 100); hasCode(issues, "MISSING_TAG") {
		t.Errorf("gtoreg supplies the tag at run time, got %v", issues)
	}
}

func TestLintRegisterOutOfRange(t *testing.T) {
	r := rule.Rule{
		Index: 1, Rows: rule.ColumnSlice{Full: true}, Column: rule.ColumnSlice{Full: true},
		Tolerance: rule.Tolerance{Abs: true},
		Abs:       rule.Bound{Reg: 500},
	}
	issues := lintOne(t, r, 100)
	if !hasCode(issues, "REG_RANGE") {
		t.Errorf("expected REG_RANGE for register 500 of 100, got %v", issues)
	}
}

func TestLintReservedRegisterWrite(t *testing.T) {
	r := rule.Rule{
		Index: 1, Rows: rule.ColumnSlice{Full: true}, Column: rule.ColumnSlice{Full: true},
		Ops: []rule.RegOp{{Dst: 3, Src: 1, Src2: 2, Op: rule.RegAdd}},
	}
	issues := lintOne(t, r, 100)
	if !hasCode(issues, "RESERVED_REG") {
		t.Errorf("expected RESERVED_REG for a write to R3, got %v", issues)
	}
}

func TestLintBoundOrder(t *testing.T) {
	r := rule.Rule{
		Index: 1, Rows: rule.ColumnSlice{Full: true}, Column: rule.ColumnSlice{Full: true},
		Tolerance: rule.Tolerance{Rel: true},
		Rel:       rule.Bound{Value: 1e-6},
		RelLower:  rule.Bound{Value: 1e-3},
	}
	issues := lintOne(t, r, 100)
	if !hasCode(issues, "BOUND_ORDER") {
		t.Errorf("expected BOUND_ORDER, got %v", issues)
	}
}

func TestLintAnyWithSingleMetric(t *testing.T) {
	r := rule.Rule{
		Index: 1, Rows: rule.ColumnSlice{Full: true}, Column: rule.ColumnSlice{Full: true},
		Tolerance: rule.Tolerance{Abs: true, Any: true},
		Abs:       rule.Bound{Value: 1e-6},
	}
	issues := lintOne(t, r, 100)
	if !hasCode(issues, "ANY_SINGLE") {
		t.Errorf("expected ANY_SINGLE, got %v", issues)
	}
}

func TestLintUnusedRegister(t *testing.T) {
	r := rule.Rule{
		Index: 1, Rows: rule.ColumnSlice{Full: true}, Column: rule.ColumnSlice{Full: true},
		Flags: rule.Flags{Save: true},
		Ops:   []rule.RegOp{{Dst: 10, Src: 1, Src2: 2, Op: rule.RegAdd}},
	}
	issues := lintOne(t, r, 100)
	if !hasCode(issues, "UNUSED_REG") {
		t.Errorf("expected UNUSED_REG for write-only R10, got %v", issues)
	}
}

func TestLintReadMakesRegisterUsed(t *testing.T) {
	rules := []rule.Rule{
		{
			Index: 1, Rows: rule.ColumnSlice{Full: true}, Column: rule.ColumnSlice{Full: true},
			Ops: []rule.RegOp{{Dst: 10, Src: 1, Src2: 2, Op: rule.RegAdd}},
		},
		{
			Index: 2, Rows: rule.ColumnSlice{Full: true}, Column: rule.ColumnSlice{Full: true},
			Tolerance: rule.Tolerance{Abs: true},
			Abs:       rule.Bound{Reg: 10},
		},
	}
	issues := NewLinter(DefaultLintOptions()).Lint(rules, 100)
	if hasCode(issues, "UNUSED_REG") {
		t.Errorf("R10 is read by rule 2, got %v", issues)
	}
}

func TestLintStrictPromotesWarnings(t *testing.T) {
	r := rule.Rule{
		Index: 1, Rows: rule.ColumnSlice{Full: true}, Column: rule.ColumnSlice{Full: true},
		Flags: rule.Flags{Omit: true},
	}
	opts := DefaultLintOptions()
	opts.Strict = true
	issues := NewLinter(opts).Lint([]rule.Rule{r}, 100)
	if !HasErrors(issues) {
		t.Errorf("strict mode should promote the OMIT_NO_TAG warning, got %v", issues)
	}
}

func TestLintOrdersErrorsFirst(t *testing.T) {
	rules := []rule.Rule{
		{ // warning only
			Index: 1, Rows: rule.ColumnSlice{Full: true}, Column: rule.ColumnSlice{Full: true},
			Flags: rule.Flags{Omit: true},
		},
		{ // error
			Index: 2, Rows: rule.ColumnSlice{Full: true}, Column: rule.ColumnSlice{Full: true},
			Action: rule.ActionGotoTag,
		},
	}
	issues := NewLinter(DefaultLintOptions()).Lint(rules, 100)
	if len(issues) < 2 || issues[0].Level != LintError {
		t.Errorf("errors should sort first, got %v", issues)
	}
}

func TestLintIssueString(t *testing.T) {
	issue := &LintIssue{Level: LintError, Rule: 3, Message: "goto rule has no tag", Code: "MISSING_TAG"}
	s := issue.String()
	if !strings.Contains(s, "rule 3") || !strings.Contains(s, "MISSING_TAG") {
		t.Errorf("unexpected issue rendering: %q", s)
	}
}
