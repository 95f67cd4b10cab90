package engine

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/cairnsoft/ndiff/diag"
	"github.com/cairnsoft/ndiff/linesource"
	"github.com/cairnsoft/ndiff/regfile"
	"github.com/cairnsoft/ndiff/rule"
)

// singleRuleContext always returns the same rule regardless of
// row/column, the simplest possible rule.Context for exercising the
// engine directly without a TOML-backed rule file.
type singleRuleContext struct {
	r        rule.Rule
	failures int
}

func (c *singleRuleContext) GetIncremental(row, col int) (rule.Rule, bool) { return c.r, true }
func (c *singleRuleContext) GetAt(row, col int) (rule.Rule, bool)          { return c.r, true }
func (c *singleRuleContext) OnFail(r rule.Rule)                           { c.failures++ }
func (c *singleRuleContext) FindIndex(idx int) (rule.Rule, bool)          { return c.r, idx == c.r.Index }
func (c *singleRuleContext) FindLine(line string) (rule.Rule, bool)       { return rule.Rule{}, false }
func (c *singleRuleContext) Print() string                                { return "" }

func newTestEngine(t *testing.T, lhsText, rhsText string, r rule.Rule) (*Engine, *singleRuleContext, *bytes.Buffer) {
	t.Helper()
	ctx := &singleRuleContext{r: r}
	e := New(linesource.NewFileSource(strings.NewReader(lhsText)), linesource.NewFileSource(strings.NewReader(rhsText)), ctx, minBufCap, 20)
	var warn bytes.Buffer
	e.SetSink(diag.New(&warn, nil, false))
	e.SetFileNames("lhs.txt", "rhs.txt")
	if err := e.SetOptions(Options{MaxDiffs: 100}); err != nil {
		t.Fatal(err)
	}
	return e, ctx, &warn
}

// 1. Identical lines: next_num returns column 1, test_num returns 0,
// out_line fires.
func TestBoundaryIdenticalLines(t *testing.T) {
	e, _, _ := newTestEngine(t, "x = 1.0", "x = 1.0", rule.Rule{})
	e.FillLine("x = 1.0", "x = 1.0")

	col := e.NextNum(rule.Rule{})
	if col != 1 {
		t.Fatalf("expected column 1, got %d", col)
	}
	if bits := e.TestNum(rule.Rule{}); bits != 0 {
		t.Fatalf("expected pass, got %v", bits)
	}

	var lhsOut, rhsOut bytes.Buffer
	if err := e.OutLine(&lhsOut, &rhsOut); err != nil {
		t.Fatal(err)
	}
	if lhsOut.String() != "x = 1.0\n" || rhsOut.String() != "x = 1.0\n" {
		t.Fatalf("unexpected out_line output: lhs=%q rhs=%q", lhsOut.String(), rhsOut.String())
	}
}

// 2. Float drift within abs tolerance.
func TestBoundaryAbsToleranceWithinBound(t *testing.T) {
	r := rule.Rule{
		Tolerance: rule.Tolerance{Abs: true},
		Abs:       rule.Bound{Value: 1e-6},
		AbsLower:  rule.Bound{Value: -1e-6},
	}
	e, _, _ := newTestEngine(t, "", "", r)
	e.FillLine("3.1415926", "3.1415930")

	if col := e.NextNum(r); col != 1 {
		t.Fatalf("expected column 1, got %d", col)
	}
	if bits := e.TestNum(r); bits != 0 {
		t.Fatalf("expected pass, got %v", bits)
	}
	got := e.Registers().Get(regfile.RAbsErr, 0)
	if got > 0 {
		got = -got
	}
	if got < -4.5e-7 || got > -3.5e-7 {
		t.Fatalf("expected R5 ~ -4e-7, got %g", e.Registers().Get(regfile.RAbsErr, 0))
	}
}

// 3. Float drift outside rel tolerance.
func TestBoundaryRelToleranceExceeded(t *testing.T) {
	r := rule.Rule{
		Tolerance: rule.Tolerance{Rel: true},
		Rel:       rule.Bound{Value: 1e-3},
		RelLower:  rule.Bound{Value: -1e-3},
	}
	e, _, warn := newTestEngine(t, "", "", r)
	e.FillLine("1.0e3", "1.0e6")

	if col := e.NextNum(r); col != 1 {
		t.Fatalf("expected column 1, got %d", col)
	}
	bits := e.TestNum(r)
	if bits&rule.FailRel == 0 {
		t.Fatalf("expected rel failure, got %v", bits)
	}
	// A failing pair without save leaves the registers untouched, so the
	// computed rel error is read from the diagnostic.
	if !strings.Contains(warn.String(), "actual=-999 ") {
		t.Fatalf("expected the diagnostic to report rel -999, got %q", warn.String())
	}
}

// 4. Strict equality of representations.
func TestBoundaryEqualRepresentations(t *testing.T) {
	r := rule.Rule{Flags: rule.Flags{Equal: true}}
	e, _, _ := newTestEngine(t, "", "", r)
	e.FillLine("1.0", "1.00")

	if col := e.NextNum(r); col != 1 {
		t.Fatalf("expected column 1, got %d", col)
	}
	bits := e.TestNum(r)
	if bits&rule.FailEqual == 0 {
		t.Fatalf("expected equ failure, got %v", bits)
	}
}

// 5. Integer column under dig rule: dig check is skipped for integers.
func TestBoundaryDigSkippedForIntegers(t *testing.T) {
	r := rule.Rule{
		Tolerance: rule.Tolerance{Dig: true},
		Dig:       rule.Bound{Value: 0.1},
		DigLower:  rule.Bound{Value: -0.1},
	}
	e, _, _ := newTestEngine(t, "", "", r)
	e.FillLine("42", "43")

	if col := e.NextNum(r); col != 1 {
		t.Fatalf("expected column 1, got %d", col)
	}
	if bits := e.TestNum(r); bits != 0 {
		t.Fatalf("expected pass (dig skipped for integers), got %v", bits)
	}
}

// 6. Non-numeric text diff.
func TestBoundaryTextDiff(t *testing.T) {
	e, _, warn := newTestEngine(t, "", "", rule.Rule{})
	e.FillLine("foo bar", "foo baz")

	if col := e.NextNum(rule.Rule{}); col != 0 {
		t.Fatalf("expected 0 (text diff), got %d", col)
	}
	if _, _, cnt, _ := e.GetInfo(); cnt != 1 {
		t.Fatalf("expected diff count 1, got %d", cnt)
	}
	if warn.Len() == 0 {
		t.Fatal("expected a text-diff warning to be emitted")
	}
}

// 7. Omit identifier: a tag preceding a mismatching identifier causes
// next_num to silently skip it rather than report a text diff (the
// leftward "omit test").
func TestBoundaryOmitIdentifier(t *testing.T) {
	r := rule.Rule{Flags: rule.Flags{Omit: true}, Tag: "pfx:"}
	e, _, warn := newTestEngine(t, "", "", r)
	e.FillLine("pfx:NaN rest", "pfx:Inf rest")

	if col := e.NextNum(r); col != 0 {
		t.Fatalf("expected 0 (no numeric column, identifier omitted), got %d", col)
	}
	if _, _, cnt, _ := e.GetInfo(); cnt != 0 {
		t.Fatalf("expected no diff reported, got count %d", cnt)
	}
	if warn.Len() != 0 {
		t.Fatalf("expected no warning, got %q", warn.String())
	}
}

// 8. Register save/arithmetic: save forces register writes even when
// the pair itself does not pass, and the rule's ops chain runs after.
func TestBoundaryRegisterSaveAndOps(t *testing.T) {
	r := rule.Rule{
		Flags: rule.Flags{Save: true},
		Ops: []rule.RegOp{
			{Dst: 10, Src: regfile.RLHS, Src2: regfile.RRHS, Op: rule.RegAdd},
			{Dst: 11, Src: 10, Src2: 12, Op: rule.RegDiv},
		},
	}
	e, _, _ := newTestEngine(t, "", "", r)
	e.Registers().Set(12, 2)
	e.FillLine("1.5", "2.5")

	if col := e.NextNum(r); col != 1 {
		t.Fatalf("expected column 1, got %d", col)
	}
	e.TestNum(r)

	if got := e.Registers().Get(10, 0); got != 4 {
		t.Fatalf("expected R10 == 4, got %g", got)
	}
	if got := e.Registers().Get(11, 0); got != 2 {
		t.Fatalf("expected R11 == 2, got %g", got)
	}
}

// 9. goto_line with tag: row advances by the smaller of the two
// per-side line counts, and both buffers hold their tagged line.
func TestBoundaryGotoLine(t *testing.T) {
	lhsText := "a\nb\nc\nd\n=== RESULT ===\nmore\n"
	rhsText := "a\nb\nc\nd\ne\nf\n=== RESULT ===\nmore\n"
	r := rule.Rule{Action: rule.ActionGotoTag, Tag: "=== RESULT ==="}
	e, _, _ := newTestEngine(t, lhsText, rhsText, r)

	if err := e.GotoLine(r); err != nil {
		t.Fatal(err)
	}
	if e.row != 5 {
		t.Fatalf("expected row 5 (min(5,7)), got %d", e.row)
	}
	lhsBuf, lhsN := e.lineBuf(true)
	rhsBuf, rhsN := e.lineBuf(false)
	if string(lhsBuf[:lhsN]) != "=== RESULT ===" || string(rhsBuf[:rhsN]) != "=== RESULT ===" {
		t.Fatalf("expected both buffers to hold the tagged line, got lhs=%q rhs=%q", lhsBuf[:lhsN], rhsBuf[:rhsN])
	}
}

// goto_num seeks each side to the first line whose selected column
// holds the tag value, skipping numbers in unselected columns.
func TestBoundaryGotoNum(t *testing.T) {
	lhsText := "a 1.0 2.0\nb 3.0 5.0\nc 5.0 6.0\n"
	rhsText := "a 1.0 2.0\nb 3.0 4.0\nc 9.0 5.0\n"
	r := rule.Rule{
		Action: rule.ActionGotoNum,
		Tag:    "5.0",
		Column: rule.ColumnSlice{Start: 2, End: 3, Stride: 1},
	}
	e, _, _ := newTestEngine(t, lhsText, rhsText, r)

	if err := e.GotoNum(r); err != nil {
		t.Fatal(err)
	}
	if e.row != 2 {
		t.Fatalf("expected row 2 (min(2,3)), got %d", e.row)
	}
	lhs, rhs := e.Lines()
	if lhs != "b 3.0 5.0" {
		t.Fatalf("lhs should hold its column-2 match, got %q", lhs)
	}
	if rhs != "c 9.0 5.0" {
		t.Fatalf("rhs should hold its column-2 match, got %q", rhs)
	}
}

// A 5.0 in column 1 must not satisfy a column-2 seek.
func TestGotoNumIgnoresUnselectedColumns(t *testing.T) {
	lhsText := "x 5.0 1.0\nx 0.0 5.0\n"
	rhsText := "x 5.0 1.0\nx 0.0 5.0\n"
	r := rule.Rule{
		Action: rule.ActionGotoNum,
		Tag:    "5.0",
		Column: rule.ColumnSlice{Start: 2, End: 3, Stride: 1},
	}
	e, _, _ := newTestEngine(t, lhsText, rhsText, r)

	if err := e.GotoNum(r); err != nil {
		t.Fatal(err)
	}
	if e.row != 2 {
		t.Fatalf("expected row 2, got %d", e.row)
	}
	lhs, _ := e.Lines()
	if lhs != "x 0.0 5.0" {
		t.Fatalf("expected the second line, got %q", lhs)
	}
}

func TestGotoNumRejectsNonNumericTag(t *testing.T) {
	r := rule.Rule{
		Action: rule.ActionGotoNum,
		Tag:    "not-a-number",
		Column: rule.ColumnSlice{Start: 1, End: 2, Stride: 1},
	}
	e, _, _ := newTestEngine(t, "1.0\n", "1.0\n", r)
	if err := e.GotoNum(r); !errors.Is(err, ErrResource) {
		t.Fatalf("expected ErrResource for a non-numeric gonum tag, got %v", err)
	}
}

// disagreeingContext returns different rules from the incremental and
// random-access lookups, the condition check mode exists to catch.
type disagreeingContext struct{ singleRuleContext }

func (c *disagreeingContext) GetAt(row, col int) (rule.Rule, bool) {
	return rule.Rule{Index: 99}, true
}

func TestCheckModeDetectsLookupDisagreement(t *testing.T) {
	ctx := &disagreeingContext{}
	e := New(linesource.NewFileSource(strings.NewReader("1\n")), linesource.NewFileSource(strings.NewReader("1\n")), ctx, minBufCap, regfile.MinRegisters)
	e.SetSink(diag.New(nil, nil, false))
	if err := e.SetOptions(Options{MaxDiffs: 10, Check: true}); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(nil, nil); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant from the dual-lookup cross-check, got %v", err)
	}
}

// 10. Diff cap: ten consecutive failing pairs increment cnt_i to 10 but
// only the first two (max_i=2) produce diagnostic output.
func TestBoundaryDiffCap(t *testing.T) {
	r := rule.Rule{Flags: rule.Flags{Equal: true}}
	e, _, warn := newTestEngine(t, "", "", r)
	if err := e.SetOptions(Options{MaxDiffs: 2}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		e.FillLine("1.0", "1.00")
		if col := e.NextNum(r); col != 1 {
			t.Fatalf("iteration %d: expected column 1, got %d", i, col)
		}
		if bits := e.TestNum(r); bits&rule.FailEqual == 0 {
			t.Fatalf("iteration %d: expected equ failure", i)
		}
	}

	if _, _, cnt, _ := e.GetInfo(); cnt != 10 {
		t.Fatalf("expected diff count 10, got %d", cnt)
	}
	lines := strings.Count(warn.String(), " differs: ")
	if lines != 2 {
		t.Fatalf("expected exactly 2 emitted diagnostic lines, got %d (%q)", lines, warn.String())
	}
}

func TestRunEmitsMatchingRowsAndStopsAtEOF(t *testing.T) {
	ctx := &singleRuleContext{}
	e := New(linesource.NewFileSource(strings.NewReader("1\n2\n3\n")), linesource.NewFileSource(strings.NewReader("1\n2\n3\n")), ctx, minBufCap, regfile.MinRegisters)
	var warn bytes.Buffer
	e.SetSink(diag.New(&warn, nil, false))
	if err := e.SetOptions(Options{MaxDiffs: 10}); err != nil {
		t.Fatal(err)
	}

	var lhsOut, rhsOut bytes.Buffer
	if err := e.Run(&lhsOut, &rhsOut); err != nil {
		t.Fatal(err)
	}
	if lhsOut.String() != "1\n2\n3\n" {
		t.Fatalf("expected all three rows echoed, got %q", lhsOut.String())
	}
}

func TestTraceFlagEmitsEvaluationLine(t *testing.T) {
	r := rule.Rule{Flags: rule.Flags{Trace: true}}
	ctx := &singleRuleContext{r: r}
	e := New(linesource.NewFileSource(strings.NewReader("")), linesource.NewFileSource(strings.NewReader("")), ctx, minBufCap, regfile.MinRegisters)
	var warn, trace bytes.Buffer
	e.SetSink(diag.New(&warn, &trace, true))
	if err := e.SetOptions(Options{MaxDiffs: 10}); err != nil {
		t.Fatal(err)
	}

	e.FillLine("2.5", "2.5")
	if col := e.NextNum(r); col != 1 {
		t.Fatalf("expected column 1, got %d", col)
	}
	if bits := e.TestNum(r); bits != 0 {
		t.Fatalf("expected pass, got %v", bits)
	}
	if !strings.Contains(trace.String(), "lhs=2.5") {
		t.Fatalf("expected an evaluation trace line, got %q", trace.String())
	}
	if warn.Len() != 0 {
		t.Fatalf("trace must not produce warnings, got %q", warn.String())
	}
}

func TestFeofSemantics(t *testing.T) {
	e, _, _ := newTestEngine(t, "", "", rule.Rule{})
	e.FillLine("x", "")
	if !e.Feof(false) {
		t.Fatal("expected Feof(false) true when rhs is empty")
	}
	if e.Feof(true) {
		t.Fatal("expected Feof(true) false when lhs still has content")
	}
}
