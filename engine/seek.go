package engine

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cairnsoft/ndiff/numlit"
	"github.com/cairnsoft/ndiff/regfile"
	"github.com/cairnsoft/ndiff/rule"
)

// resolveTag returns the rule's tag text, substituting a register's
// current value (formatted as a decimal string) when TagReg is set.
func (e *Engine) resolveTag(r rule.Rule) string {
	if !r.Flags.TagReg {
		return r.Tag
	}
	idx, err := strconv.Atoi(r.Tag)
	if err != nil {
		return r.Tag
	}
	return strconv.FormatFloat(e.regs.Get(idx, 0), 'g', -1, 64)
}

// GotoLine advances each side independently until a line containing
// the rule's tag as a substring is found on that side, then advances
// row by the smaller of the two per-side line counts.
func (e *Engine) GotoLine(r rule.Rule) error {
	tag := []byte(e.resolveTag(r))
	lhsN, lhsErr := e.seekTag(true, tag)
	rhsN, rhsErr := e.seekTag(false, tag)

	adv := lhsN
	if rhsN < adv {
		adv = rhsN
	}
	e.row += adv
	e.col = 0
	e.lhsPos, e.rhsPos = 0, 0

	if lhsErr != nil {
		return lhsErr
	}
	return rhsErr
}

func (e *Engine) seekTag(lhsSide bool, tag []byte) (int, error) {
	lines := 0
	for {
		eof, err := e.readOneLine(lhsSide)
		if err != nil {
			return lines, err
		}
		lines++
		buf, n := e.lineBuf(lhsSide)
		if bytes.Contains(buf[:n], tag) {
			return lines, nil
		}
		if eof {
			return lines, io.EOF
		}
	}
}

// GotoNum advances each side independently until a number in the
// rule's target column equals the rule's tag value, under ordinary
// test_num comparison rules. When the rule is "equ" with
// a full column selector, it delegates to GotoLine since there is no
// single numeric column to seek within.
func (e *Engine) GotoNum(r rule.Rule) error {
	if r.Flags.Equal && r.Column.IsFull() {
		return e.GotoLine(r)
	}

	target := e.resolveTag(r)
	lhsN, lhsErr := e.seekNum(true, r, target)
	rhsN, rhsErr := e.seekNum(false, r, target)

	adv := lhsN
	if rhsN < adv {
		adv = rhsN
	}
	e.row += adv
	e.col = 0
	e.lhsPos, e.rhsPos = 0, 0

	if lhsErr != nil {
		return lhsErr
	}
	return rhsErr
}

// seekNum reads lines one at a time on the selected side into the
// engine's live buffer for that side, loading each candidate line on
// both sides of a throwaway scratch engine (so tokenization walks its
// identifiers in clean lockstep, and the real, not-yet-consumed buffer
// on the other side is never overwritten while searching). The target
// value is injected as a literal override on the right-hand slot, so
// TestNum compares the candidate's column against it under the rule's
// own tolerance.
func (e *Engine) seekNum(lhsSide bool, r rule.Rule, target string) (int, error) {
	targetVal, err := strconv.ParseFloat(strings.TrimSpace(target), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: gonum tag %q is not numeric", ErrResource, target)
	}

	scratch := newScratchEngine(e.kept)
	matchRule := r
	matchRule.Action = rule.ActionCompare
	matchRule.Flags.NoFail = true
	matchRule.Flags.RHS = true
	matchRule.RHSLiteral = rule.Bound{Value: targetVal}
	matchRule.Flags.Swap = !lhsSide

	lines := 0
	for {
		eof, err := e.readOneLine(lhsSide)
		if err != nil {
			return lines, err
		}
		lines++

		buf, n := e.lineBuf(lhsSide)
		scratch.loadLine(buf[:n])

		if scratch.matchesColumn(matchRule) {
			return lines, nil
		}
		if eof {
			return lines, io.EOF
		}
	}
}

// newScratchEngine builds a minimal, self-contained engine used only to
// run NextNum/TestNum against a synthetic line pair; it has its own
// register file so seeking never perturbs the live comparison's
// registers.
func newScratchEngine(kept numlit.KeptSet) *Engine {
	return &Engine{
		lhs:      make([]byte, minBufCap),
		rhs:      make([]byte, minBufCap),
		regs:     regfile.New(regfile.MinRegisters),
		kept:     kept,
		maxDiffs: 1,
	}
}

// loadLine places candidate on both sides, resetting cursors.
func (e *Engine) loadLine(candidate []byte) {
	e.lhsLen = copy(e.lhs, candidate)
	e.rhsLen = copy(e.rhs, candidate)
	e.lhsPos, e.rhsPos, e.col = 0, 0, 0
}

// matchesColumn runs the tokenizer across the scratch engine's current
// line pair looking for a numeric column selected by r.Column whose
// comparison under r passes. Spans in unselected columns are skipped
// over explicitly; NextNum only locates a span, it never advances past
// one.
func (e *Engine) matchesColumn(r rule.Rule) bool {
	for {
		col := e.NextNum(r)
		if col == 0 {
			return false
		}
		if !r.Column.IsElement(col) {
			e.skipPair()
			continue
		}
		if e.TestNum(r) == 0 {
			return true
		}
	}
}
