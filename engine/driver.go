package engine

import (
	"fmt"
	"io"
	"reflect"

	"github.com/cairnsoft/ndiff/rule"
)

// Run drives the per-row state machine over the whole comparison
//: for each row it resolves the applicable rule, takes
// that rule's row-level action (skip, tag-seek, number-seek, or an
// ordinary read), then walks the row's numeric columns via NextNum and
// TestNum, echoing the row to lhsOut/rhsOut only when TestNum reported
// no failures (text differences found by NextNum are counted and
// reported but do not suppress the echo). It stops when either side
// reaches EOF, consuming any
// trailing blank runs first when Options.Blank is set.
func (e *Engine) Run(lhsOut, rhsOut io.Writer) error {
	for {
		row := e.row + 1
		rl, ok := e.ctx.GetIncremental(row, 0)
		if !ok {
			rl = rule.Rule{}
		}
		if err := e.checkAgree(row, 0, rl); err != nil {
			return err
		}

		if rl.Action == rule.ActionSkip {
			eof, err := e.advanceRow(rl)
			if err != nil && err != io.EOF {
				return err
			}
			if eof {
				return nil
			}
			continue
		}

		eof, err := e.advanceRow(rl)
		if err != nil && err != io.EOF {
			return err
		}
		// EOF with nothing read on either side is not a row of its own.
		if eof && e.lhsLen == 0 && e.rhsLen == 0 {
			if e.blank {
				e.consumeTrailingBlank()
			}
			return nil
		}

		var ret rule.FailBits
		if !e.IsEmpty() {
			ret, err = e.runColumns(rl)
			if err != nil {
				return err
			}
		}

		if ret == 0 {
			if err := e.OutLine(lhsOut, rhsOut); err != nil {
				return err
			}
		}

		if e.StepHook != nil {
			e.StepHook(e)
		}

		if eof {
			if e.blank {
				e.consumeTrailingBlank()
			}
			return nil
		}
	}
}

// advanceRow performs the row-level action the rule selects: skip,
// tag-seek, number-seek, or an ordinary line read. It returns whether
// either side hit EOF during the action.
func (e *Engine) advanceRow(rl rule.Rule) (eof bool, err error) {
	var actionErr error
	switch rl.Action {
	case rule.ActionSkip:
		actionErr = e.SkipLine()
	case rule.ActionGotoTag:
		actionErr = e.GotoLine(rl)
	case rule.ActionGotoNum:
		actionErr = e.GotoNum(rl)
	default:
		actionErr = e.ReadLine()
	}
	if actionErr == io.EOF {
		return true, nil
	}
	return false, actionErr
}

// runColumns walks the current row's numeric columns, re-resolving the
// rule at each column (a rule file may hold column-specific entries
// within one row) and stopping either at end of row or when a
// "start-of-group" rule is encountered.
func (e *Engine) runColumns(rl rule.Rule) (rule.FailBits, error) {
	row := e.row
	var ret rule.FailBits
	for {
		col := e.NextNum(rl)
		if col == 0 {
			return ret, nil
		}
		colRule, ok := e.ctx.GetIncremental(row, col)
		if !ok {
			colRule = rl
		}
		if err := e.checkAgree(row, col, colRule); err != nil {
			return ret, err
		}
		if colRule.Flags.Group {
			return ret, nil
		}
		ret |= e.TestNum(colRule)
		rl = colRule
	}
}

// checkAgree cross-validates GetIncremental against GetAt when
// Options.Check is set.
func (e *Engine) checkAgree(row, col int, got rule.Rule) error {
	if !e.check {
		return nil
	}
	want, ok := e.ctx.GetAt(row, col)
	if !ok {
		want = rule.Rule{}
	}
	if !reflect.DeepEqual(want, got) {
		return fmt.Errorf("%w: rule context disagreement at row %d col %d", ErrInvariant, row, col)
	}
	return nil
}

// consumeTrailingBlank drains leading blank bytes from whatever remains
// unread on both sides so EOF is reported consistently when the Blank
// option is active.
func (e *Engine) consumeTrailingBlank() {
	_ = e.lhsSrc.SkipSpace()
	_ = e.rhsSrc.SkipSpace()
}
