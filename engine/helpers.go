package engine

import (
	"github.com/cairnsoft/ndiff/diag"
	"github.com/cairnsoft/ndiff/rule"
)

// fireOnFail invokes the rule context's failure hook, if one is
// configured; scratch engines used internally by seek operations have
// no context and silently skip it.
func (e *Engine) fireOnFail(r rule.Rule) {
	if e.ctx != nil {
		e.ctx.OnFail(r)
	}
}

// position builds a diag.Position from the engine's current row/col and
// configured file names.
func (e *Engine) position() diag.Position {
	return diag.Position{
		Row:     e.row,
		Col:     e.col,
		LHSFile: e.lhsFile,
		RHSFile: e.rhsFile,
	}
}

// textDiffMessage renders the diagnostic for a text-level mismatch at
// the engine's current cursors.
func textDiffMessage(e *Engine) string {
	return diag.TextDiff(e.position(), e.byteAt(true, e.lhsPos), e.byteAt(false, e.rhsPos))
}
