// Package engine implements the numerical diff engine's core: the
// line-buffer pair, the tokenizer that walks both buffers in lockstep,
// the rule-driven comparator, the tag/number seek operations, and the
// per-line driver loop.
package engine

import (
	"fmt"

	"github.com/cairnsoft/ndiff/diag"
	"github.com/cairnsoft/ndiff/linesource"
	"github.com/cairnsoft/ndiff/numlit"
	"github.com/cairnsoft/ndiff/regfile"
	"github.com/cairnsoft/ndiff/rule"
)

// minBufCap is the floor for line-buffer growth.
const minBufCap = 64 * 1024

// Options are the engine's run-time switches.
type Options struct {
	MaxDiffs int  // keep: diagnostics beyond this count are counted but not emitted
	Blank    bool // consume runs of blank bytes in lockstep during tokenization
	Check    bool // cross-validate GetIncremental against GetAt every lookup
}

// Engine owns the two line buffers and the register file for one
// comparison run. It is not safe for concurrent use.
type Engine struct {
	lhs, rhs       []byte
	lhsLen, rhsLen int
	lhsPos, rhsPos int

	row, col           int
	numCount, diffCount int
	maxDiffs           int
	blank              bool
	check              bool

	regs *regfile.File
	ctx  rule.Context

	lhsSrc, rhsSrc linesource.Source
	sink           *diag.Sink
	kept           numlit.KeptSet

	lhsFile, rhsFile string

	// StepHook, when set, is invoked by Run once per completed row, after
	// diagnostics for that row have been emitted. It lets an optional
	// live viewer (package tui) observe engine state between steps
	// without re-entering the engine.
	StepHook func(e *Engine)
}

// New constructs an engine over the given line sources and rule
// context. bufCap is the initial per-side buffer capacity (clamped to
// at least minBufCap); regCount is the register-file size (clamped by
// regfile.New).
func New(lhsSrc, rhsSrc linesource.Source, ctx rule.Context, bufCap, regCount int) *Engine {
	if bufCap < minBufCap {
		bufCap = minBufCap
	}
	return &Engine{
		lhs:      make([]byte, bufCap),
		rhs:      make([]byte, bufCap),
		regs:     regfile.New(regCount),
		ctx:      ctx,
		lhsSrc:   lhsSrc,
		rhsSrc:   rhsSrc,
		maxDiffs: 1,
	}
}

// SetSink installs the diagnostics sink.
func (e *Engine) SetSink(s *diag.Sink) { e.sink = s }

// SetFileNames records the two file paths for diagnostics headers.
func (e *Engine) SetFileNames(lhs, rhs string) {
	e.lhsFile, e.rhsFile = lhs, rhs
	if e.sink != nil {
		e.sink.SetHeader(lhs, rhs, "")
	}
}

// SetKeptSet installs the read-only "kept" punctuation set used by the
// separator classifier.
func (e *Engine) SetKeptSet(k numlit.KeptSet) { e.kept = k }

// SetOptions applies run-time options. keep must be > 0.
func (e *Engine) SetOptions(opts Options) error {
	if opts.MaxDiffs <= 0 {
		return fmt.Errorf("%w: keep must be > 0", ErrResource)
	}
	e.maxDiffs = opts.MaxDiffs
	e.blank = opts.Blank
	e.check = opts.Check
	return nil
}

// Registers exposes the register file for rule bound resolution and
// external inspection (e.g. by package tui).
func (e *Engine) Registers() *regfile.File { return e.regs }

// Lines returns copies of the currently-held line pair, for external
// viewers; the engine's own buffers are never exposed.
func (e *Engine) Lines() (lhs, rhs string) {
	return string(e.lhs[:e.lhsLen]), string(e.rhs[:e.rhsLen])
}

// Cursors returns the two buffer cursor positions, for external viewers.
func (e *Engine) Cursors() (lhsPos, rhsPos int) { return e.lhsPos, e.rhsPos }

// Clear resets buffers and registers to their initial state, preserving
// configuration (sink, options, kept set, sources, context).
func (e *Engine) Clear() {
	e.lhsLen, e.rhsLen = 0, 0
	e.lhsPos, e.rhsPos = 0, 0
	e.row, e.col, e.numCount, e.diffCount = 0, 0, 0, 0
	e.regs.Clear()
}

// GetInfo returns the engine's row/column/diagnostic-count/number-count
// state.
func (e *Engine) GetInfo() (row, col, cnt, num int) {
	return e.row, e.col, e.diffCount, e.numCount
}

// Feof reports whether the currently held line is exhausted (cursor at
// or past the line's length). When both is true it requires both sides
// to be exhausted; otherwise either side being exhausted is sufficient.
// It does not consult the line sources, so it says nothing about
// end-of-file on the underlying streams.
func (e *Engine) Feof(both bool) bool {
	lhsEOF := e.lhsPos >= e.lhsLen
	rhsEOF := e.rhsPos >= e.rhsLen
	if both {
		return lhsEOF && rhsEOF
	}
	return lhsEOF || rhsEOF
}

// IsEmpty reports whether both cursors are currently at NUL.
func (e *Engine) IsEmpty() bool {
	return e.byteAt(true, e.lhsPos) == 0 && e.byteAt(false, e.rhsPos) == 0
}

// byteAt returns the byte at pos in the selected side's buffer, or 0 if
// pos is at or past the line's logical length (the implicit NUL
// terminator).
func (e *Engine) byteAt(lhsSide bool, pos int) byte {
	if lhsSide {
		if pos < 0 || pos >= e.lhsLen {
			return 0
		}
		return e.lhs[pos]
	}
	if pos < 0 || pos >= e.rhsLen {
		return 0
	}
	return e.rhs[pos]
}

func (e *Engine) ensureCap(side *[]byte, need int) {
	if need <= len(*side) {
		return
	}
	newCap := len(*side)
	if newCap < minBufCap {
		newCap = minBufCap
	}
	for newCap < need {
		newCap *= 2
	}
	grown := make([]byte, newCap)
	copy(grown, *side)
	*side = grown
}

// ErrResource wraps invalid run-time options and a gonum tag that is not
// a number; ErrInvariant is returned by Run in check mode when the
// incremental and random-access rule lookups disagree.
var (
	ErrResource  = fmt.Errorf("ndiff: resource failure")
	ErrInvariant = fmt.Errorf("ndiff: invariant violation")
)
