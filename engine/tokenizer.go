package engine

import (
	"github.com/cairnsoft/ndiff/numlit"
	"github.com/cairnsoft/ndiff/rule"
)

// NextNum advances both cursors in lockstep to the first byte of the
// next pair of numeric spans, or reports a text-level difference, or
// signals end of line.
// Returns 0 at end-of-line or on a reported diff (with col reset to 0);
// otherwise the new 1-based column.
func (e *Engine) NextNum(r rule.Rule) int {
	for {
		if e.atNUL(true) && e.atNUL(false) {
			return 0
		}

		if r.Flags.IStr {
			e.skipNonDigits(true)
			e.skipNonDigits(false)
		} else if e.skipMatchingNonDigits(r) == skipRetryBlank {
			continue
		}

		if e.atNUL(true) && e.atNUL(false) {
			return 0
		}

		lb, rb := e.byteAt(true, e.lhsPos), e.byteAt(false, e.rhsPos)
		bothNumeric := e.looksLikeNumber(true) && e.looksLikeNumber(false)

		if lb != rb && !bothNumeric {
			if e.tryIdentifier(r) {
				continue
			}
			e.reportTextDiff(r)
			return 0
		}

		bl := e.backtrack(true, e.lhsPos)
		br := e.backtrack(false, e.rhsPos)

		if !numlit.IsNumberStart(e.bufSlice(true), bl, e.kept) || !numlit.IsNumberStart(e.bufSlice(false), br, e.kept) {
			if e.tryIdentifier(r) {
				continue
			}
			e.reportTextDiff(r)
			return 0
		}

		e.lhsPos, e.rhsPos = bl, br
		e.col++
		e.numCount++
		return e.col
	}
}

type skipResult int

const (
	skipOK skipResult = iota
	skipRetryBlank
)

// skipMatchingNonDigits walks both cursors forward in lockstep while the
// bytes match and are not digits, honoring the
// Blank option's consume-and-retry behavior. It stops (without itself
// judging a text diff) as soon as either side reaches a digit or the
// bytes stop matching; the caller decides from there whether that is a
// legitimate numeric span (e.g. differing signs) or a real text diff.
func (e *Engine) skipMatchingNonDigits(r rule.Rule) skipResult {
	for {
		lb := e.byteAt(true, e.lhsPos)
		rb := e.byteAt(false, e.rhsPos)

		if (e.blank || r.Flags.Blank) && (lb == ' ' || rb == ' ') {
			consumed := false
			for e.byteAt(true, e.lhsPos) == ' ' {
				e.lhsPos++
				consumed = true
			}
			for e.byteAt(false, e.rhsPos) == ' ' {
				e.rhsPos++
				consumed = true
			}
			if consumed {
				return skipRetryBlank
			}
		}

		if lb == 0 || rb == 0 || isDigitByte(lb) || isDigitByte(rb) || lb != rb {
			return skipOK
		}
		e.lhsPos++
		e.rhsPos++
	}
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }

func (e *Engine) atNUL(lhsSide bool) bool {
	if lhsSide {
		return e.byteAt(true, e.lhsPos) == 0
	}
	return e.byteAt(false, e.rhsPos) == 0
}

func (e *Engine) skipNonDigits(lhsSide bool) {
	pos := e.posFor(lhsSide)
	for !isDigitByte(e.byteAt(lhsSide, *pos)) && e.byteAt(lhsSide, *pos) != 0 {
		*pos++
	}
}

func (e *Engine) posFor(lhsSide bool) *int {
	if lhsSide {
		return &e.lhsPos
	}
	return &e.rhsPos
}

func (e *Engine) advanceToSeparator(lhsSide bool) {
	pos := e.posFor(lhsSide)
	for {
		b := e.byteAt(lhsSide, *pos)
		if b == 0 || numlit.IsSeparator(b, e.kept) {
			return
		}
		*pos++
	}
}

// bufSlice returns the selected side's current line content (excluding
// the implicit trailing NUL).
func (e *Engine) bufSlice(lhsSide bool) []byte {
	buf, n := e.lineBuf(lhsSide)
	return buf[:n]
}

func (e *Engine) lineBuf(lhsSide bool) ([]byte, int) {
	if lhsSide {
		return e.lhs, e.lhsLen
	}
	return e.rhs, e.rhsLen
}

// looksLikeNumber reports whether a number could begin at the selected
// side's current cursor position.
func (e *Engine) looksLikeNumber(lhsSide bool) bool {
	buf, n := e.lineBuf(lhsSide)
	pos := e.lhsPos
	if !lhsSide {
		pos = e.rhsPos
	}
	if pos >= n {
		return false
	}
	return numlit.IsNumber(buf[pos:n])
}

// backtrack returns numlit.Backtrack applied to the selected side's
// buffer at pos, without mutating the cursor.
func (e *Engine) backtrack(lhsSide bool, pos int) int {
	buf, n := e.lineBuf(lhsSide)
	if pos > n {
		pos = n
	}
	return numlit.Backtrack(buf[:n], pos)
}

// tryIdentifier treats the bytes at the
// current mismatch as an identifier rather than a number, and attempts
// to get both cursors past it so the outer loop can retry from step 2.
// It returns true when it successfully advanced past the identifier
// (omit guard satisfied, istr mode, or a matching lockstep prefix
// reaching a separator on both sides); false means the identifiers
// themselves differ and the caller should report a text diff.
func (e *Engine) tryIdentifier(r rule.Rule) bool {
	if r.Flags.IStr {
		e.advanceToSeparator(true)
		e.advanceToSeparator(false)
		return true
	}
	if e.omitMatches(r) {
		e.advanceToSeparator(true)
		e.advanceToSeparator(false)
		return true
	}
	return e.skipIdentifierPrefix()
}

// omitMatches implements the "omit test": looks
// leftward up to len(tag) bytes from each cursor and requires those
// bytes to equal tag on both sides.
func (e *Engine) omitMatches(r rule.Rule) bool {
	if !r.Flags.Omit || r.Tag == "" {
		return false
	}
	tag := []byte(r.Tag)
	return tagPrecedes(e.lhs, e.lhsLen, e.lhsPos, tag) && tagPrecedes(e.rhs, e.rhsLen, e.rhsPos, tag)
}

func tagPrecedes(buf []byte, n, pos int, tag []byte) bool {
	if pos > n {
		pos = n
	}
	start := pos - len(tag)
	if start < 0 {
		return false
	}
	for i, b := range tag {
		if buf[start+i] != b {
			return false
		}
	}
	return true
}

// skipIdentifierPrefix advances both cursors in lockstep across the
// matching identifier prefix preceding a non-number-start position,
// stopping at the next separator (or end of line) on both sides. It
// reports false if the identifiers themselves differ before both sides
// reach a separator together, or if no byte was consumed.
func (e *Engine) skipIdentifierPrefix() bool {
	advanced := false
	for {
		lb := e.byteAt(true, e.lhsPos)
		rb := e.byteAt(false, e.rhsPos)
		lSep := lb == 0 || numlit.IsSeparator(lb, e.kept)
		rSep := rb == 0 || numlit.IsSeparator(rb, e.kept)
		if lSep && rSep {
			return advanced
		}
		if lSep || rSep || lb != rb {
			return false
		}
		e.lhsPos++
		e.rhsPos++
		advanced = true
	}
}

// reportTextDiff handles a text-level
// difference. It emits a diagnostic (subject to the diff cap and
// NoFail), fires OnFail if requested, and advances both cursors one
// past the mismatch.
func (e *Engine) reportTextDiff(r rule.Rule) {
	e.diffCount++
	if !r.Flags.NoFail && e.diffCount <= e.maxDiffs {
		e.sink.Warning("%s", textDiffMessage(e))
	}
	if r.Flags.OnFail {
		e.fireOnFail(r)
	}
	if e.byteAt(true, e.lhsPos) != 0 {
		e.lhsPos++
	}
	if e.byteAt(false, e.rhsPos) != 0 {
		e.rhsPos++
	}
	e.col = 0
}
