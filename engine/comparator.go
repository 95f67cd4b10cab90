package engine

import (
	"math"
	"strconv"

	"github.com/cairnsoft/ndiff/diag"
	"github.com/cairnsoft/ndiff/numlit"
	"github.com/cairnsoft/ndiff/regfile"
	"github.com/cairnsoft/ndiff/rule"
)

// span is one side's parsed numeric literal at the engine's current
// cursor.
type span struct {
	text    string
	value   float64
	result  numlit.Result
	present bool // false when parse_number failed (len=0)
}

func (e *Engine) parseSpan(lhsSide bool) span {
	buf, n := e.lineBuf(lhsSide)
	pos := e.lhsPos
	if !lhsSide {
		pos = e.rhsPos
	}
	if pos >= n {
		return span{}
	}
	r := numlit.Parse(buf[pos:n])
	if r.Len == 0 {
		return span{}
	}
	text := string(buf[pos : pos+r.Len])
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return span{}
	}
	return span{text: text, value: v, result: r, present: true}
}

// TestNum parses the pair of numeric spans at the engine's current
// cursors, checks them against r, emits a diagnostic on failure, writes
// the reserved registers and the rule's register operations, and
// advances both cursors past the compared spans.
func (e *Engine) TestNum(r rule.Rule) rule.FailBits {
	lhs := e.parseSpan(true)
	rhs := e.parseSpan(false)

	if !lhs.present || !rhs.present {
		return e.missingNumber(r, lhs, rhs)
	}

	// reg_getval(reg, default) where default is the rule's literal
	// override when lhs/rhs is set, else the parsed value; Bound.Resolve already implements reg_getval's shape.
	lhsDefault := lhs.value
	if r.Flags.LHS {
		lhsDefault = r.LHSLiteral.Value
	}
	lhsVal := rule.Bound{Value: lhsDefault, Reg: r.LHSLiteral.Reg}.Resolve(e.regs)

	rhsDefault := rhs.value
	if r.Flags.RHS {
		rhsDefault = r.RHSLiteral.Value
	}
	rhsVal := rule.Bound{Value: rhsDefault, Reg: r.RHSLiteral.Reg}.Resolve(e.regs)

	scl := r.Scale.Resolve(e.regs)
	if r.Scale.Reg == 0 && r.Scale.Value == 0 {
		scl = 1
	}
	off := r.Offset.Resolve(e.regs)

	minMag := math.Min(math.Abs(lhsVal), math.Abs(rhsVal))
	if minMag == 0 {
		minMag = 1
	}
	maxDigits := lhs.result.IntDigits
	if rhs.result.IntDigits > maxDigits {
		maxDigits = rhs.result.IntDigits
	}
	powDec := math.Pow(10, -float64(maxDigits))

	if r.Flags.Swap {
		lhsVal, rhsVal = rhsVal, lhsVal
	}

	dif := lhsVal - rhsVal
	errv := scl*dif + off
	absErr := errv
	relErr := absErr / minMag
	digErr := absErr / (minMag * powDec)

	var bits rule.FailBits
	isFloat := lhs.result.IsFloat || rhs.result.IsFloat

	switch {
	case r.Flags.Ignore:
		// pass
	case r.Flags.Omit && e.omitMatches(r):
		// pass
	case r.Flags.Equal:
		if lhs.text != rhs.text {
			bits |= rule.FailEqual
		}
	case r.Tolerance.None():
		// No abs/rel/dig metric requested: fall back to exact value
		// equality on the resolved, scaled values.
		if dif != 0 {
			bits |= rule.FailEqual
		}
	default:
		requested := requestedBits(r.Tolerance)
		if r.Tolerance.Abs {
			if checkBound(absErr, r.Abs, r.AbsLower, e.regs) {
				bits |= rule.FailAbs
			}
		}
		if r.Tolerance.Rel {
			if checkBound(relErr, r.Rel, r.RelLower, e.regs) {
				bits |= rule.FailRel
			}
		}
		if r.Tolerance.Dig && isFloat {
			if checkBound(digErr, r.Dig, r.DigLower, e.regs) {
				bits |= rule.FailDig
			}
		}
		if r.Tolerance.Any && bits.Any(requested) {
			bits = 0
		}
	}

	if r.Flags.Trace {
		e.sink.Trace("rule#%d row %d col %d: lhs=%g rhs=%g abs=%g rel=%g dig=%g fail=%s",
			r.Index, e.row, e.col, lhsVal, rhsVal, absErr, relErr, digErr, bits)
	}

	if bits != 0 {
		e.emitFailure(r, lhs, rhs, bits, dif, absErr, relErr, digErr)
		if r.Flags.OnFail {
			e.fireOnFail(r)
		}
	}

	if bits == 0 || r.Flags.Save {
		e.writeRegisters(r, lhsVal, rhsVal, dif, errv, absErr, relErr, digErr, minMag, powDec)
	}

	e.lhsPos += lhs.result.Len
	e.rhsPos += rhs.result.Len
	return bits
}

func requestedBits(t rule.Tolerance) rule.FailBits {
	var b rule.FailBits
	if t.Abs {
		b |= rule.FailAbs
	}
	if t.Rel {
		b |= rule.FailRel
	}
	if t.Dig {
		b |= rule.FailDig
	}
	return b
}

// checkBound reports whether actual falls outside [lower, upper], where
// upper/lower resolve through their own register overrides and lower
// defaults to -upper when the rule left it unconfigured (rule/toml.go
// lowerBound already bakes that default in at load time).
func checkBound(actual float64, upper, lower rule.Bound, regs *regfile.File) bool {
	u := upper.Resolve(regs)
	l := lower.Resolve(regs)
	return actual > u || actual < l
}

func (e *Engine) missingNumber(r rule.Rule, lhs, rhs span) rule.FailBits {
	if r.Flags.Ignore || r.Flags.IStr {
		e.advancePast(lhs, rhs)
		return 0
	}
	side := "both"
	switch {
	case !lhs.present && rhs.present:
		side = "lhs"
	case lhs.present && !rhs.present:
		side = "rhs"
	}
	e.diffCount++
	if !r.Flags.NoFail && e.diffCount <= e.maxDiffs {
		e.sink.Warning("%s", diag.MissingNumber(e.position(), side))
	}
	if r.Flags.OnFail {
		e.fireOnFail(r)
	}
	e.advancePast(lhs, rhs)
	return rule.FailMissing
}

// skipPair advances both cursors past the numeric spans at the current
// position without comparing them, for columns a rule does not select.
func (e *Engine) skipPair() {
	e.advancePast(e.parseSpan(true), e.parseSpan(false))
}

func (e *Engine) advancePast(lhs, rhs span) {
	if lhs.present {
		e.lhsPos += lhs.result.Len
	} else if e.byteAt(true, e.lhsPos) != 0 {
		e.lhsPos++
	}
	if rhs.present {
		e.rhsPos += rhs.result.Len
	} else if e.byteAt(false, e.rhsPos) != 0 {
		e.rhsPos++
	}
}

func (e *Engine) emitFailure(r rule.Rule, lhs, rhs span, bits rule.FailBits, dif, absErr, relErr, digErr float64) {
	e.diffCount++
	if r.Flags.NoFail || e.diffCount > e.maxDiffs {
		return
	}
	metric := bits.String()
	var bound, lower, actual float64
	switch {
	case bits&rule.FailAbs != 0:
		bound, lower, actual = r.Abs.Resolve(e.regs), r.AbsLower.Resolve(e.regs), absErr
	case bits&rule.FailRel != 0:
		bound, lower, actual = r.Rel.Resolve(e.regs), r.RelLower.Resolve(e.regs), relErr
	case bits&rule.FailDig != 0:
		bound, lower, actual = r.Dig.Resolve(e.regs), r.DigLower.Resolve(e.regs), digErr
	case bits&rule.FailEqual != 0:
		actual = dif
	}
	e.sink.Warning("%s", diag.Diff(e.position(), metric, lhs.text, rhs.text, bound, lower, actual))
}

func (e *Engine) writeRegisters(r rule.Rule, lhsVal, rhsVal, dif, errv, absErr, relErr, digErr, minMag, powDec float64) {
	e.regs.Set(regfile.RLHS, lhsVal)
	e.regs.Set(regfile.RRHS, rhsVal)
	e.regs.Set(regfile.RDiff, dif)
	e.regs.Set(regfile.RErr, errv)
	e.regs.Set(regfile.RAbsErr, absErr)
	e.regs.Set(regfile.RRelErr, relErr)
	e.regs.Set(regfile.RDigErr, digErr)
	e.regs.Set(regfile.RMin, minMag)
	e.regs.Set(regfile.RPow, powDec)

	for _, op := range r.Ops {
		target := translateOp(op)
		e.regs.Eval(op.Dst, op.Src, op.Src2, target)
		if r.Flags.TraceR {
			e.sink.Trace("rule#%d: reg[%d] = reg[%d] %s reg[%d] -> %g",
				r.Index, op.Dst, op.Src, target, op.Src2, e.regs.Get(op.Dst, 0))
		}
	}
}

// translateOp reconstructs the regfile.Op from rule.RegOp.Op, a leaf-package
// mirror (rule/rule.go) kept so that package rule never imports regfile.
func translateOp(op rule.RegOp) regfile.Op {
	switch op.Op {
	case rule.RegAdd:
		return regfile.OpAdd
	case rule.RegSub:
		return regfile.OpSub
	case rule.RegMul:
		return regfile.OpMul
	case rule.RegDiv:
		return regfile.OpDiv
	case rule.RegMin:
		return regfile.OpMin
	case rule.RegMax:
		return regfile.OpMax
	case rule.RegPow:
		return regfile.OpPow
	case rule.RegMod:
		return regfile.OpMod
	default:
		return regfile.OpAdd
	}
}
