package rule

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// cmd is the historical bitmask the TOML rule file speaks in, kept only
// at this decoding boundary. Every other package works with Action/Tolerance/Flags.
type cmd uint32

const (
	cmdSkip cmd = 1 << iota
	cmdGoto
	cmdGonum
	cmdTrace
	cmdTraceR
	cmdEqu
	cmdAbs
	cmdRel
	cmdDig
	cmdIgn
	cmdOmit
	cmdIStr
	cmdAny
	cmdNoFail
	cmdOnFail
	cmdLHS
	cmdRHS
	cmdSwap
	cmdSave
	cmdSgg
	cmdGtoReg
	cmdBlank
)

// entry is the TOML shape of a single [[rule]] table.
type entry struct {
	Rows   string `toml:"rows"`   // row window, same syntax as col; "" or "*" for every row
	Col    string `toml:"col"`    // "*" for full, "n", "n-m", or "n-m/stride"
	Cmd    string `toml:"cmd"`    // space-separated flag names, e.g. "abs any"
	Abs    [2]float64 `toml:"abs"`
	AbsReg [2]int     `toml:"abs_reg"`
	Rel    [2]float64 `toml:"rel"`
	RelReg [2]int     `toml:"rel_reg"`
	Dig    [2]float64 `toml:"dig"`
	DigReg [2]int     `toml:"dig_reg"`
	Scale  float64    `toml:"scale"`
	ScaleReg int      `toml:"scale_reg"`
	Offset float64    `toml:"offset"`
	OffsetReg int     `toml:"offset_reg"`
	LHS    float64    `toml:"lhs"`
	LHSReg int        `toml:"lhs_reg"`
	RHS    float64    `toml:"rhs"`
	RHSReg int        `toml:"rhs_reg"`
	Tag    string     `toml:"tag"`
	Ops    []opEntry  `toml:"op"`
}

type opEntry struct {
	Dst int    `toml:"dst"`
	Src int    `toml:"src"`
	Src2 int   `toml:"src2"`
	Op  string `toml:"op"`
}

// File is the on-disk shape of an ndiff rule file.
type File struct {
	Registers int     `toml:"registers"` // register-file size; 0 means use the engine default
	Rule      []entry `toml:"rule"`
}

// Load reads a rule file from path and compiles it into an ordered set
// of Rules plus the register-file size it requested.
func Load(path string) ([]Rule, int, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, 0, fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}
	rules := make([]Rule, 0, len(f.Rule))
	for i, e := range f.Rule {
		r, err := compile(i+1, e)
		if err != nil {
			return nil, 0, fmt.Errorf("rule file %s, entry %d: %w", path, i+1, err)
		}
		rules = append(rules, r)
	}
	return rules, f.Registers, nil
}

func compile(index int, e entry) (Rule, error) {
	r := Rule{Index: index, Tag: e.Tag}

	rows, err := parseColumn(e.Rows)
	if err != nil {
		return Rule{}, err
	}
	r.Rows = rows

	col, err := parseColumn(e.Col)
	if err != nil {
		return Rule{}, err
	}
	r.Column = col

	c, err := parseCmd(e.Cmd)
	if err != nil {
		return Rule{}, err
	}

	switch {
	case c&cmdSkip != 0:
		r.Action = ActionSkip
	case c&cmdGoto != 0:
		r.Action = ActionGotoTag
	case c&cmdGonum != 0:
		r.Action = ActionGotoNum
	default:
		r.Action = ActionCompare
	}

	r.Tolerance = Tolerance{
		Abs: c&cmdAbs != 0,
		Rel: c&cmdRel != 0,
		Dig: c&cmdDig != 0,
		Any: c&cmdAny != 0,
	}
	r.Flags = Flags{
		Equal:  c&cmdEqu != 0,
		Ignore: c&cmdIgn != 0,
		Omit:   c&cmdOmit != 0,
		IStr:   c&cmdIStr != 0,
		Trace:  c&cmdTrace != 0,
		TraceR: c&cmdTraceR != 0,
		NoFail: c&cmdNoFail != 0,
		OnFail: c&cmdOnFail != 0,
		LHS:    c&cmdLHS != 0,
		RHS:    c&cmdRHS != 0,
		Swap:   c&cmdSwap != 0,
		Save:   c&cmdSave != 0,
		Group:  c&cmdSgg != 0,
		TagReg: c&cmdGtoReg != 0,
		Blank:  c&cmdBlank != 0,
	}

	r.Abs = Bound{Value: e.Abs[0], Reg: e.AbsReg[0]}
	r.AbsLower = lowerBound(e.Abs, e.AbsReg)
	r.Rel = Bound{Value: e.Rel[0], Reg: e.RelReg[0]}
	r.RelLower = lowerBound(e.Rel, e.RelReg)
	r.Dig = Bound{Value: e.Dig[0], Reg: e.DigReg[0]}
	r.DigLower = lowerBound(e.Dig, e.DigReg)

	r.Scale = Bound{Value: valueOrDefault(e.Scale, 1), Reg: e.ScaleReg}
	r.Offset = Bound{Value: e.Offset, Reg: e.OffsetReg}
	r.LHSLiteral = Bound{Value: e.LHS, Reg: e.LHSReg}
	r.RHSLiteral = Bound{Value: e.RHS, Reg: e.RHSReg}

	for _, oe := range e.Ops {
		op, err := parseRegOp(oe.Op)
		if err != nil {
			return Rule{}, err
		}
		r.Ops = append(r.Ops, RegOp{Dst: oe.Dst, Src: oe.Src, Src2: oe.Src2, Op: op})
	}

	return r, nil
}

func valueOrDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// lowerBound derives the lower bound from a [upper, lower] pair: when
// only the upper bound register/value was configured (lower is zero in
// both slots), the lower bound defaults to the negation of the upper.
func lowerBound(vals [2]float64, regs [2]int) Bound {
	if vals[1] == 0 && regs[1] == 0 {
		return Bound{Value: -vals[0], Reg: 0}
	}
	return Bound{Value: vals[1], Reg: regs[1]}
}

func parseColumn(s string) (ColumnSlice, error) {
	if s == "" || s == "*" {
		return ColumnSlice{Full: true}, nil
	}
	var start, end, stride int
	n, err := fmt.Sscanf(s, "%d-%d/%d", &start, &end, &stride)
	if err == nil && n == 3 {
		return ColumnSlice{Start: start, End: end, Stride: stride}, nil
	}
	n, err = fmt.Sscanf(s, "%d-%d", &start, &end)
	if err == nil && n == 2 {
		return ColumnSlice{Start: start, End: end, Stride: 1}, nil
	}
	n, err = fmt.Sscanf(s, "%d", &start)
	if err == nil && n == 1 {
		return ColumnSlice{Start: start, End: start + 1, Stride: 1}, nil
	}
	return ColumnSlice{}, fmt.Errorf("invalid column selector %q", s)
}

var cmdNames = map[string]cmd{
	"skip": cmdSkip, "goto": cmdGoto, "gonum": cmdGonum,
	"trace": cmdTrace, "tracer": cmdTraceR, "equ": cmdEqu,
	"abs": cmdAbs, "rel": cmdRel, "dig": cmdDig, "ign": cmdIgn,
	"omit": cmdOmit, "istr": cmdIStr, "any": cmdAny,
	"nofail": cmdNoFail, "onfail": cmdOnFail, "lhs": cmdLHS, "rhs": cmdRHS,
	"swap": cmdSwap, "save": cmdSave, "sgg": cmdSgg, "gtoreg": cmdGtoReg,
	"blank": cmdBlank,
	"dra":   cmdDig | cmdRel | cmdAbs,
}

func parseCmd(s string) (cmd, error) {
	var out cmd
	fields := splitFields(s)
	for _, f := range fields {
		bit, ok := cmdNames[f]
		if !ok {
			return 0, fmt.Errorf("unknown cmd flag %q", f)
		}
		out |= bit
	}
	return out, nil
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' || r == ',' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	sort.Strings(out) // deterministic order: the first unknown flag reported does not depend on word order
	return out
}

func parseRegOp(s string) (RegOpKind, error) {
	switch s {
	case "add":
		return RegAdd, nil
	case "sub":
		return RegSub, nil
	case "mul":
		return RegMul, nil
	case "div":
		return RegDiv, nil
	case "min":
		return RegMin, nil
	case "max":
		return RegMax, nil
	case "pow":
		return RegPow, nil
	case "mod":
		return RegMod, nil
	default:
		return 0, fmt.Errorf("unknown register op %q", s)
	}
}

// Default returns an empty rule set: every column uses plain equality
// (no tolerance requested).
func Default() []Rule { return nil }

// Save writes rules back out as a rule file: a canonical re-encoding of
// a loaded rule set, as produced by the CLI's -save-rules mode. Every
// field compile understands round-trips.
func Save(path string, rules []Rule, registers int) error {
	f := File{Registers: registers}
	for _, r := range rules {
		f.Rule = append(f.Rule, decompile(r))
	}
	out, err := os.Create(path) // #nosec G304 -- user-provided rule file path
	if err != nil {
		return fmt.Errorf("failed to create rule file: %w", err)
	}
	defer out.Close()
	enc := toml.NewEncoder(out)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode rule file: %w", err)
	}
	return nil
}

func decompile(r Rule) entry {
	e := entry{Tag: r.Tag}
	if r.Rows.Full || r.Rows == (ColumnSlice{}) {
		e.Rows = "*"
	} else {
		e.Rows = fmt.Sprintf("%d-%d/%d", r.Rows.Start, r.Rows.End, r.Rows.Stride)
	}
	if r.Column.Full {
		e.Col = "*"
	} else {
		e.Col = fmt.Sprintf("%d-%d/%d", r.Column.Start, r.Column.End, r.Column.Stride)
	}
	var words []string
	switch r.Action {
	case ActionSkip:
		words = append(words, "skip")
	case ActionGotoTag:
		words = append(words, "goto")
	case ActionGotoNum:
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
	e.Cmd = joinFields(words)
	e.Abs = [2]float64{r.Abs.Value, r.AbsLower.Value}
	e.AbsReg = [2]int{r.Abs.Reg, r.AbsLower.Reg}
	e.Rel = [2]float64{r.Rel.Value, r.RelLower.Value}
	e.RelReg = [2]int{r.Rel.Reg, r.RelLower.Reg}
	e.Dig = [2]float64{r.Dig.Value, r.DigLower.Value}
	e.DigReg = [2]int{r.Dig.Reg, r.DigLower.Reg}
	e.Scale = r.Scale.Value
	e.ScaleReg = r.Scale.Reg
	e.Offset = r.Offset.Value
	e.OffsetReg = r.Offset.Reg
	e.LHS = r.LHSLiteral.Value
	e.LHSReg = r.LHSLiteral.Reg
	e.RHS = r.RHSLiteral.Value
	e.RHSReg = r.RHSLiteral.Reg
	for _, op := range r.Ops {
		e.Ops = append(e.Ops, opEntry{Dst: op.Dst, Src: op.Src, Src2: op.Src2, Op: opName(op.Op)})
	}
	return e
}

// opName is the inverse of parseRegOp.
func opName(k RegOpKind) string {
	switch k {
	case RegAdd:
		return "add"
	case RegSub:
		return "sub"
	case RegMul:
		return "mul"
	case RegDiv:
		return "div"
	case RegMin:
		return "min"
	case RegMax:
		return "max"
	case RegPow:
		return "pow"
	case RegMod:
		return "mod"
	default:
		return "add"
	}
}

func joinFields(words []string) string {
	s := ""
	for i, w := range words {
		if i > 0 {
			s += " "
		}
		s += w
	}
	return s
}
