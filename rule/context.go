package rule

import "strings"

// Set is the standard Context implementation: an ordered rule list, as
// loaded from a rule file, consulted in file order. Rule files are
// written with row windows in ascending order; GetIncremental exploits
// that by retiring rules whose row window has been passed, so repeated
// lookups over a long comparison stay O(1) amortized.
type Set struct {
	rules  []Rule
	cursor int
	failed int
	onFail func(Rule)
}

// NewSet builds a Set over rules, which are consulted in order.
func NewSet(rules []Rule) *Set {
	return &Set{rules: rules}
}

// SetOnFail installs the hook invoked by OnFail for rules carrying the
// onfail flag.
func (s *Set) SetOnFail(fn func(Rule)) { s.onFail = fn }

// Failures returns how many times OnFail has fired.
func (s *Set) Failures() int { return s.failed }

// expired reports whether r can never again apply at or after row.
func expired(r Rule, row int) bool {
	return !r.Rows.Full && r.Rows.End > 0 && row >= r.Rows.End
}

// match reports whether r applies at (row, col). col 0 is the driver's
// row-level query, which any rule active on the row answers.
func match(r Rule, row, col int) bool {
	if !r.Rows.IsElement(row) {
		return false
	}
	return col == 0 || r.Column.IsElement(col)
}

// GetIncremental returns the rule applicable at (row, col), advancing
// the hidden cursor past rules whose row window is exhausted.
func (s *Set) GetIncremental(row, col int) (Rule, bool) {
	for s.cursor < len(s.rules) && expired(s.rules[s.cursor], row) {
		s.cursor++
	}
	return s.scan(s.cursor, row, col)
}

// GetAt performs a true random-access lookup, scanning the full rule
// list from the start rather than from the incremental cursor. The
// engine's check mode relies on this independence: if the cursor ever
// retires a rule it should not have, GetAt still finds it and the two
// lookups disagree.
func (s *Set) GetAt(row, col int) (Rule, bool) {
	i := 0
	for i < len(s.rules) && expired(s.rules[i], row) {
		i++
	}
	return s.scan(i, row, col)
}

func (s *Set) scan(from, row, col int) (Rule, bool) {
	for i := from; i < len(s.rules); i++ {
		if match(s.rules[i], row, col) {
			return s.rules[i], true
		}
	}
	return Rule{}, false
}

// OnFail records a failure and invokes the installed hook, if any.
func (s *Set) OnFail(r Rule) {
	s.failed++
	if s.onFail != nil {
		s.onFail(r)
	}
}

// FindIndex returns the rule with the given ordinal index.
func (s *Set) FindIndex(idx int) (Rule, bool) {
	for _, r := range s.rules {
		if r.Index == idx {
			return r, true
		}
	}
	return Rule{}, false
}

// FindLine returns the first rule whose source line contains line.
func (s *Set) FindLine(line string) (Rule, bool) {
	for _, r := range s.rules {
		if r.Source != "" && strings.Contains(r.Source, line) {
			return r, true
		}
	}
	return Rule{}, false
}

// Print renders the full rule list, one rule per line, for the fatal
// check-mode dump.
func (s *Set) Print() string {
	var b strings.Builder
	for _, r := range s.rules {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	return b.String()
}
