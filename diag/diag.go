// Package diag implements the two diagnostic sinks the engine reports
// through: warning (counted against the diff cap) and
// trace (gated by a log level), plus the one-shot file-pair header that
// precedes the first reported diff.
package diag

import (
	"fmt"
	"io"
	"log"
)

// Position locates a reported diff within the two files being compared.
type Position struct {
	Row, Col int
	LHSFile  string
	RHSFile  string
	TestID   string
}

// Sink is where warning and trace output goes. A nil Sink value is
// valid and discards everything.
type Sink struct {
	warn     *log.Logger
	trace    *log.Logger
	traceOn  bool
	headerOn bool
	header   string
}

// New builds a Sink writing warnings to warnOut and trace lines to
// traceOut (trace lines are dropped unless traceEnabled): a logger
// that writes to io.Discard when its feature is off, rather than a
// branch at every call site.
func New(warnOut, traceOut io.Writer, traceEnabled bool) *Sink {
	if warnOut == nil {
		warnOut = io.Discard
	}
	if traceOut == nil || !traceEnabled {
		traceOut = io.Discard
	}
	return &Sink{
		warn:    log.New(warnOut, "", 0),
		trace:   log.New(traceOut, "trace: ", 0),
		traceOn: traceEnabled,
	}
}

// SetHeader arms a one-shot header identifying the two file paths (and
// an optional test-id label) to print before the first warning.
func (s *Sink) SetHeader(lhsFile, rhsFile, testID string) {
	if s == nil {
		return
	}
	h := fmt.Sprintf("comparing %s vs %s", lhsFile, rhsFile)
	if testID != "" {
		h = fmt.Sprintf("%s [%s]", h, testID)
	}
	s.header = h
	s.headerOn = true
}

// Warning emits a diagnostic, printing the one-shot header first if one
// is armed and hasn't fired yet.
func (s *Sink) Warning(format string, args ...any) {
	if s == nil {
		return
	}
	if s.headerOn {
		s.warn.Println(s.header)
		s.headerOn = false
	}
	s.warn.Printf(format, args...)
}

// Trace emits a trace line, a no-op unless tracing is enabled.
func (s *Sink) Trace(format string, args ...any) {
	if s == nil || !s.traceOn {
		return
	}
	s.trace.Printf(format, args...)
}

// Diff renders a structured failure diagnostic for a numeric comparison:
// the position, the offending substrings, which metric failed, that
// metric's actual value, and its configured bounds.
func Diff(pos Position, metric string, lhs, rhs string, bound, lower, actual float64) string {
	return fmt.Sprintf("%s:%d: col %d: %s differs: lhs=%q rhs=%q actual=%g bound=[%g,%g]",
		pos.LHSFile, pos.Row, pos.Col, metric, lhs, rhs, actual, lower, bound)
}

// TextDiff renders a non-numeric text difference diagnostic.
func TextDiff(pos Position, lhsByte, rhsByte byte) string {
	return fmt.Sprintf("%s:%d: col %d: text differs: lhs=%q rhs=%q",
		pos.LHSFile, pos.Row, pos.Col, lhsByte, rhsByte)
}

// MissingNumber renders the "missing number on one side" diagnostic.
func MissingNumber(pos Position, side string) string {
	return fmt.Sprintf("%s:%d: col %d: missing number on %s side",
		pos.LHSFile, pos.Row, pos.Col, side)
}
