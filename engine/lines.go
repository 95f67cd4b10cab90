package engine

import "io"

// ReadLine fills both buffers from their respective line sources,
// growing a buffer as needed, stopping at newline or EOF on each side
// independently. It resets both cursors to 0 and increments row by 1.
// It returns io.EOF if either side hit EOF.
func (e *Engine) ReadLine() error {
	e.row++
	e.col = 0
	e.lhsPos, e.rhsPos = 0, 0

	lhsEOF, err := e.readOneLine(true)
	if err != nil {
		return err
	}
	rhsEOF, err := e.readOneLine(false)
	if err != nil {
		return err
	}
	if lhsEOF || rhsEOF {
		return io.EOF
	}
	return nil
}

// readOneLine reads a single logical line into the selected buffer,
// growing it as needed, and reports whether that side hit EOF.
func (e *Engine) readOneLine(lhsSide bool) (bool, error) {
	src := e.rhsSrc
	if lhsSide {
		src = e.lhsSrc
	}

	total := 0
	eof := false
	for {
		buf := e.bufFor(lhsSide)
		n, last, hitEOF, err := readChunk(src, buf[total:])
		if err != nil {
			return false, err
		}
		total += n
		if hitEOF {
			eof = true
			break
		}
		if last == '\n' {
			break
		}
		// Buffer exhausted without a newline or EOF: grow and continue.
		e.growSide(lhsSide, total+1)
	}

	e.setLen(lhsSide, total)
	return eof, nil
}

// readChunk reads from src into buf until buf is full, a newline is
// consumed, or EOF is hit.
func readChunk(src interface {
	ReadLine(buf []byte) (byte, int, error)
}, buf []byte) (n int, last byte, eof bool, err error) {
	last, n, err = src.ReadLine(buf)
	if err == io.EOF {
		return n, last, true, nil
	}
	if err != nil {
		return n, last, false, err
	}
	return n, last, false, nil
}

func (e *Engine) bufFor(lhsSide bool) []byte {
	if lhsSide {
		return e.lhs
	}
	return e.rhs
}

func (e *Engine) growSide(lhsSide bool, need int) {
	if lhsSide {
		e.ensureCap(&e.lhs, need)
	} else {
		e.ensureCap(&e.rhs, need)
	}
}

func (e *Engine) setLen(lhsSide bool, n int) {
	if lhsSide {
		e.lhsLen = n
	} else {
		e.rhsLen = n
	}
}

// SkipLine discards one logical line from each side without filling the
// buffers, still incrementing row.
func (e *Engine) SkipLine() error {
	e.row++
	e.col = 0
	e.lhsPos, e.rhsPos = 0, 0
	e.lhsLen, e.rhsLen = 0, 0

	lhsEOF, lhsErr := e.lhsSrc.SkipLine()
	rhsEOF, rhsErr := e.rhsSrc.SkipLine()
	if lhsErr != nil {
		return lhsErr
	}
	if rhsErr != nil {
		return rhsErr
	}
	if lhsEOF || rhsEOF {
		return io.EOF
	}
	return nil
}

// FillLine injects pre-made content into both buffers, bypassing the
// line sources (used by tests and by inline comparisons a rule file may
// supply). It resets cursors to 0 and increments row.
func (e *Engine) FillLine(lhsStr, rhsStr string) {
	e.row++
	e.col = 0
	e.lhsPos, e.rhsPos = 0, 0

	e.ensureCap(&e.lhs, len(lhsStr)+1)
	e.ensureCap(&e.rhs, len(rhsStr)+1)
	e.lhsLen = copy(e.lhs, lhsStr)
	e.rhsLen = copy(e.rhs, rhsStr)
}

// OutLine echoes the currently held pair to the optional output sinks
// (used by the driver to emit matching lines verbatim).
func (e *Engine) OutLine(lhsOut, rhsOut io.Writer) error {
	if lhsOut != nil {
		if _, err := lhsOut.Write(e.lhs[:e.lhsLen]); err != nil {
			return err
		}
		if _, err := lhsOut.Write([]byte{'\n'}); err != nil {
			return err
		}
	}
	if rhsOut != nil {
		if _, err := rhsOut.Write(e.rhs[:e.rhsLen]); err != nil {
			return err
		}
		if _, err := rhsOut.Write([]byte{'\n'}); err != nil {
			return err
		}
	}
	return nil
}
