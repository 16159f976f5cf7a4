// Package aspif SPDX-License-Identifier: MIT
//
// aspif implements C3 (parser) and C5 (writer) of the specification: the
// line-oriented, integer-encoded ASPIF exchange format. The scanner here
// mirrors the teacher's hand-written internal/parser.Scanner (peek/advance
// over a buffer, tracking line and column) adapted to ASPIF's discipline:
// one directive per line, integers separated by single spaces, with an
// occasional length-prefixed raw-byte string payload.
package aspif

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"aspif/internal/errkit"
)

// scanner tokenizes one line at a time from a buffered reader.
type scanner struct {
	r    *bufio.Reader
	line int
}

func newScanner(r io.Reader) *scanner {
	return &scanner{r: bufio.NewReaderSize(r, 64*1024), line: 0}
}

// nextLine reads the next line, stripping its trailing newline. Returns
// io.EOF when the stream is exhausted with no more data.
func (s *scanner) nextLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errkit.IO(err)
	}
	if line == "" && err == io.EOF {
		return "", io.EOF
	}
	s.line++
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// moreInput reports whether any non-whitespace byte remains in the
// stream, consuming whatever whitespace it skips over along the way.
// Mirrors ProgramReader::more()'s skipWs()-then-check-end, so a trailing
// blank line or final newline after a step's terminating "0" doesn't look
// like the start of another step.
func (s *scanner) moreInput() (bool, error) {
	for {
		b, err := s.r.Peek(1)
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, errkit.IO(err)
		}
		switch b[0] {
		case ' ', '\t', '\r':
			if _, err := s.r.ReadByte(); err != nil {
				return false, errkit.IO(err)
			}
		case '\n':
			if _, err := s.r.ReadByte(); err != nil {
				return false, errkit.IO(err)
			}
			s.line++
		default:
			return true, nil
		}
	}
}

// lineScanner tokenizes the integers (and, on demand, raw-byte strings)
// of a single already-read line.
type lineScanner struct {
	line int // 1-based source line, for diagnostics
	s    string
	pos  int
}

func newLineScanner(line int, s string) *lineScanner {
	return &lineScanner{line: line, s: s}
}

func (l *lineScanner) skipSpaces() {
	for l.pos < len(l.s) && l.s[l.pos] == ' ' {
		l.pos++
	}
}

func (l *lineScanner) atEnd() bool {
	l.skipSpaces()
	return l.pos >= len(l.s)
}

// int64 reads one signed decimal integer token.
func (l *lineScanner) int64() (int64, error) {
	l.skipSpaces()
	start := l.pos
	if l.pos < len(l.s) && (l.s[l.pos] == '-' || l.s[l.pos] == '+') {
		l.pos++
	}
	digitsStart := l.pos
	for l.pos < len(l.s) && l.s[l.pos] >= '0' && l.s[l.pos] <= '9' {
		l.pos++
	}
	if l.pos == digitsStart {
		return 0, errkit.Format(l.line, "expected integer at column %d", start+1)
	}
	tok := l.s[start:l.pos]
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, errkit.Overflow(l.line, "integer %q out of range", tok)
	}
	return n, nil
}

// atom reads an atom id and validates it is within [1, maxAtom].
func (l *lineScanner) atom(maxAtom uint32) (uint32, error) {
	n, err := l.int64()
	if err != nil {
		return 0, err
	}
	if n < 1 || n > int64(maxAtom) {
		return 0, errkit.Format(l.line, "atom %d out of range [1,%d]", n, maxAtom)
	}
	return uint32(n), nil
}

// id reads an unsigned id (term/element id, or an atom-or-zero).
func (l *lineScanner) id() (uint32, error) {
	n, err := l.int64()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > int64(^uint32(0)) {
		return 0, errkit.Format(l.line, "id %d out of range", n)
	}
	return uint32(n), nil
}

// lit reads a non-zero literal with |lit| <= maxAtom.
func (l *lineScanner) lit(maxAtom uint32) (int32, error) {
	n, err := l.int64()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errkit.Format(l.line, "literal must be non-zero")
	}
	abs := n
	if abs < 0 {
		abs = -abs
	}
	if abs > int64(maxAtom) {
		return 0, errkit.Format(l.line, "literal %d exceeds max atom %d", n, maxAtom)
	}
	return int32(n), nil
}

// weight reads a signed 32-bit weight.
func (l *lineScanner) weight() (int32, error) {
	n, err := l.int64()
	if err != nil {
		return 0, err
	}
	if n < -(1<<31) || n > (1<<31-1) {
		return 0, errkit.Overflow(l.line, "weight %d overflows int32", n)
	}
	return int32(n), nil
}

// rawString reads the next "<len> <bytes>" token pair: an integer length,
// a single separating space, then exactly that many raw bytes (which may
// themselves contain spaces or any byte other than newline).
func (l *lineScanner) rawString() (string, error) {
	n, err := l.int64()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", errkit.Format(l.line, "negative string length %d", n)
	}
	if l.pos >= len(l.s) || l.s[l.pos] != ' ' {
		return "", errkit.Format(l.line, "expected separator before string payload")
	}
	l.pos++ // consume the single separating space
	end := l.pos + int(n)
	if end > len(l.s) {
		return "", errkit.Format(l.line, "string payload of length %d exceeds remaining line", n)
	}
	str := l.s[l.pos:end]
	l.pos = end
	return str, nil
}

func (l *lineScanner) requireEnd() error {
	if !l.atEnd() {
		return errkit.Format(l.line, "unexpected trailing data %q", l.s[l.pos:])
	}
	return nil
}
