package text

import (
	"strconv"
	"strings"

	"aspif/internal/errkit"
)

// AtomPred is the reserved naming scheme used to render an atom that has
// no explicit binding from OutputAtom. The default scheme (defaultAtomPred)
// renders atom n as "x_n"; SetAtomPred lets a caller switch to "pred" + n (zero-arity) or
// "pred(" + n + ")" (one-arity), matching the C's AspifTextOutput::setAtomPred.
type AtomPred struct {
	pred  string
	arity int
}

var defaultAtomPred = AtomPred{pred: "x_", arity: 0}

// parseAtomPred validates and builds the scheme named by a "pred" or
// "pred/arity" string, where arity is 0 or 1. Grounded on test_text.cpp's
// "set atom predicate" subsections: a scheme name must look like an
// identifier (no leading '-', no parentheses) and contain at least one
// letter, so bare reserved-looking forms such as "_", "_1" or an
// upper-cased "Atom_" are rejected the same way a malformed /arity suffix
// is.
func parseAtomPred(spec string) (AtomPred, error) {
	base := spec
	arity := 0
	if idx := strings.IndexByte(spec, '/'); idx >= 0 {
		base = spec[:idx]
		rest := spec[idx+1:]
		if strings.IndexByte(rest, '/') >= 0 {
			return AtomPred{}, errkit.Precondition("invalid atom predicate '%s': too many '/'", spec)
		}
		n, err := strconv.Atoi(rest)
		if err != nil || (n != 0 && n != 1) {
			return AtomPred{}, errkit.Precondition("invalid atom predicate '%s': arity must be 0 or 1", spec)
		}
		arity = n
	}
	if base == "" || base[0] == '-' || !isIdentStart(base[0]) {
		return AtomPred{}, errkit.Precondition("invalid atom predicate '%s'", spec)
	}
	hasLetter := false
	for i := 0; i < len(base); i++ {
		c := base[i]
		if c == '(' || c == ')' {
			return AtomPred{}, errkit.Precondition("invalid atom predicate '%s'", spec)
		}
		if !isIdentChar(c) {
			return AtomPred{}, errkit.Precondition("invalid atom predicate '%s'", spec)
		}
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			hasLetter = true
		}
	}
	if !hasLetter {
		return AtomPred{}, errkit.Precondition("invalid atom predicate '%s'", spec)
	}
	return AtomPred{pred: base, arity: arity}, nil
}

// Render produces the default textual form for an atom with no explicit
// binding.
func (p AtomPred) Render(id uint32) string {
	if p.arity == 0 {
		return p.pred + strconv.FormatUint(uint64(id), 10)
	}
	return p.pred + "(" + strconv.FormatUint(uint64(id), 10) + ")"
}

// Match reports whether name is the reserved rendering of some atom id
// under this scheme, and if so which one. Used to detect a clash where an
// explicitly bound name structurally collides with the reserved scheme for
// a different atom (test_text.cpp's "reserved name" / "mismatch" and
// "clash" subsections).
func (p AtomPred) Match(name string) (id uint32, ok bool) {
	if p.arity == 0 {
		if !strings.HasPrefix(name, p.pred) {
			return 0, false
		}
		digits := name[len(p.pred):]
		return parseDigits(digits)
	}
	if !strings.HasPrefix(name, p.pred+"(") || !strings.HasSuffix(name, ")") {
		return 0, false
	}
	digits := name[len(p.pred)+1 : len(name)-1]
	return parseDigits(digits)
}

func parseDigits(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
