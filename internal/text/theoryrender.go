package text

import (
	"strconv"
	"strings"

	"aspif/internal/theory"
	"aspif/internal/wire"
)

// theoryRenderer turns theory store content into ground syntax text,
// ported from aspif_text.cpp's TheoryAtomStringBuilder. litText renders a
// program literal (used for element conditions), reusing whatever binding
// the writer currently has for that literal's atom.
type theoryRenderer struct {
	store   *theory.Store
	litText func(wire.Lit) string
}

// isOperatorSymbol reports whether a symbol term can be used as a prefix
// or infix operator: its first character is an operator character, per
// TheoryAtomStringBuilder's function() check. The rest of the symbol is
// not examined.
func isOperatorSymbol(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexByte("/!<=>+-*\\?&@|:;~^.", s[0]) >= 0
}

func (r theoryRenderer) term(id uint32) (string, error) {
	t, err := r.store.GetTerm(id)
	if err != nil {
		return "", err
	}
	switch t.Type {
	case theory.Number:
		return strconv.Itoa(int(t.Number)), nil
	case theory.Symbol:
		return t.Symbol, nil
	default:
		if t.IsFunction() {
			fn, err := r.store.GetTerm(uint32(t.Base))
			if err != nil {
				return "", err
			}
			if fn.Type == theory.Symbol && isOperatorSymbol(fn.Symbol) && (len(t.Args) == 1 || len(t.Args) == 2) {
				args := make([]string, len(t.Args))
				for i, a := range t.Args {
					s, err := r.term(a)
					if err != nil {
						return "", err
					}
					args[i] = s
				}
				if len(args) == 1 {
					return fn.Symbol + args[0], nil
				}
				return args[0] + " " + fn.Symbol + " " + args[1], nil
			}
			fnText, err := r.term(uint32(t.Base))
			if err != nil {
				return "", err
			}
			argText, err := r.joinTermsErr(t.Args)
			if err != nil {
				return "", err
			}
			return fnText + "(" + argText + ")", nil
		}
		o, c := theory.TupleType(t.Base).Parens()
		argText, err := r.joinTermsErr(t.Args)
		if err != nil {
			return "", err
		}
		return o + argText + c, nil
	}
}

func (r theoryRenderer) joinTermsErr(ids []uint32) (string, error) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		s, err := r.term(id)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, ", "), nil
}

func (r theoryRenderer) element(id uint32) (string, error) {
	e, err := r.store.GetElement(id)
	if err != nil {
		return "", err
	}
	text, err := r.joinTermsErr(e.Terms)
	if err != nil {
		return "", err
	}
	if e.Cond == 0 || e.Cond == theory.CondDeferred {
		return text, nil
	}
	return text + " : " + r.litText(wire.Lit(e.Cond)), nil
}

// atom renders a theory atom as "&name{elements}" plus an optional guard
// suffix " op rhs".
func (r theoryRenderer) atom(a theory.Atom) (string, error) {
	name, err := r.term(a.Term)
	if err != nil {
		return "", err
	}
	elems := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		s, err := r.element(e)
		if err != nil {
			return "", err
		}
		elems[i] = s
	}
	text := "&" + name + "{" + strings.Join(elems, "; ") + "}"
	if a.HasGuard {
		op, err := r.term(a.Op)
		if err != nil {
			return "", err
		}
		rhs, err := r.term(a.Rhs)
		if err != nil {
			return "", err
		}
		text += " " + op + " " + rhs
	}
	return text, nil
}
