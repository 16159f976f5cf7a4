// Package text implements C8 of the specification: a deferred,
// human-readable ground-syntax writer for a program. Grounded on
// original_source/potassco/aspif_text.h's AspifTextOutput and, where the
// shipped aspif_text.cpp disagrees with its own test suite (it predates
// the outputAtom/outputTerm split that AspifTextOutput's header and
// original_source/tests/test_text.cpp both already assume), on
// test_text.cpp directly — the tests are the authoritative behavior here.
package text

import (
	"errors"

	"aspif/internal/errkit"
)

// parsePredicate implements the §4.7 grammar: an identifier prefix (an
// optional leading '-' for classical negation, then a lowercase letter or
// '_', then more identifier characters), optionally followed by a
// balanced, comma-separated argument list. Commas and parens inside a
// double-quoted string (with '\' as escape) don't count toward balancing.
// ok is false with a nil error when name doesn't start with a legal
// identifier prefix at all (such names are term-like, not atom-like, per
// §4.7's "names not matching the identifier rule"). A legal prefix
// followed by malformed argument syntax is a fatal error, matching the
// library's eager validation of outputAtom's name.
func parsePredicate(name string) (pred string, arity int, ok bool, err error) {
	i := 0
	if i < len(name) && name[i] == '-' {
		i++
	}
	if i >= len(name) || !isIdentStart(name[i]) {
		return "", 0, false, nil
	}
	for i < len(name) && isIdentChar(name[i]) {
		i++
	}
	if i == len(name) {
		return name, 0, true, nil
	}
	if name[i] != '(' {
		return "", 0, false, nil
	}
	n, end, err := countArgs(name, i)
	if err != nil {
		return "", 0, false, errkit.Precondition("invalid predicate '%s': %s", name, err)
	}
	if end != len(name) {
		return "", 0, false, errkit.Precondition("invalid predicate '%s': trailing characters", name)
	}
	return name, n, true, nil
}

func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') }

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// countArgs counts the top-level, comma-separated arguments of the
// parenthesized list starting at name[open] (name[open] == '('). It
// returns the argument count and the index just past the matching ')'.
func countArgs(name string, open int) (int, int, error) {
	depth := 0
	args := 0
	sawArg := false
	i := open
	for i < len(name) {
		c := name[i]
		switch {
		case c == '"':
			i++
			for i < len(name) && name[i] != '"' {
				if name[i] == '\\' && i+1 < len(name) {
					i++
				}
				i++
			}
			if i >= len(name) {
				return 0, 0, errors.New("unterminated string")
			}
			i++
			sawArg = true
		case c == '(':
			depth++
			if depth > 1 {
				sawArg = true
			}
			i++
		case c == ')':
			depth--
			if depth == 0 {
				if sawArg {
					args++
				} else if args > 0 {
					return 0, 0, errors.New("empty argument")
				}
				return args, i + 1, nil
			}
			i++
		case c == ',' && depth == 1:
			if !sawArg {
				return 0, 0, errors.New("empty argument")
			}
			args++
			sawArg = false
			i++
		default:
			if depth == 0 {
				return 0, 0, errors.New("trailing characters")
			}
			if c != ' ' {
				sawArg = true
			}
			i++
		}
	}
	return 0, 0, errors.New("unmatched '('")
}
