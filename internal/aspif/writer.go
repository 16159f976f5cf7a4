package aspif

import (
	"bufio"
	"fmt"
	"io"

	"aspif/internal/wire"
)

// Writer renders the directives it receives as one ASPIF line per
// directive, implementing C5 (and wire.Sink, so it can sit downstream of
// a Parser or a Converter without either needing a concrete type).
type Writer struct {
	w       *bufio.Writer
	rev     int
	started bool
}

// NewWriter returns a Writer over w. rev is the aspif revision written in
// the header (the spec's examples all use 0).
func NewWriter(w io.Writer, rev int) *Writer {
	return &Writer{w: bufio.NewWriter(w), rev: rev}
}

// Reset clears the started flag so the next InitProgram call re-emits the
// header, letting one Writer value be reused across independent programs.
func (wr *Writer) Reset() { wr.started = false }

// Flush flushes any buffered output. Callers must call it (or have
// EndStep do so, see below) before relying on the underlying writer's
// contents.
func (wr *Writer) Flush() error { return wr.w.Flush() }

func (wr *Writer) line(format string, args ...any) error {
	if _, err := fmt.Fprintf(wr.w, format+"\n", args...); err != nil {
		return err
	}
	return nil
}

func (wr *Writer) InitProgram(incremental bool) error {
	if wr.started {
		return nil
	}
	wr.started = true
	if incremental {
		return wr.line("asp 1 0 %d incremental", wr.rev)
	}
	return wr.line("asp 1 0 %d", wr.rev)
}

func (wr *Writer) BeginStep() error { return nil }

func atomList(atoms []wire.Atom) string {
	s := ""
	for _, a := range atoms {
		s += fmt.Sprintf(" %d", a)
	}
	return s
}

func litList(lits []wire.Lit) string {
	s := ""
	for _, l := range lits {
		s += fmt.Sprintf(" %d", l)
	}
	return s
}

func wlitList(wls []wire.WLit) string {
	s := ""
	for _, wl := range wls {
		s += fmt.Sprintf(" %d %d", wl.Lit, wl.Weight)
	}
	return s
}

func (wr *Writer) Rule(r wire.Rule) error {
	head := fmt.Sprintf("1 %d %d%s", r.HeadType, len(r.Head), atomList(r.Head))
	switch r.BodyType {
	case wire.Normal:
		return wr.line("%s %d %d%s", head, wire.Normal, len(r.Normal), litList(r.Normal))
	default:
		// Every weighted body is written as a sum body regardless of its
		// in-memory BodyType (Sum or Count): ASPIF has no wire encoding for
		// a "count" body, and AspifOutput::rule hardcodes BodyType::sum the
		// same way.
		return wr.line("%s %d %d %d%s", head, wire.Sum, r.Agg.Bound, len(r.Agg.Lits), wlitList(r.Agg.Lits))
	}
}

func (wr *Writer) Minimize(m wire.Minimize) error {
	return wr.line("2 %d %d%s", m.Priority, len(m.Lits), wlitList(m.Lits))
}

func (wr *Writer) Output(text string, cond []wire.Lit) error {
	return wr.line("4 %d %s %d%s", len(text), text, len(cond), litList(cond))
}

func (wr *Writer) OutputAtom(a wire.Atom, text string) error {
	return wr.Output(text, []wire.Lit{wire.Lit(a)})
}

func (wr *Writer) OutputTerm(id uint32, text string) error {
	return wr.Output(text, nil)
}

func (wr *Writer) External(a wire.Atom, v wire.TruthValue) error {
	return wr.line("5 %d %d", a, v)
}

func (wr *Writer) Assume(lits []wire.Lit) error {
	return wr.line("6 %d%s", len(lits), litList(lits))
}

func (wr *Writer) Project(atoms []wire.Atom) error {
	return wr.line("3 %d%s", len(atoms), atomList(atoms))
}

func (wr *Writer) AcycEdge(s, t int32, cond []wire.Lit) error {
	return wr.line("8 %d %d %d%s", s, t, len(cond), litList(cond))
}

func (wr *Writer) TheoryNumber(id uint32, n int32) error {
	return wr.line("9 0 %d %d", id, n)
}

func (wr *Writer) TheorySymbol(id uint32, sym string) error {
	return wr.line("9 1 %d %d %s", id, len(sym), sym)
}

func (wr *Writer) TheoryCompound(id uint32, base int32, args []uint32) error {
	s := ""
	for _, a := range args {
		s += fmt.Sprintf(" %d", a)
	}
	return wr.line("9 2 %d %d %d%s", id, base, len(args), s)
}

// TheoryElement writes an empty literal condition regardless of cond: the
// on-wire condition is a literal conjunction in a separate id space from
// theory terms (see the Parser's theoryElement case), which this Sink
// method has nowhere to carry; elements with a deferred condition round-
// trip as unconditional.
func (wr *Writer) TheoryElement(id uint32, terms []uint32, cond uint32) error {
	s := ""
	for _, t := range terms {
		s += fmt.Sprintf(" %d", t)
	}
	return wr.line("9 4 %d %d%s 0", id, len(terms), s)
}

func (wr *Writer) TheoryAtom(atomOrZero wire.Atom, term uint32, elements []uint32) error {
	s := ""
	for _, e := range elements {
		s += fmt.Sprintf(" %d", e)
	}
	return wr.line("9 5 %d %d %d%s", atomOrZero, term, len(elements), s)
}

func (wr *Writer) TheoryAtomGuard(atomOrZero wire.Atom, term uint32, elements []uint32, op, rhs uint32) error {
	s := ""
	for _, e := range elements {
		s += fmt.Sprintf(" %d", e)
	}
	return wr.line("9 6 %d %d %d%s %d %d", atomOrZero, term, len(elements), s, op, rhs)
}

func (wr *Writer) Heuristic(a wire.Atom, t wire.HeuristicType, bias int32, prio uint32, cond []wire.Lit) error {
	return wr.line("7 %d %d %d %d %d%s", t, a, bias, prio, len(cond), litList(cond))
}

func (wr *Writer) EndStep() error {
	if err := wr.line("0"); err != nil {
		return err
	}
	return wr.w.Flush()
}

var _ wire.Sink = (*Writer)(nil)
