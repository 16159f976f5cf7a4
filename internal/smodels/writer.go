package smodels

import (
	"bufio"
	"fmt"
	"io"

	"aspif/internal/errkit"
	"aspif/internal/wire"
)

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithFalseAtom designates the atom used to represent an empty
// disjunctive head (an integrity constraint). Without one, rules with
// an empty head are rejected.
func WithFalseAtom(a wire.Atom) WriterOption {
	return func(w *Writer) { w.falseAtom = a }
}

// WithClaspExt enables the clasp incremental/external-value rule types
// (90/91/92); without it, incremental programs and external directives
// are rejected.
func WithClaspExt() WriterOption {
	return func(w *Writer) { w.claspExt = true }
}

// Writer renders the directives it receives in smodels numeric format,
// implementing C6 (and wire.Sink). Unsupported constructs are rejected
// rather than silently dropped: theory data, general output conditions,
// projection, heuristics and acyclicity edges always, and externals and
// incremental programs without WithClaspExt.
type Writer struct {
	wire.Unsupported
	w           *bufio.Writer
	falseAtom   wire.Atom
	claspExt    bool
	incremental bool
	sec         int  // 0 = rules, 1 = symbols, 2 = compute written
	usedFalse   bool // whether an integrity constraint forced the false atom this step
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	wr := &Writer{Unsupported: wire.Unsupported{Name: "smodels writer"}, w: bufio.NewWriter(w)}
	for _, o := range opts {
		o(wr)
	}
	return wr
}

// Flush flushes any buffered output.
func (w *Writer) Flush() error { return w.w.Flush() }

func (w *Writer) printf(format string, args ...any) error {
	_, err := fmt.Fprintf(w.w, format, args...)
	return err
}

func (w *Writer) InitProgram(incremental bool) error {
	if incremental && !w.claspExt {
		return errkit.Unsupportedf("incremental programs not supported without clasp extensions")
	}
	w.incremental = incremental
	return nil
}

func (w *Writer) BeginStep() error {
	if w.claspExt && w.incremental {
		if err := w.printf("%d 0\n", ClaspIncrement); err != nil {
			return err
		}
	}
	w.sec = 0
	w.usedFalse = false
	return nil
}

func negSplit(lits []wire.Lit) (neg, pos []wire.Lit) {
	for _, l := range lits {
		if l < 0 {
			neg = append(neg, l)
		} else {
			pos = append(pos, l)
		}
	}
	return neg, pos
}

func (w *Writer) writeLitBody(neg, pos []wire.Lit) error {
	if err := w.printf(" %d %d", len(neg)+len(pos), len(neg)); err != nil {
		return err
	}
	for _, l := range neg {
		if err := w.printf(" %d", -l); err != nil {
			return err
		}
	}
	for _, l := range pos {
		if err := w.printf(" %d", l); err != nil {
			return err
		}
	}
	return nil
}

func negSplitW(lits []wire.WLit) (neg, pos []wire.WLit) {
	for _, wl := range lits {
		if wl.Lit < 0 {
			neg = append(neg, wl)
		} else {
			pos = append(pos, wl)
		}
	}
	return neg, pos
}

func (w *Writer) writeHead(ht wire.HeadType, head []wire.Atom) error {
	if ht == wire.Choice || len(head) > 1 {
		if err := w.printf(" %d", len(head)); err != nil {
			return err
		}
	}
	for _, a := range head {
		if err := w.printf(" %d", a); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) Rule(r wire.Rule) error {
	if w.sec != 0 {
		return errkit.Precondition("adding rules after symbols not supported")
	}
	head := r.Head
	ht := r.HeadType
	if len(head) == 0 {
		if ht == wire.Choice {
			return nil // {} :- body is vacuous, silently dropped
		}
		if w.falseAtom == 0 {
			return errkit.Precondition("empty head requires a configured false atom")
		}
		w.usedFalse = true
		head = []wire.Atom{w.falseAtom}
	}
	if r.BodyType == wire.Normal {
		rt := Choice
		switch {
		case ht == wire.Choice:
			rt = Choice
		case len(head) == 1:
			rt = Basic
		default:
			rt = Disjunctive
		}
		if err := w.printf("%d", rt); err != nil {
			return err
		}
		if err := w.writeHead(ht, head); err != nil {
			return err
		}
		neg, pos := negSplit(r.Normal)
		if err := w.writeLitBody(neg, pos); err != nil {
			return err
		}
		return w.printf("\n")
	}

	// Sum/count body: only representable with a single, non-choice head
	// atom (§4.6's converter is responsible for synthesizing an auxiliary
	// atom otherwise).
	if ht == wire.Choice || len(head) != 1 || r.Agg.Bound < 0 {
		return errkit.Precondition("weighted rule requires a single disjunctive head atom and a non-negative bound")
	}
	allUnit := true
	for _, wl := range r.Agg.Lits {
		if wl.Weight != 1 {
			allUnit = false
			break
		}
	}
	rt := Weight
	if allUnit {
		rt = Cardinality
	}
	if err := w.printf("%d", rt); err != nil {
		return err
	}
	if err := w.writeHead(ht, head); err != nil {
		return err
	}
	neg, pos := negSplitW(r.Agg.Lits)
	if rt == Weight {
		if err := w.printf(" %d", r.Agg.Bound); err != nil {
			return err
		}
	}
	if err := w.printf(" %d %d", len(neg)+len(pos), len(neg)); err != nil {
		return err
	}
	if rt == Cardinality {
		if err := w.printf(" %d", r.Agg.Bound); err != nil {
			return err
		}
	}
	for _, wl := range neg {
		if err := w.printf(" %d", -wl.Lit); err != nil {
			return err
		}
	}
	for _, wl := range pos {
		if err := w.printf(" %d", wl.Lit); err != nil {
			return err
		}
	}
	if rt == Weight {
		for _, wl := range neg {
			if err := w.printf(" %d", wl.Weight); err != nil {
				return err
			}
		}
		for _, wl := range pos {
			if err := w.printf(" %d", wl.Weight); err != nil {
				return err
			}
		}
	}
	return w.printf("\n")
}

func (w *Writer) Minimize(m wire.Minimize) error {
	if w.sec != 0 {
		return errkit.Precondition("adding rules after symbols not supported")
	}
	neg, pos := negSplitW(m.Lits)
	if err := w.printf("%d 0 %d %d", Optimize, len(neg)+len(pos), len(neg)); err != nil {
		return err
	}
	for _, wl := range neg {
		if err := w.printf(" %d", -wl.Lit); err != nil {
			return err
		}
	}
	for _, wl := range pos {
		if err := w.printf(" %d", wl.Lit); err != nil {
			return err
		}
	}
	for _, wl := range neg {
		if err := w.printf(" %d", wl.Weight); err != nil {
			return err
		}
	}
	for _, wl := range pos {
		if err := w.printf(" %d", wl.Weight); err != nil {
			return err
		}
	}
	return w.printf("\n")
}

// closeUpTo writes one "0\n" terminator per section boundary between the
// writer's current section and target, advancing sec to target. Rules and
// symbols each get their own terminator even when the symbol table is
// empty, mirroring SmodelsOutput::assume's `while (sec_ != 2) ...` loop.
func (w *Writer) closeUpTo(target int) error {
	for w.sec < target {
		if err := w.printf("0\n"); err != nil {
			return err
		}
		w.sec++
	}
	return nil
}

func (w *Writer) Output(text string, cond []wire.Lit) error {
	if w.sec > 1 {
		return errkit.Precondition("adding symbols after compute not supported")
	}
	if len(cond) != 1 || cond[0] <= 0 {
		return errkit.Unsupportedf("general output directive not supported in smodels format")
	}
	if err := w.closeUpTo(1); err != nil {
		return err
	}
	return w.printf("%d %s\n", cond[0], text)
}

func (w *Writer) OutputAtom(a wire.Atom, text string) error {
	return w.Output(text, []wire.Lit{wire.Lit(a)})
}

// External writes a clasp external-value directive. Unlike Rule/Output it
// is not gated on the current section: the original writes it wherever it
// is called, without advancing sec_.
func (w *Writer) External(a wire.Atom, v wire.TruthValue) error {
	if !w.claspExt {
		return errkit.Unsupportedf("external directive not supported in smodels format")
	}
	if v != wire.Release {
		return w.printf("%d %d %d\n", ClaspAssignExt, a, (int(v)^3)-1)
	}
	return w.printf("%d %d\n", ClaspReleaseExt, a)
}

func (w *Writer) Assume(lits []wire.Lit) error {
	if w.sec >= 2 {
		return errkit.Precondition("at most one compute statement supported in smodels format")
	}
	return w.writeCompute(lits)
}

func (w *Writer) writeCompute(lits []wire.Lit) error {
	if err := w.closeUpTo(2); err != nil {
		return err
	}
	if err := w.printf("B+\n"); err != nil {
		return err
	}
	for _, l := range lits {
		if l > 0 {
			if err := w.printf("%d\n", l); err != nil {
				return err
			}
		}
	}
	if err := w.printf("0\nB-\n"); err != nil {
		return err
	}
	for _, l := range lits {
		if l < 0 {
			if err := w.printf("%d\n", -l); err != nil {
				return err
			}
		}
	}
	if w.usedFalse && w.falseAtom != 0 {
		if err := w.printf("%d\n", w.falseAtom); err != nil {
			return err
		}
	}
	return w.printf("0\n")
}

func (w *Writer) EndStep() error {
	if w.sec < 2 {
		if err := w.writeCompute(nil); err != nil {
			return err
		}
	}
	if err := w.printf("1\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

var _ wire.Sink = (*Writer)(nil)
