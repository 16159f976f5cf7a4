package text

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"aspif/internal/errkit"
	"aspif/internal/theory"
	"aspif/internal/wire"
)

// Writer renders a program in the human-readable ground syntax of §4.7.
// It implements wire.Sink but, unlike the aspif/smodels writers, buffers
// every directive of a step and only renders it at EndStep/Flush, once
// every atom and term binding the step supplies is known ("Deferred
// emission" in §4.7 — an atom can be named after it is first used in a
// rule, and the final #show summary needs the complete picture anyway).
type Writer struct {
	out io.Writer

	incremental bool
	step        int // -1 = headers never printed; else next step to announce

	theoryStore *theory.Store
	pred        AtomPred

	atomText map[wire.Atom]string    // primary inline rendering, from OutputAtom or a theory atom
	bound    map[wire.Atom]predArity // legitimate-identifier OutputAtom bindings, for #show p/n summaries
	covered  map[wire.Atom]bool      // bound, plus atoms demoted to an explicit named show
	termName map[uint32]string       // OutputTerm bindings; not otherwise consumed, see DESIGN.md

	events  []directive
	shows   []showLine
	eqRules []string
	u       map[wire.Atom]bool
}

type predArity struct {
	pred  string
	arity int
}

type showLine struct {
	text string
	cond []wire.Lit
}

type eventKind int

const (
	evRule eventKind = iota
	evMinimize
	evProject
	evExternal
	evAssume
	evHeuristic
	evEdge
	evTheory
)

type directive struct {
	kind eventKind

	rule     wire.Rule
	minimize wire.Minimize
	project  []wire.Atom

	extAtom wire.Atom
	extVal  wire.TruthValue

	assume []wire.Lit

	heuAtom wire.Atom
	heuType wire.HeuristicType
	heuBias int32
	heuPrio uint32
	heuCond []wire.Lit

	edgeS, edgeT int32
	edgeCond     []wire.Lit

	theoryIdx int
}

// Option configures a Writer.
type Option func(*Writer)

// WithWriter sets the underlying io.Writer; the default is os.Stdout.
func WithWriter(w io.Writer) Option { return func(t *Writer) { t.out = w } }

// New returns a Writer ready to receive a program via the wire.Sink
// interface.
func New(opts ...Option) *Writer {
	w := &Writer{
		out:         os.Stdout,
		step:        -1,
		theoryStore: theory.New(),
		pred:        defaultAtomPred,
		atomText:    map[wire.Atom]string{},
		bound:       map[wire.Atom]predArity{},
		covered:     map[wire.Atom]bool{},
		termName:    map[uint32]string{},
		u:           map[wire.Atom]bool{},
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// SetAtomPred switches the reserved naming scheme used for atoms with no
// explicit binding, from "p" or "p/0" (zero-arity, "p<id>") or "p/1"
// (one-arity, "p(<id>)"). It must be called before any atom is rendered
// under the scheme it replaces.
func (w *Writer) SetAtomPred(spec string) error {
	p, err := parseAtomPred(spec)
	if err != nil {
		return err
	}
	w.pred = p
	return nil
}

// Stats reports the underlying theory store's term/element/atom counts,
// for CLI --stats diagnostics.
func (w *Writer) Stats() theory.Stats { return w.theoryStore.Stats() }

func (w *Writer) touch(l wire.Lit)     { w.u[wire.AtomOf(l)] = true }
func (w *Writer) touchAtom(a wire.Atom) { w.u[a] = true }

func (w *Writer) textOf(a wire.Atom) string {
	if t, ok := w.atomText[a]; ok {
		return t
	}
	return w.pred.Render(a)
}

func (w *Writer) litText(l wire.Lit) string {
	if l < 0 {
		return "not " + w.textOf(wire.AtomOf(l))
	}
	return w.textOf(wire.AtomOf(l))
}

func (w *Writer) litList(lits []wire.Lit) string {
	parts := make([]string, len(lits))
	for i, l := range lits {
		parts[i] = w.litText(l)
	}
	return strings.Join(parts, ", ")
}

func (w *Writer) bindTheoryAtom(a wire.Atom, text string) error {
	if existing, ok := w.atomText[a]; ok {
		return errkit.Precondition("theory atom %d is already rendered as '%s'", a, existing)
	}
	w.atomText[a] = text
	return nil
}

// InitProgram records the incremental flag. A non-incremental program
// never prints "% #program" headers; an incremental one prints "base"
// before its first step and "step(n)" before every later one.
func (w *Writer) InitProgram(incremental bool) error {
	w.incremental = incremental
	if incremental {
		w.step = 0
	} else {
		w.step = -1
	}
	return nil
}

// BeginStep prints the incremental-mode step header, if any, and for step
// n > 0 advances the theory store's visibility mark so EndStep only
// renders theory content added during this step.
func (w *Writer) BeginStep() error {
	if w.step >= 0 {
		if w.step == 0 {
			io.WriteString(w.out, "% #program base.\n")
		} else {
			fmt.Fprintf(w.out, "% #program step(%d).\n", w.step)
			w.theoryStore.Update()
		}
		w.step++
	}
	return nil
}

func (w *Writer) Rule(r wire.Rule) error {
	for _, a := range r.Head {
		w.touchAtom(a)
	}
	if r.IsNormal() {
		for _, l := range r.Normal {
			w.touch(l)
		}
	} else {
		for _, wl := range r.Agg.Lits {
			w.touch(wl.Lit)
		}
	}
	w.events = append(w.events, directive{kind: evRule, rule: r})
	return nil
}

func (w *Writer) Minimize(m wire.Minimize) error {
	for _, wl := range m.Lits {
		w.touch(wl.Lit)
	}
	w.events = append(w.events, directive{kind: evMinimize, minimize: m})
	return nil
}

// Output registers a directly-named #show line, rendered once per call,
// with ": cond" appended when cond is non-empty — wire.Sink's Output already carries the display text
// itself (unlike the C++ AspifTextOutput's output(Id_t, LitSpan), which
// indirects through a prior outputTerm registration); see DESIGN.md.
func (w *Writer) Output(text string, cond []wire.Lit) error {
	for _, l := range cond {
		w.touch(l)
	}
	w.shows = append(w.shows, showLine{text: text, cond: cond})
	return nil
}

// OutputAtom binds atom a's inline rendering to name, or — when name
// doesn't look like an identifier (a quoted string, a bare tuple, an
// upper-cased name) — demotes the call to an implicit named #show of the
// atom, per test_text.cpp's "does not parse atom" / "is treated as term"
// cases. A name whose predicate/arity parses but is malformed (unbalanced
// parens, empty arguments) is a fatal, eager error. A name that
// structurally collides with the reserved default rendering of a
// different atom is also fatal. Binding the same atom to a second,
// different name doesn't overwrite its primary rendering; it synthesizes
// an equivalence rule "name :- primary." instead.
func (w *Writer) OutputAtom(a wire.Atom, name string) error {
	pred, arity, ok, err := parsePredicate(name)
	if err != nil {
		return err
	}
	if !ok {
		w.touchAtom(a)
		w.covered[a] = true
		w.shows = append(w.shows, showLine{text: name, cond: []wire.Lit{wire.Lit(a)}})
		return nil
	}
	if id, matched := w.pred.Match(name); matched && id != a {
		return errkit.Precondition("name '%s' clashes with the reserved rendering of atom %d", name, id)
	}
	if existing, has := w.atomText[a]; has {
		if existing != name {
			w.eqRules = append(w.eqRules, name+" :- "+existing+".\n")
		}
	} else {
		w.atomText[a] = name
	}
	w.bound[a] = predArity{pred: pred, arity: arity}
	w.covered[a] = true
	return nil
}

// OutputTerm records a display name for a caller-chosen term id. It is
// not otherwise consumed: see DESIGN.md for why the wire.Sink design
// collapsed the original's outputTerm/output(Id_t,...) indirection into a
// single string-carrying Output call.
func (w *Writer) OutputTerm(id uint32, text string) error {
	w.termName[id] = text
	return nil
}

func (w *Writer) External(a wire.Atom, v wire.TruthValue) error {
	w.touchAtom(a)
	w.events = append(w.events, directive{kind: evExternal, extAtom: a, extVal: v})
	return nil
}

func (w *Writer) Assume(lits []wire.Lit) error {
	for _, l := range lits {
		w.touch(l)
	}
	w.events = append(w.events, directive{kind: evAssume, assume: lits})
	return nil
}

func (w *Writer) Project(atoms []wire.Atom) error {
	for _, a := range atoms {
		w.touchAtom(a)
	}
	w.events = append(w.events, directive{kind: evProject, project: atoms})
	return nil
}

func (w *Writer) AcycEdge(s, t int32, cond []wire.Lit) error {
	for _, l := range cond {
		w.touch(l)
	}
	w.events = append(w.events, directive{kind: evEdge, edgeS: s, edgeT: t, edgeCond: cond})
	return nil
}

func (w *Writer) Heuristic(a wire.Atom, t wire.HeuristicType, bias int32, prio uint32, cond []wire.Lit) error {
	w.touchAtom(a)
	for _, l := range cond {
		w.touch(l)
	}
	w.events = append(w.events, directive{kind: evHeuristic, heuAtom: a, heuType: t, heuBias: bias, heuPrio: prio, heuCond: cond})
	return nil
}

func (w *Writer) TheoryNumber(id uint32, n int32) error {
	return w.theoryStore.AddTerm(id, theory.NumberTerm(n))
}

func (w *Writer) TheorySymbol(id uint32, sym string) error {
	return w.theoryStore.AddTerm(id, theory.SymbolTerm(sym))
}

func (w *Writer) TheoryCompound(id uint32, base int32, args []uint32) error {
	if base >= 0 {
		return w.theoryStore.AddTerm(id, theory.FunctionTerm(uint32(base), args))
	}
	return w.theoryStore.AddTerm(id, theory.TupleTerm(theory.TupleType(base), args))
}

func (w *Writer) TheoryElement(id uint32, terms []uint32, cond uint32) error {
	return w.theoryStore.AddElement(id, terms, cond)
}

func (w *Writer) TheoryAtom(atomOrZero wire.Atom, term uint32, elements []uint32) error {
	return w.addTheoryAtom(atomOrZero, term, elements, false, 0, 0)
}

func (w *Writer) TheoryAtomGuard(atomOrZero wire.Atom, term uint32, elements []uint32, op, rhs uint32) error {
	return w.addTheoryAtom(atomOrZero, term, elements, true, op, rhs)
}

func (w *Writer) addTheoryAtom(atomOrZero wire.Atom, term uint32, elements []uint32, guard bool, op, rhs uint32) error {
	if guard {
		w.theoryStore.AddAtomGuard(atomOrZero, term, elements, op, rhs)
	} else {
		w.theoryStore.AddAtom(atomOrZero, term, elements)
	}
	idx := len(w.theoryStore.Atoms()) - 1
	if atomOrZero == 0 {
		w.events = append(w.events, directive{kind: evTheory, theoryIdx: idx})
		return nil
	}
	r := theoryRenderer{store: w.theoryStore, litText: w.litText}
	text, err := r.atom(w.theoryStore.Atoms()[idx])
	if err != nil {
		return err
	}
	w.touchAtom(atomOrZero)
	return w.bindTheoryAtom(atomOrZero, text)
}

// EndStep flushes the buffered step. It is the wire.Sink hook; Flush is
// the same operation exposed under the name a caller driving the Writer
// directly (outside of a Sink pipeline) would expect.
func (w *Writer) EndStep() error { return w.Flush() }

// Flush renders every directive buffered since the last Flush, followed
// by the step's #show summary (§4.7 "Predicate parsing" / the U/B
// coverage rule below), and resets the step's buffers. Atom and term
// bindings persist across steps; only the directive/#show buffers do not.
func (w *Writer) Flush() error {
	var sb strings.Builder
	for _, eq := range w.eqRules {
		sb.WriteString(eq)
	}
	for _, d := range w.events {
		if err := w.renderDirective(&sb, d); err != nil {
			return err
		}
	}
	for _, s := range w.shows {
		if len(s.cond) == 0 {
			fmt.Fprintf(&sb, "#show %s.\n", s.text)
		} else {
			fmt.Fprintf(&sb, "#show %s : %s.\n", s.text, w.litList(s.cond))
		}
	}
	w.writeCoverage(&sb)

	if _, err := io.WriteString(w.out, sb.String()); err != nil {
		return errkit.Precondition("write: %s", err)
	}

	w.events = nil
	w.shows = nil
	w.eqRules = nil
	w.u = map[wire.Atom]bool{}
	return nil
}

func (w *Writer) writeCoverage(sb *strings.Builder) {
	if len(w.u) == 0 {
		return
	}
	full := true
	for a := range w.u {
		if !w.covered[a] {
			full = false
			break
		}
	}
	if full {
		return
	}
	heads := map[wire.Atom]bool{}
	for _, d := range w.events {
		for _, a := range d.rule.Head {
			heads[a] = true
		}
	}
	ids := make([]int, 0, len(w.bound))
	for id := range w.bound {
		if heads[id] {
			ids = append(ids, int(id))
		}
	}
	if len(ids) == 0 {
		sb.WriteString("#show.\n")
		return
	}
	sort.Ints(ids)
	seen := map[predArity]bool{}
	for _, idInt := range ids {
		pa := w.bound[wire.Atom(idInt)]
		if seen[pa] {
			continue
		}
		seen[pa] = true
		fmt.Fprintf(sb, "#show %s/%d.\n", pa.pred, pa.arity)
	}
}

func (w *Writer) renderDirective(sb *strings.Builder, d directive) error {
	switch d.kind {
	case evRule:
		sb.WriteString(w.renderRule(d.rule))
	case evMinimize:
		sb.WriteString(w.renderMinimize(d.minimize))
	case evProject:
		fmt.Fprintf(sb, "#project{%s}.\n", w.atomList(d.project))
	case evExternal:
		w.renderExternal(sb, d.extAtom, d.extVal)
	case evAssume:
		fmt.Fprintf(sb, "#assume{%s}.\n", w.litList(d.assume))
	case evHeuristic:
		w.renderHeuristic(sb, d)
	case evEdge:
		w.renderEdge(sb, d)
	case evTheory:
		text, err := (theoryRenderer{store: w.theoryStore, litText: w.litText}).atom(w.theoryStore.Atoms()[d.theoryIdx])
		if err != nil {
			return err
		}
		sb.WriteString(text)
		sb.WriteString(".\n")
	}
	return nil
}

func (w *Writer) atomList(atoms []wire.Atom) string {
	parts := make([]string, len(atoms))
	for i, a := range atoms {
		parts[i] = w.textOf(a)
	}
	return strings.Join(parts, ", ")
}

func (w *Writer) renderRule(r wire.Rule) string {
	bodyEmpty := (r.IsNormal() && len(r.Normal) == 0) || (!r.IsNormal() && len(r.Agg.Lits) == 0)
	if len(r.Head) == 0 && r.HeadType != wire.Choice {
		return ":- " + w.bodyText(r) + ".\n"
	}
	head := w.renderHead(r)
	if bodyEmpty {
		return head + ".\n"
	}
	return head + " :- " + w.bodyText(r) + ".\n"
}

func (w *Writer) renderHead(r wire.Rule) string {
	parts := make([]string, len(r.Head))
	for i, a := range r.Head {
		parts[i] = w.textOf(a)
	}
	if r.HeadType == wire.Choice {
		return "{" + strings.Join(parts, ";") + "}"
	}
	return strings.Join(parts, "|")
}

func (w *Writer) bodyText(r wire.Rule) string {
	if r.IsNormal() {
		return w.litList(r.Normal)
	}
	if len(r.Agg.Lits) == 0 {
		return fmt.Sprintf("%d #count{}", r.Agg.Bound)
	}
	allEqual := true
	for _, wl := range r.Agg.Lits[1:] {
		if wl.Weight != r.Agg.Lits[0].Weight {
			allEqual = false
			break
		}
	}
	if allEqual {
		bound := ceilDiv(r.Agg.Bound, r.Agg.Lits[0].Weight)
		parts := make([]string, len(r.Agg.Lits))
		for i, wl := range r.Agg.Lits {
			parts[i] = fmt.Sprintf("%d : %s", i+1, w.litText(wl.Lit))
		}
		return fmt.Sprintf("%d #count{%s}", bound, strings.Join(parts, "; "))
	}
	parts := make([]string, len(r.Agg.Lits))
	for i, wl := range r.Agg.Lits {
		parts[i] = fmt.Sprintf("%d,%d : %s", wl.Weight, i+1, w.litText(wl.Lit))
	}
	return fmt.Sprintf("%d #sum{%s}", r.Agg.Bound, strings.Join(parts, "; "))
}

func ceilDiv(bound, weight int32) int32 {
	if weight == 0 {
		return bound
	}
	return (bound + weight - 1) / weight
}

func (w *Writer) renderMinimize(m wire.Minimize) string {
	if len(m.Lits) == 0 {
		return fmt.Sprintf("#minimize{0@%d}.\n", m.Priority)
	}
	parts := make([]string, len(m.Lits))
	for i, wl := range m.Lits {
		parts[i] = fmt.Sprintf("%d@%d,%d : %s", wl.Weight, m.Priority, i+1, w.litText(wl.Lit))
	}
	return "#minimize{" + strings.Join(parts, "; ") + "}.\n"
}

func (w *Writer) renderExternal(sb *strings.Builder, a wire.Atom, v wire.TruthValue) {
	sb.WriteString("#external ")
	sb.WriteString(w.textOf(a))
	sb.WriteString(".")
	switch v {
	case wire.True:
		sb.WriteString(" [true]")
	case wire.Free:
		sb.WriteString(" [free]")
	case wire.Release:
		sb.WriteString(" [release]")
	}
	sb.WriteString("\n")
}

func (w *Writer) renderHeuristic(sb *strings.Builder, d directive) {
	sb.WriteString("#heuristic ")
	sb.WriteString(w.textOf(d.heuAtom))
	if len(d.heuCond) > 0 {
		sb.WriteString(" : ")
		sb.WriteString(w.litList(d.heuCond))
	}
	sb.WriteString(". [")
	sb.WriteString(strconv.Itoa(int(d.heuBias)))
	if d.heuPrio != 0 {
		sb.WriteString("@")
		sb.WriteString(strconv.Itoa(int(d.heuPrio)))
	}
	sb.WriteString(", ")
	sb.WriteString(d.heuType.String())
	sb.WriteString("]\n")
}

func (w *Writer) renderEdge(sb *strings.Builder, d directive) {
	fmt.Fprintf(sb, "#edge(%d,%d)", d.edgeS, d.edgeT)
	if len(d.edgeCond) > 0 {
		sb.WriteString(" : ")
		sb.WriteString(w.litList(d.edgeCond))
	}
	sb.WriteString(".\n")
}

var _ wire.Sink = (*Writer)(nil)
