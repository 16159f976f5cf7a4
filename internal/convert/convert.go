// Package convert implements C7 of the specification: a wire.Sink that
// rewrites an incoming program so it can be expressed over another sink
// that only understands the smodels subset (no weight-choice rules, no
// native heuristics/edges/externals unless clasp extensions are enabled).
// Grounded on original_source/src/convert.cpp's SmodelsConvert/SmData.
package convert

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"aspif/internal/wire"
)

// Option configures a Converter.
type Option func(*Converter)

// WithClaspExtensions enables the clasp incremental/external-value
// extensions on the downstream sink: externals are passed through
// directly instead of being emulated with choice rules and facts.
// Heuristic and edge directives are then not forwarded in their raw form;
// they reach the sink only as _heuristic/_edge symbol bindings.
func WithClaspExtensions() Option {
	return func(c *Converter) { c.ext = true }
}

// FalseAtomPolicy controls how the converter obtains the atom that
// represents an empty disjunctive head (an integrity constraint).
type FalseAtomPolicy int

const (
	// FalseAtomReserved reserves output atom 1 for this purpose up front
	// and starts the ordinary atom counter at 2, matching SmData's
	// unconditional next_(2) — the false atom's id never depends on
	// whether a rule actually needs one.
	FalseAtomReserved FalseAtomPolicy = iota
	// FalseAtomLazy starts the atom counter at 1 and only carves out a
	// false atom the first time an empty head or the final unit
	// assumption actually needs one, so a program with no integrity
	// constraints never burns an id on an atom nothing references.
	FalseAtomLazy
)

// WithFalseAtomPolicy selects how the false atom is allocated. The
// default is FalseAtomReserved.
func WithFalseAtomPolicy(p FalseAtomPolicy) Option {
	return func(c *Converter) { c.falseAtomPolicy = p }
}

// WithLogger attaches a logger for non-fatal notices about lossy
// emulation (a heuristic directive dropped because its target atom never
// otherwise occurs, an external directive discarded because the atom is
// already a rule head). Nil is safe and is the default.
func WithLogger(log *zap.Logger) Option {
	return func(c *Converter) { c.log = log }
}

// atomState is the per-atom record of SmData's Atom bitfield: the output
// atom this input atom maps to, plus the three monotone flags the state
// machine in §4.6 names.
type atomState struct {
	id      wire.Atom
	head    bool
	show    bool
	hasExtn bool
	extn    wire.TruthValue
}

type heuristicEntry struct {
	atom wire.Atom // original, unmapped atom the heuristic targets
	typ  wire.HeuristicType
	bias int32
	prio uint32
	cond wire.Atom // output atom standing for the heuristic's condition
}

type outputEntry struct {
	atom wire.Atom
	name string
}

// Converter rewrites the program it receives for a downstream wire.Sink
// that cannot represent every construct directly, per §4.6. It implements
// wire.Sink itself, so it can sit between a parser and a writer
// transparently.
type Converter struct {
	wire.Unsupported
	sink            wire.Sink
	ext             bool
	falseAtomPolicy FalseAtomPolicy
	log             *zap.Logger

	next      wire.Atom
	falseAtom wire.Atom
	atoms     map[wire.Atom]*atomState
	symTab    map[wire.Atom]string

	minimize   map[int32][]wire.WLit
	externs    []wire.Atom
	heuristics []heuristicEntry
	outputs    []outputEntry
}

// New returns a Converter that forwards the rewritten program to sink.
func New(sink wire.Sink, opts ...Option) *Converter {
	c := &Converter{
		Unsupported: wire.Unsupported{Name: "converter"},
		sink:        sink,
		atoms:       make(map[wire.Atom]*atomState),
		symTab:      make(map[wire.Atom]string),
		minimize:    make(map[int32][]wire.WLit),
	}
	for _, o := range opts {
		o(c)
	}
	if c.falseAtomPolicy == FalseAtomLazy {
		c.next = 1
	} else {
		c.next = 2
		c.falseAtom = 1
	}
	return c
}

func (c *Converter) warnf(format string, args ...any) {
	if c.log != nil {
		c.log.Warn(fmt.Sprintf(format, args...))
	}
}

func (c *Converter) newAtom() wire.Atom {
	a := c.next
	c.next++
	return a
}

// falseAtomID returns the atom standing for "false", allocating it lazily
// under FalseAtomLazy.
func (c *Converter) falseAtomID() wire.Atom {
	if c.falseAtom == 0 {
		c.falseAtom = c.newAtom()
	}
	return c.falseAtom
}

func (c *Converter) isMapped(a wire.Atom) bool {
	_, ok := c.atoms[a]
	return ok
}

// mapAtom returns a's output-atom record, assigning a fresh output atom
// the first time a is seen.
func (c *Converter) mapAtom(a wire.Atom) *atomState {
	if st, ok := c.atoms[a]; ok {
		return st
	}
	st := &atomState{id: c.newAtom()}
	c.atoms[a] = st
	return st
}

func (c *Converter) mapLit(l wire.Lit) wire.Lit {
	st := c.mapAtom(wire.AtomOf(l))
	if l < 0 {
		return -wire.Lit(st.id)
	}
	return wire.Lit(st.id)
}

func (c *Converter) mapLits(lits []wire.Lit) []wire.Lit {
	out := make([]wire.Lit, len(lits))
	for i, l := range lits {
		out[i] = c.mapLit(l)
	}
	return out
}

func (c *Converter) mapWLits(lits []wire.WLit) []wire.WLit {
	out := make([]wire.WLit, len(lits))
	for i, wl := range lits {
		out[i] = wire.WLit{Lit: c.mapLit(wl.Lit), Weight: wl.Weight}
	}
	return out
}

func (c *Converter) mapSum(s wire.Aggregate) wire.Aggregate {
	return wire.Aggregate{Lits: c.mapWLits(s.Lits), Bound: s.Bound}
}

func (c *Converter) mapHeadAtom(a wire.Atom) wire.Atom {
	st := c.mapAtom(a)
	st.head = true
	return st.id
}

// mapHead maps every head atom, substituting the false atom for an empty
// head.
func (c *Converter) mapHead(head []wire.Atom) []wire.Atom {
	out := make([]wire.Atom, 0, len(head))
	for _, a := range head {
		out = append(out, c.mapHeadAtom(a))
	}
	if len(out) == 0 {
		out = append(out, c.falseAtomID())
	}
	return out
}

// isSmodelsRule reports whether a weighted rule can be written directly
// in smodels format: a single, non-choice head atom and a non-negative
// bound. Grounded on SmodelsInput/Output's isSmodelsRule, which also
// picks Weight vs Cardinality from the literal weights — that choice is
// the writer's concern, not the converter's.
func isSmodelsRule(ht wire.HeadType, head []wire.Atom, bound int32) bool {
	return ht != wire.Choice && len(head) == 1 && bound >= 0
}

// addOutput registers a pending symbol output. When addHash is set, the
// first registration for atom becomes its canonical name in symTab
// (later lookups, e.g. by flushHeuristic, reuse it instead of minting a
// second name for the same atom).
func (c *Converter) addOutput(atom wire.Atom, name string, addHash bool) {
	if addHash {
		if _, ok := c.symTab[atom]; !ok {
			c.symTab[atom] = name
		}
	}
	c.outputs = append(c.outputs, outputEntry{atom: atom, name: name})
}

// makeAtom returns the output atom equivalent to cond, synthesizing "aux
// :- cond." when cond isn't already a single bare positive literal, or
// when it is but that atom has already been bound to a different name
// (named && already shown). Grounded on SmodelsConvert::makeAtom.
func (c *Converter) makeAtom(cond []wire.Lit, named bool) (wire.Atom, error) {
	useAux := len(cond) != 1 || cond[0] < 0
	var st *atomState
	if !useAux {
		st = c.mapAtom(wire.AtomOf(cond[0]))
		if named && st.show {
			useAux = true
		}
	}
	if useAux {
		aux := c.newAtom()
		body := c.mapLits(cond)
		if err := c.sink.Rule(wire.Rule{HeadType: wire.Disjunctive, Head: []wire.Atom{aux}, BodyType: wire.Normal, Normal: body}); err != nil {
			return 0, err
		}
		return aux, nil
	}
	if named {
		st.show = true
	}
	return st.id, nil
}

func (c *Converter) InitProgram(incremental bool) error { return c.sink.InitProgram(incremental) }

func (c *Converter) BeginStep() error { return c.sink.BeginStep() }

// Rule rewrites r per rules 1-3 of §4.6: atoms are mapped on demand, an
// empty disjunctive head becomes the false atom, and a sum/count rule
// whose head can't be written directly (a choice head, or any head with
// more than one atom, or a negative bound) is split into an auxiliary
// "aux :- sum-body." plus the original head driven by {aux}. A choice
// rule with an empty head is vacuous and is silently dropped.
func (c *Converter) Rule(r wire.Rule) error {
	if len(r.Head) == 0 && r.HeadType != wire.Disjunctive {
		return nil
	}
	mHead := c.mapHead(r.Head)
	if r.BodyType == wire.Normal {
		return c.sink.Rule(wire.Rule{HeadType: r.HeadType, Head: mHead, BodyType: wire.Normal, Normal: c.mapLits(r.Normal)})
	}
	mAgg := c.mapSum(r.Agg)
	if isSmodelsRule(r.HeadType, mHead, mAgg.Bound) {
		return c.sink.Rule(wire.Rule{HeadType: r.HeadType, Head: mHead, BodyType: r.BodyType, Agg: mAgg})
	}
	aux := c.newAtom()
	c.warnf("synthesizing auxiliary atom %d for a sum rule with a non-trivial head", aux)
	if err := c.sink.Rule(wire.Rule{HeadType: wire.Disjunctive, Head: []wire.Atom{aux}, BodyType: r.BodyType, Agg: mAgg}); err != nil {
		return err
	}
	return c.sink.Rule(wire.Rule{HeadType: r.HeadType, Head: mHead, BodyType: wire.Normal, Normal: []wire.Lit{wire.Lit(aux)}})
}

// Minimize buffers lits under prio, flipping any negative-weight literal
// (literal negated, weight negated) per rule 4 of §4.6. Mapping to output
// atoms is deferred to flushMinimize so that an atom first referenced by
// a minimize statement is numbered after every atom the step's rules
// reference, matching SmData::addMinimize/flushMinimize.
func (c *Converter) Minimize(m wire.Minimize) error {
	for _, wl := range m.Lits {
		if wl.Weight < 0 {
			wl.Lit = -wl.Lit
			wl.Weight = -wl.Weight
		}
		c.minimize[m.Priority] = append(c.minimize[m.Priority], wl)
	}
	return nil
}

// Output creates (or reuses) an atom equivalent to cond and binds name to
// it, deferred to flushSymbols.
func (c *Converter) Output(text string, cond []wire.Lit) error {
	id, err := c.makeAtom(cond, true)
	if err != nil {
		return err
	}
	c.addOutput(id, text, true)
	return nil
}

func (c *Converter) OutputAtom(a wire.Atom, text string) error {
	return c.Output(text, []wire.Lit{wire.Lit(a)})
}

// External records a's value for flushExternal. An atom that has already
// occurred in a head is left alone: its external status would be
// meaningless (the rule already decides it), matching SmData::addExternal.
func (c *Converter) External(a wire.Atom, v wire.TruthValue) error {
	st := c.mapAtom(a)
	if !st.head {
		st.hasExtn = true
		st.extn = v
		c.externs = append(c.externs, a)
	}
	return nil
}

// Heuristic passes the directive straight through when clasp extensions
// are off (the downstream sink is assumed to support it natively in that
// mode) and always additionally registers a _heuristic(...) symbol bound
// to a fresh condition atom, flushed by flushHeuristic. Grounded on
// SmodelsConvert::heuristic.
func (c *Converter) Heuristic(a wire.Atom, t wire.HeuristicType, bias int32, prio uint32, cond []wire.Lit) error {
	if !c.ext {
		if err := c.sink.Heuristic(a, t, bias, prio, cond); err != nil {
			return err
		}
	}
	heuPred, err := c.makeAtom(cond, true)
	if err != nil {
		return err
	}
	c.heuristics = append(c.heuristics, heuristicEntry{atom: a, typ: t, bias: bias, prio: prio, cond: heuPred})
	return nil
}

// AcycEdge mirrors Heuristic: passed through directly unless clasp
// extensions are enabled, and always registers an _edge(s,t) symbol
// bound to a fresh condition atom (queued for flushSymbols, not
// flushHeuristic — unlike a heuristic's name, an edge's name is sorted in
// with the rest of the symbol table rather than emitted in its own flush
// phase).
func (c *Converter) AcycEdge(s, t int32, cond []wire.Lit) error {
	if !c.ext {
		if err := c.sink.AcycEdge(s, t, cond); err != nil {
			return err
		}
	}
	id, err := c.makeAtom(cond, true)
	if err != nil {
		return err
	}
	c.addOutput(id, fmt.Sprintf("_edge(%d,%d)", s, t), false)
	return nil
}

// flushMinimize emits one minimize statement per priority, in ascending
// priority order, per §4.6's flush order.
func (c *Converter) flushMinimize() error {
	prios := make([]int32, 0, len(c.minimize))
	for p := range c.minimize {
		prios = append(prios, p)
	}
	sort.Slice(prios, func(i, j int) bool { return prios[i] < prios[j] })
	for _, p := range prios {
		if err := c.sink.Minimize(wire.Minimize{Priority: p, Lits: c.mapWLits(c.minimize[p])}); err != nil {
			return err
		}
	}
	return nil
}

// flushExternal converts pending externals per §4.6: with clasp
// extensions enabled they are emitted directly; otherwise a free external
// not already a head becomes part of a single trailing choice rule, a
// true external becomes a fact, and a false external is elided outright.
// An external whose atom is already a head is dropped, with a logged
// warning, in emulation mode (the head rule already pins its value).
func (c *Converter) flushExternal() error {
	var choiceHead []wire.Atom
	for _, a := range c.externs {
		st := c.mapAtom(a)
		vt := st.extn
		if c.ext {
			if err := c.sink.External(st.id, vt); err != nil {
				return err
			}
			continue
		}
		if st.head {
			c.warnf("external atom %d already occurs as a rule head, dropping its external directive", st.id)
			continue
		}
		switch vt {
		case wire.Free:
			choiceHead = append(choiceHead, st.id)
		case wire.True:
			if err := c.sink.Rule(wire.Rule{HeadType: wire.Disjunctive, Head: []wire.Atom{st.id}, BodyType: wire.Normal}); err != nil {
				return err
			}
		}
	}
	if len(choiceHead) > 0 {
		return c.sink.Rule(wire.Rule{HeadType: wire.Choice, Head: choiceHead, BodyType: wire.Normal})
	}
	return nil
}

// flushHeuristic emits a _heuristic(name,type,bias,prio) output for every
// pending heuristic whose target atom was mapped by some other directive
// during the step; a heuristic over an atom nothing else ever references
// is unrepresentable and is dropped with a warning, matching
// SmodelsConvert::flushHeuristic's `if (!mapped(heu.atom)) continue;`.
func (c *Converter) flushHeuristic() error {
	for _, heu := range c.heuristics {
		if !c.isMapped(heu.atom) {
			c.warnf("heuristic on atom %d dropped: atom never occurs elsewhere in the step", heu.atom)
			continue
		}
		st := c.mapAtom(heu.atom)
		name, ok := "", false
		if st.show {
			name, ok = c.symTab[st.id]
		}
		if !ok {
			st.show = true
			name = fmt.Sprintf("_atom(%d)", st.id)
			c.addOutput(st.id, name, true)
		}
		text := fmt.Sprintf("_heuristic(%s,%s,%d,%d)", name, heu.typ, heu.bias, heu.prio)
		if err := c.sink.Output(text, []wire.Lit{wire.Lit(heu.cond)}); err != nil {
			return err
		}
	}
	return nil
}

// flushSymbols emits every pending output, sorted by output-atom id.
func (c *Converter) flushSymbols() error {
	sort.SliceStable(c.outputs, func(i, j int) bool { return c.outputs[i].atom < c.outputs[j].atom })
	for _, sym := range c.outputs {
		if err := c.sink.Output(sym.name, []wire.Lit{wire.Lit(sym.atom)}); err != nil {
			return err
		}
	}
	return nil
}

// flush drains every pending buffer in the order §4.6 names: minimize,
// externals, heuristics, symbols, then a unit assumption asserting the
// false atom's negation (so a solver downstream never derives it true).
func (c *Converter) flush() error {
	if err := c.flushMinimize(); err != nil {
		return err
	}
	if err := c.flushExternal(); err != nil {
		return err
	}
	if err := c.flushHeuristic(); err != nil {
		return err
	}
	if err := c.flushSymbols(); err != nil {
		return err
	}
	if err := c.sink.Assume([]wire.Lit{-wire.Lit(c.falseAtomID())}); err != nil {
		return err
	}
	c.minimize = make(map[int32][]wire.WLit)
	c.externs = nil
	c.heuristics = nil
	c.outputs = nil
	return nil
}

// EndStep flushes every pending buffer and forwards endStep to the sink.
// The atom map and symbol table are not reset: atom identities and their
// bound names are permanent for the life of the Converter, not just one
// step.
func (c *Converter) EndStep() error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.EndStep()
}

// Get returns the output literal in has been mapped to, or 0 if in's
// atom has not been mapped yet.
func (c *Converter) Get(in wire.Lit) wire.Lit {
	st, ok := c.atoms[wire.AtomOf(in)]
	if !ok {
		return 0
	}
	if in < 0 {
		return -wire.Lit(st.id)
	}
	return wire.Lit(st.id)
}

// MaxAtom returns the largest output atom allocated so far (valid atoms
// are [1, MaxAtom]).
func (c *Converter) MaxAtom() wire.Atom {
	if c.next == 0 {
		return 0
	}
	return c.next - 1
}

// GetName returns the canonical name bound to output atom a, if any.
func (c *Converter) GetName(a wire.Atom) (string, bool) {
	name, ok := c.symTab[a]
	return name, ok
}

var _ wire.Sink = (*Converter)(nil)
