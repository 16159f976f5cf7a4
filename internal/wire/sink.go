package wire

import "fmt"

// Sink is the AbstractProgram contract of §6.5: every component that
// consumes a program (a writer, the converter, a test harness) implements
// it. Sources (parsers) call it; writers and the converter implement it.
//
// Optional methods have default "not supported" behavior when embedded via
// Unsupported below, so a strict sink (the smodels writer) can opt out of
// theory data, heuristics, or acyclicity edges cleanly instead of every
// sink needing a no-op body for methods it cannot represent.
type Sink interface {
	InitProgram(incremental bool) error
	BeginStep() error
	Rule(r Rule) error
	Minimize(m Minimize) error
	Output(text string, cond []Lit) error
	OutputAtom(a Atom, text string) error
	OutputTerm(id uint32, text string) error
	External(a Atom, v TruthValue) error
	Assume(lits []Lit) error
	Project(atoms []Atom) error
	AcycEdge(s, t int32, cond []Lit) error
	TheoryNumber(id uint32, n int32) error
	TheorySymbol(id uint32, sym string) error
	TheoryCompound(id uint32, base int32, args []uint32) error
	TheoryElement(id uint32, terms []uint32, cond uint32) error
	TheoryAtom(atomOrZero Atom, term uint32, elements []uint32) error
	TheoryAtomGuard(atomOrZero Atom, term uint32, elements []uint32, op, rhs uint32) error
	Heuristic(a Atom, t HeuristicType, bias int32, prio uint32, cond []Lit) error
	EndStep() error
}

// Unsupported implements Sink with every method returning an "unsupported"
// error. Embed it in a sink that only needs to override a handful of
// methods (the smodels writer rejects theory/heuristic/edge directives
// this way rather than hand-writing each rejection).
type Unsupported struct{ Name string }

func (u Unsupported) fail(what string) error {
	name := u.Name
	if name == "" {
		name = "sink"
	}
	return unsupportedf("%s does not support %s", name, what)
}

func (u Unsupported) InitProgram(bool) error                           { return u.fail("initProgram") }
func (u Unsupported) BeginStep() error                                 { return u.fail("beginStep") }
func (u Unsupported) Rule(Rule) error                                  { return u.fail("rule") }
func (u Unsupported) Minimize(Minimize) error                          { return u.fail("minimize") }
func (u Unsupported) Output(string, []Lit) error                       { return u.fail("output") }
func (u Unsupported) OutputAtom(Atom, string) error                    { return u.fail("outputAtom") }
func (u Unsupported) OutputTerm(uint32, string) error                  { return u.fail("outputTerm") }
func (u Unsupported) External(Atom, TruthValue) error                  { return u.fail("external") }
func (u Unsupported) Assume([]Lit) error                               { return u.fail("assume") }
func (u Unsupported) Project([]Atom) error                             { return u.fail("project") }
func (u Unsupported) AcycEdge(int32, int32, []Lit) error                { return u.fail("acycEdge") }
func (u Unsupported) TheoryNumber(uint32, int32) error                 { return u.fail("theory") }
func (u Unsupported) TheorySymbol(uint32, string) error                { return u.fail("theory") }
func (u Unsupported) TheoryCompound(uint32, int32, []uint32) error     { return u.fail("theory") }
func (u Unsupported) TheoryElement(uint32, []uint32, uint32) error     { return u.fail("theory") }
func (u Unsupported) TheoryAtom(Atom, uint32, []uint32) error          { return u.fail("theory") }
func (u Unsupported) TheoryAtomGuard(Atom, uint32, []uint32, uint32, uint32) error {
	return u.fail("theory")
}
func (u Unsupported) Heuristic(Atom, HeuristicType, int32, uint32, []Lit) error {
	return u.fail("heuristic")
}
func (u Unsupported) EndStep() error { return u.fail("endStep") }

// unsupportedf builds a plain error rather than an *errkit.Error; this
// package does not import errkit. Callers that need a classified error
// wrap this with errkit.Unsupported(err).
func unsupportedf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
