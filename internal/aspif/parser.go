package aspif

import (
	"io"
	"strings"

	"aspif/internal/errkit"
	"aspif/internal/rulebuilder"
	"aspif/internal/theory"
	"aspif/internal/wire"
)

// directive tags, §4.3.
const (
	tagRule      = 1
	tagMinimize  = 2
	tagProject   = 3
	tagOutput    = 4
	tagExternal  = 5
	tagAssume    = 6
	tagHeuristic = 7
	tagEdge      = 8
	tagTheory    = 9
	tagComment   = 10
)

// theory subtags, §4.3.
const (
	theoryNumber        = 0
	theorySymbol        = 1
	theoryCompound      = 2
	theoryElement       = 4
	theoryAtom          = 5
	theoryAtomWithGuard = 6
)

// Option configures a Parser.
type Option func(*Parser)

// WithMaxAtom overrides the default maximum atom id (wire.MaxAtom).
func WithMaxAtom(max uint32) Option {
	return func(p *Parser) { p.maxAtom = max }
}

// WithLenient sets the parser's lenient flag. The flag is recorded on the
// Parser only: Parse reads it nowhere, so every input is accepted or
// rejected exactly as without this option.
func WithLenient() Option {
	return func(p *Parser) { p.lenient = true }
}

// Parser reads an ASPIF stream and drives a wire.Sink, implementing C3.
type Parser struct {
	sc      *scanner
	sink    wire.Sink
	rb      *rulebuilder.Builder
	maxAtom uint32
	lenient bool
}

// NewParser returns a Parser reading from r and driving sink.
func NewParser(r io.Reader, sink wire.Sink, opts ...Option) *Parser {
	p := &Parser{sc: newScanner(r), sink: sink, rb: rulebuilder.New(), maxAtom: wire.MaxAtom}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse reads the header and every step until EOF.
func (p *Parser) Parse() error {
	incremental, err := p.parseHeader()
	if err != nil {
		return err
	}
	if err := p.sink.InitProgram(incremental); err != nil {
		return errkit.IO(err)
	}
	for {
		more, err := p.parseStep()
		if err != nil {
			return err
		}
		if !more || !incremental {
			return nil
		}
		// An incremental program may legitimately end right after a step's
		// terminating "0": don't start another step (and so don't emit an
		// unpaired BeginStep) unless more non-whitespace input actually
		// follows.
		hasMore, err := p.sc.moreInput()
		if err != nil {
			return err
		}
		if !hasMore {
			return nil
		}
	}
}

// parseHeader consumes the "asp 1 0 <rev>[ incremental]" line.
func (p *Parser) parseHeader() (incremental bool, err error) {
	line, err := p.sc.nextLine()
	if err != nil {
		if err == io.EOF {
			return false, errkit.Format(0, "empty input: missing aspif header")
		}
		return false, err
	}
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[0] != "asp" {
		return false, errkit.Format(1, "expected \"asp 1 0 <revision>\" header, got %q", line)
	}
	if fields[1] != "1" || fields[2] != "0" {
		return false, errkit.Format(1, "unsupported aspif version %s.%s (only 1.0 is accepted)", fields[1], fields[2])
	}
	if len(fields) < 4 {
		return false, errkit.Format(1, "missing revision number in header")
	}
	for _, tag := range fields[4:] {
		if tag == "incremental" {
			incremental = true
		}
	}
	return incremental, nil
}

// parseStep reads one step's directives up to its terminating "0" line.
// Reaching the end of input before that line is a format error.
func (p *Parser) parseStep() (more bool, err error) {
	if err := p.sink.BeginStep(); err != nil {
		return false, errkit.IO(err)
	}
	for {
		line, err := p.sc.nextLine()
		if err == io.EOF {
			return false, errkit.Format(p.sc.line, "missing step terminator \"0\"")
		}
		if err != nil {
			return false, err
		}
		ls := newLineScanner(p.sc.line, line)
		if ls.atEnd() {
			continue
		}
		tag, err := ls.int64()
		if err != nil {
			return false, err
		}
		if tag == 0 {
			break
		}
		if err := p.dispatch(int(tag), ls); err != nil {
			return false, err
		}
	}
	if err := p.sink.EndStep(); err != nil {
		return false, errkit.IO(err)
	}
	return true, nil
}

func (p *Parser) dispatch(tag int, ls *lineScanner) error {
	switch tag {
	case tagRule:
		return p.parseRule(ls)
	case tagMinimize:
		return p.parseMinimize(ls)
	case tagProject:
		return p.parseProject(ls)
	case tagOutput:
		return p.parseOutput(ls)
	case tagExternal:
		return p.parseExternal(ls)
	case tagAssume:
		return p.parseAssume(ls)
	case tagHeuristic:
		return p.parseHeuristic(ls)
	case tagEdge:
		return p.parseEdge(ls)
	case tagTheory:
		return p.parseTheory(ls)
	case tagComment:
		return nil // rest of line ignored
	default:
		return errkit.Format(ls.line, "unknown directive tag %d", tag)
	}
}

func (p *Parser) parseRule(ls *lineScanner) error {
	htVal, err := ls.int64()
	if err != nil {
		return err
	}
	if htVal != int64(wire.Disjunctive) && htVal != int64(wire.Choice) {
		return errkit.Format(ls.line, "invalid head type %d", htVal)
	}
	p.rb.Clear()
	p.rb.Start(wire.HeadType(htVal))
	n, err := ls.int64()
	if err != nil {
		return err
	}
	for i := int64(0); i < n; i++ {
		a, err := ls.atom(p.maxAtom)
		if err != nil {
			return err
		}
		p.rb.AddHead(a)
	}
	btVal, err := ls.int64()
	if err != nil {
		return err
	}
	switch wire.BodyType(btVal) {
	case wire.Normal:
		p.rb.StartBody()
		if err := p.parseLits(ls); err != nil {
			return err
		}
	case wire.Sum:
		bound, err := ls.weight()
		if err != nil {
			return err
		}
		p.rb.StartSum(bound)
		if err := p.parseWLits(ls); err != nil {
			return err
		}
	default:
		return errkit.Format(ls.line, "invalid body type %d", btVal)
	}
	if err := ls.requireEnd(); err != nil {
		return err
	}
	return p.rb.End(p.sink)
}

func (p *Parser) parseLits(ls *lineScanner) error {
	n, err := ls.int64()
	if err != nil {
		return err
	}
	for i := int64(0); i < n; i++ {
		l, err := ls.lit(p.maxAtom)
		if err != nil {
			return err
		}
		p.rb.AddGoal(l)
	}
	return nil
}

func (p *Parser) parseWLits(ls *lineScanner) error {
	n, err := ls.int64()
	if err != nil {
		return err
	}
	for i := int64(0); i < n; i++ {
		l, err := ls.lit(p.maxAtom)
		if err != nil {
			return err
		}
		w, err := ls.weight()
		if err != nil {
			return err
		}
		p.rb.AddWeightedGoal(wire.WLit{Lit: l, Weight: w})
	}
	return nil
}

func (p *Parser) parseMinimize(ls *lineScanner) error {
	prio, err := ls.weight()
	if err != nil {
		return err
	}
	p.rb.Clear()
	p.rb.StartMinimize(prio)
	if err := p.parseWLits(ls); err != nil {
		return err
	}
	if err := ls.requireEnd(); err != nil {
		return err
	}
	return p.rb.End(p.sink)
}

func (p *Parser) parseProject(ls *lineScanner) error {
	n, err := ls.int64()
	if err != nil {
		return err
	}
	atoms := make([]wire.Atom, 0, n)
	for i := int64(0); i < n; i++ {
		a, err := ls.atom(p.maxAtom)
		if err != nil {
			return err
		}
		atoms = append(atoms, a)
	}
	if err := ls.requireEnd(); err != nil {
		return err
	}
	return p.sink.Project(atoms)
}

func (p *Parser) parseOutput(ls *lineScanner) error {
	str, err := ls.rawString()
	if err != nil {
		return err
	}
	n, err := ls.int64()
	if err != nil {
		return err
	}
	lits := make([]wire.Lit, 0, n)
	for i := int64(0); i < n; i++ {
		l, err := ls.lit(p.maxAtom)
		if err != nil {
			return err
		}
		lits = append(lits, l)
	}
	if err := ls.requireEnd(); err != nil {
		return err
	}
	return p.sink.Output(str, lits)
}

func (p *Parser) parseExternal(ls *lineScanner) error {
	a, err := ls.atom(p.maxAtom)
	if err != nil {
		return err
	}
	v, err := ls.int64()
	if err != nil {
		return err
	}
	if v < int64(wire.False) || v > int64(wire.Release) {
		return errkit.Format(ls.line, "invalid external value %d", v)
	}
	if err := ls.requireEnd(); err != nil {
		return err
	}
	return p.sink.External(a, wire.TruthValue(v))
}

func (p *Parser) parseAssume(ls *lineScanner) error {
	n, err := ls.int64()
	if err != nil {
		return err
	}
	lits := make([]wire.Lit, 0, n)
	for i := int64(0); i < n; i++ {
		l, err := ls.lit(p.maxAtom)
		if err != nil {
			return err
		}
		lits = append(lits, l)
	}
	if err := ls.requireEnd(); err != nil {
		return err
	}
	return p.sink.Assume(lits)
}

func (p *Parser) parseHeuristic(ls *lineScanner) error {
	t, err := ls.int64()
	if err != nil {
		return err
	}
	a, err := ls.atom(p.maxAtom)
	if err != nil {
		return err
	}
	bias, err := ls.weight()
	if err != nil {
		return err
	}
	prio, err := ls.int64()
	if err != nil {
		return err
	}
	n, err := ls.int64()
	if err != nil {
		return err
	}
	cond := make([]wire.Lit, 0, n)
	for i := int64(0); i < n; i++ {
		l, err := ls.lit(p.maxAtom)
		if err != nil {
			return err
		}
		cond = append(cond, l)
	}
	if err := ls.requireEnd(); err != nil {
		return err
	}
	return p.sink.Heuristic(a, wire.HeuristicType(t), bias, uint32(prio), cond)
}

func (p *Parser) parseEdge(ls *lineScanner) error {
	s, err := ls.weight()
	if err != nil {
		return err
	}
	t, err := ls.weight()
	if err != nil {
		return err
	}
	n, err := ls.int64()
	if err != nil {
		return err
	}
	cond := make([]wire.Lit, 0, n)
	for i := int64(0); i < n; i++ {
		l, err := ls.lit(p.maxAtom)
		if err != nil {
			return err
		}
		cond = append(cond, l)
	}
	if err := ls.requireEnd(); err != nil {
		return err
	}
	return p.sink.AcycEdge(s, t, cond)
}

func (p *Parser) parseTheory(ls *lineScanner) error {
	subtag, err := ls.int64()
	if err != nil {
		return err
	}
	id, err := ls.id()
	if err != nil {
		return err
	}
	switch subtag {
	case theoryNumber:
		n, err := ls.int64()
		if err != nil {
			return err
		}
		if err := ls.requireEnd(); err != nil {
			return err
		}
		return p.sink.TheoryNumber(id, int32(n))
	case theorySymbol:
		str, err := ls.rawString()
		if err != nil {
			return err
		}
		if err := ls.requireEnd(); err != nil {
			return err
		}
		return p.sink.TheorySymbol(id, str)
	case theoryCompound:
		base, err := ls.weight()
		if err != nil {
			return err
		}
		n, err := ls.int64()
		if err != nil {
			return err
		}
		args := make([]uint32, 0, n)
		for i := int64(0); i < n; i++ {
			aid, err := ls.id()
			if err != nil {
				return err
			}
			args = append(args, aid)
		}
		if err := ls.requireEnd(); err != nil {
			return err
		}
		return p.sink.TheoryCompound(id, base, args)
	case theoryElement:
		nt, err := ls.int64()
		if err != nil {
			return err
		}
		terms := make([]uint32, 0, nt)
		for i := int64(0); i < nt; i++ {
			tid, err := ls.id()
			if err != nil {
				return err
			}
			terms = append(terms, tid)
		}
		nl, err := ls.int64()
		if err != nil {
			return err
		}
		// The condition is a literal conjunction in a separate id space
		// from terms (original_source/potassco/theory_data.h), which the
		// Sink.TheoryElement contract cannot carry alongside a term id;
		// a non-empty condition is recorded as deferred rather than
		// silently dropped, consistent with theory.Store.SetCondition's
		// later-filled-in model.
		cond := uint32(0)
		if nl > 0 {
			cond = theory.CondDeferred
		}
		for i := int64(0); i < nl; i++ {
			if _, err := ls.lit(p.maxAtom); err != nil {
				return err
			}
		}
		if err := ls.requireEnd(); err != nil {
			return err
		}
		return p.sink.TheoryElement(id, terms, cond)
	case theoryAtom:
		termID, err := ls.id()
		if err != nil {
			return err
		}
		ne, err := ls.int64()
		if err != nil {
			return err
		}
		elems := make([]uint32, 0, ne)
		for i := int64(0); i < ne; i++ {
			eid, err := ls.id()
			if err != nil {
				return err
			}
			elems = append(elems, eid)
		}
		if err := ls.requireEnd(); err != nil {
			return err
		}
		return p.sink.TheoryAtom(id, termID, elems)
	case theoryAtomWithGuard:
		termID, err := ls.id()
		if err != nil {
			return err
		}
		ne, err := ls.int64()
		if err != nil {
			return err
		}
		elems := make([]uint32, 0, ne)
		for i := int64(0); i < ne; i++ {
			eid, err := ls.id()
			if err != nil {
				return err
			}
			elems = append(elems, eid)
		}
		op, err := ls.id()
		if err != nil {
			return err
		}
		rhs, err := ls.id()
		if err != nil {
			return err
		}
		if err := ls.requireEnd(); err != nil {
			return err
		}
		return p.sink.TheoryAtomGuard(id, termID, elems, op, rhs)
	default:
		return errkit.Format(ls.line, "unknown theory subtag %d", subtag)
	}
}
