package smodels

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"aspif/internal/errkit"
	"aspif/internal/rulebuilder"
	"aspif/internal/wire"
)

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithClaspExtParsing accepts the clasp rule-type extensions 90/91/92
// (incremental, assign-external, release-external).
func WithClaspExtParsing() ParserOption {
	return func(p *Parser) { p.claspExt = true }
}

// WithEdgeNames recognizes `_edge(s,t)` symbol-table names, converting
// them to acyclicity-edge directives.
func WithEdgeNames() ParserOption {
	return func(p *Parser) { p.parseEdges = true; p.nodeIDs = map[string]uint32{} }
}

// WithHeuristicNames recognizes `_heuristic/{3,4}` symbol-table names,
// converting them to heuristic directives.
func WithHeuristicNames() ParserOption {
	return func(p *Parser) { p.parseHeuristics = true }
}

// WithFilter suppresses the original output directive for a name that
// was converted to an edge or heuristic directive.
func WithFilter() ParserOption {
	return func(p *Parser) { p.filter = true }
}

// deferredHeuristic is a _heuristic/{3,4} reference whose target atom
// name had not yet appeared in the symbol table when it was read.
type deferredHeuristic struct {
	name string
	typ  wire.HeuristicType
	bias int32
	prio uint32
	cond wire.Lit
}

// Parser reads a smodels-numeric-format stream and drives a wire.Sink,
// implementing C4.
type Parser struct {
	sc       *tokenizer
	sink     wire.Sink
	claspExt bool

	parseEdges      bool
	parseHeuristics bool
	filter          bool

	byName   map[string]wire.Atom
	nodeIDs  map[string]uint32
	deferred []deferredHeuristic
}

// NewParser returns a Parser reading from r and driving sink.
func NewParser(r io.Reader, sink wire.Sink, opts ...ParserOption) *Parser {
	p := &Parser{sc: newTokenizer(r), sink: sink, byName: map[string]wire.Atom{}}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse reads one full step (rules, symbols, compute, externals, model
// count) and drives the sink. Unlike the ASPIF parser, the smodels
// format has no top-level step-incrementing marker other than the
// 90-incremental rule type read inline within readRules, so one Parse
// call always corresponds to exactly one beginStep/endStep pair.
func (p *Parser) Parse() error {
	// The incremental flag is signaled by the leading byte of the first
	// rule-type token being '9' (rule type 90 always starts a step),
	// mirroring the original reader's single-byte peek rather than
	// parsing the full two-digit token ahead of readRules.
	lead, err := p.sc.peekLeadingDigit()
	if err != nil {
		return err
	}
	incremental := lead == 9
	if incremental && !p.claspExt {
		return errkit.Format(p.sc.line, "rule type 90 requires clasp extensions")
	}
	if err := p.sink.InitProgram(incremental); err != nil {
		return err
	}
	if err := p.sink.BeginStep(); err != nil {
		return err
	}
	if err := p.readRules(); err != nil {
		return err
	}
	if err := p.readSymbols(); err != nil {
		return err
	}
	if err := p.readCompute(true); err != nil {
		return err
	}
	if err := p.readCompute(false); err != nil {
		return err
	}
	if err := p.readExtra(); err != nil {
		return err
	}
	return p.sink.EndStep()
}

func (p *Parser) readRules() error {
	rb := rulebuilder.New()
	minPrio := int32(0)
	for {
		rt, err := p.sc.int64()
		if err != nil {
			return err
		}
		if rt == int64(End) {
			return nil
		}
		rb.Clear()
		switch RuleType(rt) {
		case Choice, Disjunctive:
			rb.Start(headTypeOf(RuleType(rt)))
			n, err := p.sc.int64()
			if err != nil {
				return err
			}
			for i := int64(0); i < n; i++ {
				a, err := p.sc.atom()
				if err != nil {
					return err
				}
				rb.AddHead(a)
			}
			if err := p.readBody(rb); err != nil {
				return err
			}
			if err := rb.End(p.sink); err != nil {
				return err
			}
		case Basic:
			a, err := p.sc.atom()
			if err != nil {
				return err
			}
			rb.Start(wire.Disjunctive).AddHead(a)
			if err := p.readBody(rb); err != nil {
				return err
			}
			if err := rb.End(p.sink); err != nil {
				return err
			}
		case Cardinality, Weight:
			a, err := p.sc.atom()
			if err != nil {
				return err
			}
			rb.Start(wire.Disjunctive).AddHead(a)
			if err := p.readSum(rb, RuleType(rt) == Weight); err != nil {
				return err
			}
			if err := rb.End(p.sink); err != nil {
				return err
			}
		case Optimize:
			rb.StartMinimize(minPrio)
			minPrio++
			if err := p.readSum(rb, true); err != nil {
				return err
			}
			if err := rb.End(p.sink); err != nil {
				return err
			}
		case ClaspIncrement:
			if !p.claspExt {
				return errkit.Format(p.sc.line, "unrecognized rule type %d", rt)
			}
			tag, err := p.sc.int64()
			if err != nil {
				return err
			}
			if tag != 0 {
				return errkit.Format(p.sc.line, "rule type 90 requires a zero payload")
			}
		case ClaspAssignExt:
			if !p.claspExt {
				return errkit.Format(p.sc.line, "unrecognized rule type %d", rt)
			}
			a, err := p.sc.atom()
			if err != nil {
				return err
			}
			v, err := p.sc.int64()
			if err != nil {
				return err
			}
			if v < 0 || v > 2 {
				return errkit.Format(p.sc.line, "external value %d out of range [0,2]", v)
			}
			if err := p.sink.External(a, wire.TruthValue((v^3)-1)); err != nil {
				return err
			}
		case ClaspReleaseExt:
			if !p.claspExt {
				return errkit.Format(p.sc.line, "unrecognized rule type %d", rt)
			}
			a, err := p.sc.atom()
			if err != nil {
				return err
			}
			if err := p.sink.External(a, wire.Release); err != nil {
				return err
			}
		default:
			return errkit.Format(p.sc.line, "unrecognized rule type %d", rt)
		}
	}
}

func headTypeOf(rt RuleType) wire.HeadType {
	if rt == Choice {
		return wire.Choice
	}
	return wire.Disjunctive
}

// readBody reads the canonical "nLits nNeg <neg atoms> <pos atoms>"
// normal-body encoding.
func (p *Parser) readBody(rb *rulebuilder.Builder) error {
	n, err := p.sc.int64()
	if err != nil {
		return err
	}
	neg, err := p.sc.int64()
	if err != nil {
		return err
	}
	rb.StartBody()
	for i := int64(0); i < n; i++ {
		a, err := p.sc.atom()
		if err != nil {
			return err
		}
		l := wire.Lit(a)
		if neg > 0 {
			l = -l
			neg--
		}
		rb.AddGoal(l)
	}
	return nil
}

// readSum reads a cardinality ("nLits nNeg bound <atoms>") or weight
// ("bound nLits nNeg <atoms> <weights>") body, matching SmodelsOutput's
// bound-before-or-after-counts distinction exactly.
func (p *Parser) readSum(rb *rulebuilder.Builder, weights bool) error {
	var bound, n, neg int64
	var err error
	if weights {
		if bound, err = p.sc.int64(); err != nil {
			return err
		}
		if n, err = p.sc.int64(); err != nil {
			return err
		}
		if neg, err = p.sc.int64(); err != nil {
			return err
		}
	} else {
		if n, err = p.sc.int64(); err != nil {
			return err
		}
		if neg, err = p.sc.int64(); err != nil {
			return err
		}
		if bound, err = p.sc.int64(); err != nil {
			return err
		}
	}
	rb.StartSum(int32(bound))
	lits := make([]wire.Lit, n)
	for i := int64(0); i < n; i++ {
		a, err := p.sc.atom()
		if err != nil {
			return err
		}
		l := wire.Lit(a)
		if neg > 0 {
			l = -l
			neg--
		}
		lits[i] = l
		rb.AddGoal(l)
	}
	if weights {
		for i := int64(0); i < n; i++ {
			w, err := p.sc.int64()
			if err != nil {
				return err
			}
			if w < 0 {
				return errkit.Format(p.sc.line, "non-negative weight expected, got %d", w)
			}
			idx := rb.FindSumLit(lits[i])
			if idx < 0 {
				continue
			}
			rb.SumLits()[idx].Weight = int32(w)
		}
	}
	return nil
}

func (p *Parser) readSymbols() error {
	for {
		n, err := p.sc.int64()
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		atom := wire.Atom(n)
		name, err := p.sc.restOfLine()
		if err != nil {
			return err
		}
		p.byName[name] = atom

		filtered := false
		if p.parseEdges {
			if s, t, ok := matchEdgePred(name); ok {
				sid := p.internNode(s)
				tid := p.internNode(t)
				if err := p.sink.AcycEdge(int32(sid), int32(tid), []wire.Lit{wire.Lit(atom)}); err != nil {
					return err
				}
				filtered = p.filter
			}
		}
		if !filtered && p.parseHeuristics {
			if target, typ, bias, prio, ok := matchHeuristicPred(name); ok {
				if !p.addHeuristic(target, typ, bias, prio, wire.Lit(atom)) {
					p.deferred = append(p.deferred, deferredHeuristic{name: target, typ: typ, bias: bias, prio: prio, cond: wire.Lit(atom)})
				}
				filtered = p.filter
			}
		}
		if !filtered {
			if err := p.sink.Output(name, []wire.Lit{wire.Lit(atom)}); err != nil {
				return err
			}
		}
	}
	for _, d := range p.deferred {
		p.addHeuristic(d.name, d.typ, d.bias, d.prio, d.cond)
	}
	p.deferred = nil
	return nil
}

func (p *Parser) internNode(name string) uint32 {
	if id, ok := p.nodeIDs[name]; ok {
		return id
	}
	id := uint32(len(p.nodeIDs))
	p.nodeIDs[name] = id
	return id
}

func (p *Parser) addHeuristic(name string, typ wire.HeuristicType, bias int32, prio uint32, cond wire.Lit) bool {
	id, ok := p.byName[name]
	if !ok {
		return false
	}
	if err := p.sink.Heuristic(id, typ, bias, prio, []wire.Lit{cond}); err != nil {
		return false
	}
	return true
}

// parseCall splits a symbol-table name of the form `pred(arg1,arg2,…)`
// into its predicate symbol and comma-separated arguments. Names with
// no parentheses are not calls.
func parseCall(name string) (pred string, args []string, ok bool) {
	i := strings.IndexByte(name, '(')
	if i < 0 || !strings.HasSuffix(name, ")") {
		return "", nil, false
	}
	pred = name[:i]
	inner := name[i+1 : len(name)-1]
	if inner == "" {
		return pred, nil, true
	}
	return pred, splitTopLevelArgs(inner), true
}

// splitTopLevelArgs splits a comma-separated argument list at commas
// that are neither inside a nested parenthesis pair nor inside a
// double-quoted string (with backslash escaping).
func splitTopLevelArgs(s string) []string {
	var args []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	args = append(args, strings.TrimSpace(s[start:]))
	return args
}

func matchEdgePred(name string) (s, t string, ok bool) {
	pred, args, ok := parseCall(name)
	if !ok || pred != "_edge" || len(args) != 2 {
		return "", "", false
	}
	return args[0], args[1], true
}

func matchHeuristicPred(name string) (atomName string, typ wire.HeuristicType, bias int32, prio uint32, ok bool) {
	pred, args, ok := parseCall(name)
	if !ok || pred != "_heuristic" {
		return "", 0, 0, 0, false
	}
	switch len(args) {
	case 3:
		b, _ := strconv.ParseInt(args[2], 10, 32)
		return args[0], heuristicTypeFromName(args[1]), int32(b), 1, true
	case 4:
		b, _ := strconv.ParseInt(args[2], 10, 32)
		pr, _ := strconv.ParseUint(args[3], 10, 32)
		return args[0], heuristicTypeFromName(args[1]), int32(b), uint32(pr), true
	default:
		return "", 0, 0, 0, false
	}
}

func heuristicTypeFromName(s string) wire.HeuristicType {
	switch strings.Trim(s, `"`) {
	case "sign":
		return wire.HeuristicSign
	case "factor":
		return wire.HeuristicFactor
	case "true":
		return wire.HeuristicTrue
	case "false":
		return wire.HeuristicFalse
	case "level":
		return wire.HeuristicLevel
	default:
		return wire.HeuristicInit
	}
}

func (p *Parser) readCompute(positive bool) error {
	tag := "B+"
	if !positive {
		tag = "B-"
	}
	line, err := p.sc.restOfLine()
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) != tag {
		return errkit.Format(p.sc.line, "expected %q compute statement, got %q", tag, line)
	}
	// Each compute atom becomes its own single-literal integrity
	// constraint (":- not x." for B+, ":- x." for B-), matching
	// SmodelsInput::readCompute's one out_.rule(...) call per atom
	// rather than one rule spanning the whole section.
	for {
		n, err := p.sc.int64()
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		l := wire.Lit(n)
		if positive {
			l = -l
		}
		rb := rulebuilder.New()
		rb.Start(wire.Disjunctive).StartBody().AddGoal(l)
		if err := rb.End(p.sink); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) readExtra() error {
	peeked, err := p.sc.peekWord()
	if err == nil && peeked == "E" {
		if _, err := p.sc.restOfLine(); err != nil {
			return err
		}
		for {
			n, err := p.sc.int64()
			if err != nil {
				return err
			}
			if n == 0 {
				break
			}
			if err := p.sink.External(wire.Atom(n), wire.Free); err != nil {
				return err
			}
		}
	}
	if _, err := p.sc.int64(); err != nil {
		return errkit.Format(p.sc.line, "number of models expected")
	}
	return nil
}

// tokenizer is a whitespace/newline-delimited integer-and-word reader
// over the whole stream (as opposed to aspif's per-line scanner: the
// smodels format's sections do not align one directive per line — the
// symbol table's name payload runs to end-of-line, but everything else
// is just whitespace-separated tokens).
type tokenizer struct {
	r    *bufio.Reader
	line int
}

func newTokenizer(r io.Reader) *tokenizer {
	return &tokenizer{r: bufio.NewReaderSize(r, 64*1024), line: 1}
}

func (t *tokenizer) skipSpace() error {
	for {
		b, err := t.r.ReadByte()
		if err != nil {
			return err
		}
		if b == '\n' {
			t.line++
			continue
		}
		if b == ' ' || b == '\t' || b == '\r' {
			continue
		}
		return t.r.UnreadByte()
	}
}

func (t *tokenizer) int64() (int64, error) {
	if err := t.skipSpace(); err != nil {
		if err == io.EOF {
			return 0, errkit.Format(t.line, "unexpected end of input")
		}
		return 0, errkit.IO(err)
	}
	var buf []byte
	for {
		b, err := t.r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errkit.IO(err)
		}
		if b == '-' || (b >= '0' && b <= '9') {
			buf = append(buf, b)
			continue
		}
		_ = t.r.UnreadByte()
		break
	}
	if len(buf) == 0 {
		return 0, errkit.Format(t.line, "expected integer")
	}
	n, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return 0, errkit.Overflow(t.line, "integer %q out of range", string(buf))
	}
	return n, nil
}

func (t *tokenizer) peekLeadingDigit() (int64, error) {
	if err := t.skipSpace(); err != nil {
		return 0, errkit.IO(err)
	}
	peek, err := t.r.Peek(1)
	if err != nil || len(peek) == 0 {
		return 0, errkit.Format(t.line, "expected integer")
	}
	return int64(peek[0] - '0'), nil
}

func (t *tokenizer) peekWord() (string, error) {
	if err := t.skipSpace(); err != nil {
		return "", errkit.IO(err)
	}
	peek, err := t.r.Peek(1)
	if err != nil || len(peek) == 0 {
		return "", errkit.Format(t.line, "expected token")
	}
	if peek[0] < 'A' || peek[0] > 'Z' {
		return "", nil
	}
	var buf []byte
	for {
		b, err := t.r.ReadByte()
		if err != nil {
			break
		}
		if b == ' ' || b == '\n' || b == '\t' || b == '\r' {
			_ = t.r.UnreadByte()
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}

func (t *tokenizer) atom() (wire.Atom, error) {
	n, err := t.int64()
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errkit.Format(t.line, "atom %d out of range", n)
	}
	return wire.Atom(n), nil
}

// restOfLine skips all leading whitespace (newlines included), then
// returns everything up to (not including) the next newline.
func (t *tokenizer) restOfLine() (string, error) {
	if err := t.skipSpace(); err != nil && err != io.EOF {
		return "", errkit.IO(err)
	}
	var buf []byte
	for {
		b, err := t.r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errkit.IO(err)
		}
		if b == '\n' {
			t.line++
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}
