package smodels

import (
	"bytes"
	"strings"
	"testing"

	"aspif/internal/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink captures every directive it receives.
type recordingSink struct {
	wire.Unsupported
	incremental bool
	rules       []wire.Rule
	minimizes   []wire.Minimize
	outputs     []struct {
		text string
		atom wire.Atom
	}
	externals []struct {
		atom wire.Atom
		v    wire.TruthValue
	}
	assumes    [][]wire.Lit
	edges      []struct{ s, t int32 }
	heuristics []struct {
		atom wire.Atom
		t    wire.HeuristicType
		bias int32
		prio uint32
	}
}

func (s *recordingSink) InitProgram(incremental bool) error { s.incremental = incremental; return nil }
func (s *recordingSink) BeginStep() error                   { return nil }
func (s *recordingSink) EndStep() error                      { return nil }
func (s *recordingSink) Rule(r wire.Rule) error              { s.rules = append(s.rules, r); return nil }
func (s *recordingSink) Minimize(m wire.Minimize) error      { s.minimizes = append(s.minimizes, m); return nil }
func (s *recordingSink) Output(text string, cond []wire.Lit) error {
	var a wire.Atom
	if len(cond) == 1 {
		a = wire.Atom(cond[0])
	}
	s.outputs = append(s.outputs, struct {
		text string
		atom wire.Atom
	}{text, a})
	return nil
}
func (s *recordingSink) External(a wire.Atom, v wire.TruthValue) error {
	s.externals = append(s.externals, struct {
		atom wire.Atom
		v    wire.TruthValue
	}{a, v})
	return nil
}
func (s *recordingSink) Assume(lits []wire.Lit) error {
	s.assumes = append(s.assumes, lits)
	return nil
}
func (s *recordingSink) AcycEdge(a, b int32, cond []wire.Lit) error {
	s.edges = append(s.edges, struct{ s, t int32 }{a, b})
	return nil
}
func (s *recordingSink) Heuristic(a wire.Atom, t wire.HeuristicType, bias int32, prio uint32, cond []wire.Lit) error {
	s.heuristics = append(s.heuristics, struct {
		atom wire.Atom
		t    wire.HeuristicType
		bias int32
		prio uint32
	}{a, t, bias, prio})
	return nil
}

func TestWriterBasicRule(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.InitProgram(false))
	require.NoError(t, w.BeginStep())
	require.NoError(t, w.Rule(wire.Rule{HeadType: wire.Disjunctive, Head: []wire.Atom{1}, BodyType: wire.Normal, Normal: []wire.Lit{2, -3}}))
	require.NoError(t, w.EndStep())
	// rule, then the two section terminators (rules, empty symbols), then an empty compute block.
	assert.Equal(t, "1 1 2 1 3 2\n0\n0\nB+\n0\nB-\n0\n1\n", buf.String())
}

func TestWriterChoiceRule(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.BeginStep())
	require.NoError(t, w.Rule(wire.Rule{HeadType: wire.Choice, Head: []wire.Atom{1, 2}, BodyType: wire.Normal}))
	require.NoError(t, w.EndStep())
	assert.True(t, strings.HasPrefix(buf.String(), "3 2 1 2 0 0\n"))
}

func TestWriterCardinalityBoundAfterCounts(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.BeginStep())
	r := wire.Rule{
		HeadType: wire.Disjunctive,
		Head:     []wire.Atom{1},
		BodyType: wire.Sum,
		Agg:      wire.Aggregate{Bound: 1, Lits: []wire.WLit{{Lit: 2, Weight: 1}, {Lit: -3, Weight: 1}}},
	}
	require.NoError(t, w.Rule(r))
	require.NoError(t, w.EndStep())
	// cardinality: "2 1 2 1 1 3 2" -> nLits=2 nNeg=1 bound=1 <neg><pos>
	assert.True(t, strings.HasPrefix(buf.String(), "2 1 2 1 1 3 2\n"))
}

func TestWriterWeightBoundBeforeCounts(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.BeginStep())
	r := wire.Rule{
		HeadType: wire.Disjunctive,
		Head:     []wire.Atom{1},
		BodyType: wire.Sum,
		Agg:      wire.Aggregate{Bound: 3, Lits: []wire.WLit{{Lit: 2, Weight: 2}, {Lit: 4, Weight: 5}}},
	}
	require.NoError(t, w.Rule(r))
	require.NoError(t, w.EndStep())
	// weight: "5 1 3 2 0 2 4 2 5" -> bound=3 nLits=2 nNeg=0 <atoms> <weights>
	assert.True(t, strings.HasPrefix(buf.String(), "5 1 3 2 0 2 4 2 5\n"))
}

func TestWriterMinimizeHardcodesZeroBound(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.BeginStep())
	require.NoError(t, w.Minimize(wire.Minimize{Priority: 7, Lits: []wire.WLit{{Lit: 1, Weight: 2}}}))
	require.NoError(t, w.EndStep())
	assert.True(t, strings.HasPrefix(buf.String(), "6 0 1 0 1 2\n"))
}

func TestWriterEmptyHeadRequiresFalseAtom(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.BeginStep())
	err := w.Rule(wire.Rule{HeadType: wire.Disjunctive, BodyType: wire.Normal, Normal: []wire.Lit{1}})
	require.Error(t, err)
}

func TestWriterEmptyHeadUsesFalseAtom(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithFalseAtom(9))
	require.NoError(t, w.BeginStep())
	require.NoError(t, w.Rule(wire.Rule{HeadType: wire.Disjunctive, BodyType: wire.Normal, Normal: []wire.Lit{1}}))
	require.NoError(t, w.EndStep())
	assert.Equal(t, "1 9 1 0 1\n0\n0\nB+\n0\nB-\n9\n0\n1\n", buf.String())
}

func TestWriterExternalRequiresClaspExt(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.BeginStep())
	require.Error(t, w.External(1, wire.True))
}

func TestWriterExternalEncoding(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithClaspExt())
	require.NoError(t, w.BeginStep())
	require.NoError(t, w.External(3, wire.True))
	require.NoError(t, w.External(4, wire.Release))
	require.NoError(t, w.EndStep())
	out := buf.String()
	assert.Contains(t, out, "91 3 1\n")
	assert.Contains(t, out, "92 4\n")
}

func TestWriterComputeStatement(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.BeginStep())
	require.NoError(t, w.Assume([]wire.Lit{1, -2}))
	require.NoError(t, w.EndStep())
	// no rules or symbols were added, so both section terminators precede B+.
	assert.Equal(t, "0\n0\nB+\n1\n0\nB-\n2\n0\n1\n", buf.String())
}

func TestWriterSecondComputeRejected(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.BeginStep())
	require.NoError(t, w.Assume([]wire.Lit{1}))
	require.Error(t, w.Assume([]wire.Lit{2}))
}

func TestParserBasicRule(t *testing.T) {
	sink := &recordingSink{}
	p := NewParser(strings.NewReader("1 1 2 1 2 3\n0\n0\nB+\n0\nB-\n0\n1\n"), sink)
	require.NoError(t, p.Parse())
	require.Len(t, sink.rules, 1)
	r := sink.rules[0]
	assert.Equal(t, wire.Disjunctive, r.HeadType)
	assert.Equal(t, []wire.Atom{1}, r.Head)
	assert.Equal(t, wire.Normal, r.BodyType)
	assert.Equal(t, []wire.Lit{-2, 3}, r.Normal)
}

func TestParserCardinalityRule(t *testing.T) {
	sink := &recordingSink{}
	// "2 1 2 1 1 3 2" -> head 1, nLits=2 nNeg=1 bound=1, neg=3 pos=2
	p := NewParser(strings.NewReader("2 1 2 1 1 3 2\n0\n0\nB+\n0\nB-\n0\n1\n"), sink)
	require.NoError(t, p.Parse())
	require.Len(t, sink.rules, 1)
	r := sink.rules[0]
	assert.Equal(t, wire.Sum, r.BodyType)
	assert.Equal(t, int32(1), r.Agg.Bound)
	assert.Equal(t, []wire.WLit{{Lit: -3, Weight: 1}, {Lit: 2, Weight: 1}}, r.Agg.Lits)
}

func TestParserWeightRule(t *testing.T) {
	sink := &recordingSink{}
	// "5 1 3 2 0 2 4 2 5" -> head 1, bound=3 nLits=2 nNeg=0, atoms 2,4 weights 2,5
	p := NewParser(strings.NewReader("5 1 3 2 0 2 4 2 5\n0\n0\nB+\n0\nB-\n0\n1\n"), sink)
	require.NoError(t, p.Parse())
	require.Len(t, sink.rules, 1)
	r := sink.rules[0]
	assert.Equal(t, wire.Sum, r.BodyType)
	assert.Equal(t, int32(3), r.Agg.Bound)
	assert.Equal(t, []wire.WLit{{Lit: 2, Weight: 2}, {Lit: 4, Weight: 5}}, r.Agg.Lits)
}

func TestParserOptimize(t *testing.T) {
	sink := &recordingSink{}
	p := NewParser(strings.NewReader("6 0 1 0 1 2\n0\n0\nB+\n0\nB-\n0\n1\n"), sink)
	require.NoError(t, p.Parse())
	require.Len(t, sink.minimizes, 1)
	assert.Equal(t, int32(0), sink.minimizes[0].Priority)
	assert.Equal(t, []wire.WLit{{Lit: 1, Weight: 2}}, sink.minimizes[0].Lits)
}

func TestParserClaspIncrementRequiresExt(t *testing.T) {
	sink := &recordingSink{}
	p := NewParser(strings.NewReader("90 0\n0\n0\nB+\n0\nB-\n0\n1\n"), sink)
	require.Error(t, p.Parse())
}

func TestParserIncrementalDetection(t *testing.T) {
	sink := &recordingSink{}
	p := NewParser(strings.NewReader("90 0\n0\n0\nB+\n0\nB-\n0\n1\n"), sink, WithClaspExtParsing())
	require.NoError(t, p.Parse())
	assert.True(t, sink.incremental)
}

func TestParserAssignExternalDecoding(t *testing.T) {
	// clasp rule types 90/91/92 are read as part of the rule section,
	// before its closing 0. Wire value 1 decodes to True: (1^3)-1 = 1.
	sink := &recordingSink{}
	p := NewParser(strings.NewReader("91 3 1\n0\n0\nB+\n0\nB-\n0\n1\n"), sink, WithClaspExtParsing())
	require.NoError(t, p.Parse())
	require.Len(t, sink.externals, 1)
	assert.Equal(t, wire.Atom(3), sink.externals[0].atom)
	assert.Equal(t, wire.True, sink.externals[0].v)
}

func TestParserReleaseExternalRequiresExt(t *testing.T) {
	sink := &recordingSink{}
	p := NewParser(strings.NewReader("92 3\n0\n0\nB+\n0\nB-\n0\n1\n"), sink)
	require.Error(t, p.Parse())
}

func TestParserOutputSymbol(t *testing.T) {
	sink := &recordingSink{}
	p := NewParser(strings.NewReader("1 1 0 0\n0\n1 foo\n0\nB+\n0\nB-\n0\n1\n"), sink)
	require.NoError(t, p.Parse())
	require.Len(t, sink.outputs, 1)
	assert.Equal(t, "foo", sink.outputs[0].text)
	assert.Equal(t, wire.Atom(1), sink.outputs[0].atom)
}

func TestParserEdgeNames(t *testing.T) {
	sink := &recordingSink{}
	src := "1 1 0 0\n0\n1 _edge(a,b)\n0\nB+\n0\nB-\n0\n1\n"
	p := NewParser(strings.NewReader(src), sink, WithEdgeNames(), WithFilter())
	require.NoError(t, p.Parse())
	require.Len(t, sink.edges, 1)
	assert.Equal(t, int32(0), sink.edges[0].s)
	assert.Equal(t, int32(1), sink.edges[0].t)
	assert.Empty(t, sink.outputs)
}

func TestParserHeuristicNames(t *testing.T) {
	sink := &recordingSink{}
	// atom 2 is named "a"; atom 1's own symbol is a _heuristic reference
	// to "a", resolved once "a" has already appeared in the table.
	src := "1 1 0 0\n1 2 0 0\n0\n2 a\n1 _heuristic(a,\"true\",10,1)\n0\nB+\n0\nB-\n0\n1\n"
	p := NewParser(strings.NewReader(src), sink, WithHeuristicNames(), WithFilter())
	require.NoError(t, p.Parse())
	require.Len(t, sink.heuristics, 1)
	assert.Equal(t, wire.Atom(2), sink.heuristics[0].atom)
	assert.Equal(t, wire.HeuristicTrue, sink.heuristics[0].t)
	assert.Equal(t, int32(10), sink.heuristics[0].bias)
	assert.Equal(t, uint32(1), sink.heuristics[0].prio)
}

func TestParserComputeStatementEncodesIntegrityConstraints(t *testing.T) {
	// B+ atom 1 must be true -> ":- not 1." (body literal -1);
	// B- atom 2 must be false -> ":- 2." (body literal 2). One rule per atom.
	sink := &recordingSink{}
	p := NewParser(strings.NewReader("0\n0\nB+\n1\n0\nB-\n2\n0\n1\n"), sink)
	require.NoError(t, p.Parse())
	require.Len(t, sink.rules, 2)
	for _, r := range sink.rules {
		assert.Equal(t, wire.Disjunctive, r.HeadType)
		assert.Empty(t, r.Head)
	}
	assert.Equal(t, []wire.Lit{-1}, sink.rules[0].Normal)
	assert.Equal(t, []wire.Lit{2}, sink.rules[1].Normal)
}

func TestRoundTripWriterToParser(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithFalseAtom(9), WithClaspExt())
	require.NoError(t, w.InitProgram(false))
	require.NoError(t, w.BeginStep())
	require.NoError(t, w.Rule(wire.Rule{HeadType: wire.Disjunctive, Head: []wire.Atom{1}, BodyType: wire.Normal, Normal: []wire.Lit{2, -3}}))
	require.NoError(t, w.OutputAtom(1, "foo"))
	require.NoError(t, w.EndStep())

	sink := &recordingSink{}
	p := NewParser(strings.NewReader(buf.String()), sink, WithClaspExtParsing())
	require.NoError(t, p.Parse())
	require.Len(t, sink.rules, 1)
	// smodels groups negative literals before positive ones, so the
	// original literal order is not preserved -- only the literal set is.
	assert.ElementsMatch(t, []wire.Lit{2, -3}, sink.rules[0].Normal)
	require.Len(t, sink.outputs, 1)
	assert.Equal(t, "foo", sink.outputs[0].text)
}
