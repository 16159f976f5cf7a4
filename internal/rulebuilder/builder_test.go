package rulebuilder

import (
	"testing"

	"aspif/internal/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	wire.Unsupported
	rules     []wire.Rule
	minimizes []wire.Minimize
}

func (s *recordingSink) Rule(r wire.Rule) error {
	s.rules = append(s.rules, r)
	return nil
}

func (s *recordingSink) Minimize(m wire.Minimize) error {
	s.minimizes = append(s.minimizes, m)
	return nil
}

func TestNormalRuleRoundTrip(t *testing.T) {
	b := New()
	b.Start(wire.Choice).AddHead(1).AddHead(2)
	b.StartBody().AddGoal(3).AddGoal(-4)

	sink := &recordingSink{}
	require.NoError(t, b.End(sink))
	require.Len(t, sink.rules, 1)

	r := sink.rules[0]
	assert.Equal(t, wire.Choice, r.HeadType)
	assert.Equal(t, []wire.Atom{1, 2}, r.Head)
	assert.Equal(t, wire.Normal, r.BodyType)
	assert.Equal(t, []wire.Lit{3, -4}, r.Normal)
}

func TestSumBodyDropsZeroWeight(t *testing.T) {
	b := New()
	b.Start(wire.Disjunctive).AddHead(1)
	b.StartSum(2).AddWeightedGoal(wire.WLit{Lit: 2, Weight: 1}).
		AddWeightedGoal(wire.WLit{Lit: -3, Weight: 0}).
		AddWeightedGoal(wire.WLit{Lit: 4, Weight: 1})

	assert.Equal(t, []wire.WLit{{Lit: 2, Weight: 1}, {Lit: 4, Weight: 1}}, b.SumLits())
	assert.Equal(t, int32(2), b.Bound())
}

func TestAddWeightedGoalOnNormalBodyRequiresUnitWeight(t *testing.T) {
	b := New()
	b.StartBody()
	assert.Panics(t, func() { b.AddWeightedGoal(wire.WLit{Lit: 1, Weight: 2}) })
}

func TestAddWeightedGoalUnitWeightOnNormalBodyIsPlainLit(t *testing.T) {
	b := New()
	b.StartBody().AddWeightedGoal(wire.WLit{Lit: 5, Weight: 1})
	assert.Equal(t, []wire.Lit{5}, b.Body())
}

func TestWeakenSumToCountScalesBound(t *testing.T) {
	b := New()
	b.Start(wire.Disjunctive).AddHead(1)
	b.StartSum(5).AddWeightedGoal(wire.WLit{Lit: 1, Weight: 2}).AddWeightedGoal(wire.WLit{Lit: 2, Weight: 3})
	b.Weaken(wire.Count, true)

	assert.Equal(t, wire.Count, b.BodyType())
	for _, wl := range b.SumLits() {
		assert.Equal(t, int32(1), wl.Weight)
	}
	// bound 5, minWeight 2 -> ceil(5/2) = 3
	assert.Equal(t, int32(3), b.Bound())
}

func TestWeakenToNormalDropsWeightsAndBound(t *testing.T) {
	b := New()
	b.Start(wire.Disjunctive).AddHead(1)
	b.StartSum(5).AddWeightedGoal(wire.WLit{Lit: 1, Weight: 2}).AddWeightedGoal(wire.WLit{Lit: -2, Weight: 3})
	b.Weaken(wire.Normal, true)

	assert.Equal(t, wire.Normal, b.BodyType())
	assert.Equal(t, []wire.Lit{1, -2}, b.Body())
	assert.Equal(t, int32(-1), b.Bound())
}

func TestWeakenOnMinimizePanics(t *testing.T) {
	b := New()
	b.StartMinimize(0).AddWeightedGoal(wire.WLit{Lit: 1, Weight: 1})
	assert.Panics(t, func() { b.Weaken(wire.Count, true) })
}

func TestMinimizeDispatchesToSink(t *testing.T) {
	b := New()
	b.StartMinimize(3).AddWeightedGoal(wire.WLit{Lit: 1, Weight: 2}).AddWeightedGoal(wire.WLit{Lit: -2, Weight: 1})

	sink := &recordingSink{}
	require.NoError(t, b.End(sink))
	require.Len(t, sink.minimizes, 1)
	assert.Equal(t, int32(3), sink.minimizes[0].Priority)
	assert.Equal(t, []wire.WLit{{Lit: 1, Weight: 2}, {Lit: -2, Weight: 1}}, sink.minimizes[0].Lits)
}

func TestFrozenBuilderClearsOnNextStart(t *testing.T) {
	b := New()
	b.Start(wire.Disjunctive).AddHead(1)
	b.StartBody().AddGoal(2)
	require.NoError(t, b.End(nil))
	assert.True(t, b.Frozen())

	b.Start(wire.Choice).AddHead(9)
	assert.Equal(t, []wire.Atom{9}, b.Head())
	assert.Empty(t, b.Body())
}

func TestDoubleStartWithoutEndPanics(t *testing.T) {
	b := New()
	b.Start(wire.Disjunctive)
	assert.Panics(t, func() { b.Start(wire.Choice) })
}

func TestSetBoundOnNormalBodyPanics(t *testing.T) {
	b := New()
	b.StartBody()
	assert.Panics(t, func() { b.SetBound(4) })
}

func TestFindSumLit(t *testing.T) {
	b := New()
	b.StartSum(1).AddWeightedGoal(wire.WLit{Lit: 1, Weight: 1}).AddWeightedGoal(wire.WLit{Lit: -2, Weight: 1})
	assert.Equal(t, 1, b.FindSumLit(-2))
	assert.Equal(t, -1, b.FindSumLit(2))
}

func TestClearHeadTruncatesOnTop(t *testing.T) {
	b := New()
	b.StartBody().AddGoal(1)
	b.Start(wire.Disjunctive).AddHead(2)
	b.ClearHead()
	assert.Empty(t, b.Head())
	assert.Equal(t, []wire.Lit{1}, b.Body())
}

func TestAddHeadStartsDefaultHead(t *testing.T) {
	b := New()
	b.AddHead(7)
	assert.Equal(t, wire.Disjunctive, b.HeadType())
	assert.Equal(t, []wire.Atom{7}, b.Head())
}

func TestAddGoalOnSumBodyUsesWeightOne(t *testing.T) {
	b := New()
	b.StartSum(1).AddGoal(5)
	assert.Equal(t, []wire.WLit{{Lit: 5, Weight: 1}}, b.SumLits())
}
