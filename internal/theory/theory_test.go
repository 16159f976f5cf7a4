package theory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTermRejectsRedefinition(t *testing.T) {
	s := New()
	require.NoError(t, s.AddTerm(1, NumberTerm(5)))
	err := s.AddTerm(1, NumberTerm(6))
	require.Error(t, err)
}

func TestRemoveTermAllowsReuse(t *testing.T) {
	s := New()
	require.NoError(t, s.AddTerm(1, NumberTerm(5)))
	s.RemoveTerm(1)
	assert.False(t, s.HasTerm(1))
	require.NoError(t, s.AddTerm(1, SymbolTerm("x")))
	term, err := s.GetTerm(1)
	require.NoError(t, err)
	assert.Equal(t, Symbol, term.Type)
}

func TestSetConditionOnlyWhenDeferred(t *testing.T) {
	s := New()
	require.NoError(t, s.AddElement(1, []uint32{}, 0))
	assert.Error(t, s.SetCondition(1, 5))

	require.NoError(t, s.AddElement(2, []uint32{}, CondDeferred))
	require.NoError(t, s.SetCondition(2, 5))
	elem, err := s.GetElement(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), elem.Cond)
}

func TestUpdateMarksCurrentStep(t *testing.T) {
	s := New()
	require.NoError(t, s.AddTerm(1, NumberTerm(1)))
	s.Update()
	require.NoError(t, s.AddTerm(2, NumberTerm(2)))

	assert.False(t, s.IsNewTerm(1))
	assert.True(t, s.IsNewTerm(2))
}

func TestFilterPreservesOrderAndSkipsDirectiveOnlyAtoms(t *testing.T) {
	s := New()
	require.NoError(t, s.AddTerm(0, SymbolTerm("diff")))
	s.AddAtom(0, 0, nil)  // directive-only, Atom == 0
	s.AddAtom(1, 0, nil)  // program atom 1
	s.AddAtom(2, 0, nil)  // program atom 2
	s.Update()
	s.AddAtom(3, 0, nil)
	s.AddAtom(4, 0, nil)

	s.Filter(func(a Atom) bool { return a.Atom == 4 })

	var ids []uint32
	for _, a := range s.Atoms() {
		ids = append(ids, a.Atom)
	}
	assert.Equal(t, []uint32{0, 1, 2, 3}, ids)
}

func TestFilterOnlyTouchesAtomsAfterLastUpdate(t *testing.T) {
	s := New()
	s.AddAtom(1, 0, nil)
	s.Update()
	s.AddAtom(2, 0, nil)

	s.Filter(func(a Atom) bool { return true }) // would drop everything new
	var ids []uint32
	for _, a := range s.Atoms() {
		ids = append(ids, a.Atom)
	}
	assert.Equal(t, []uint32{1}, ids)
}

func TestResetClearsEverything(t *testing.T) {
	s := New()
	require.NoError(t, s.AddTerm(1, NumberTerm(1)))
	s.AddAtom(1, 1, nil)
	s.Reset()
	assert.False(t, s.HasTerm(1))
	assert.Equal(t, 0, s.NumAtoms())
}

type capturingVisitor struct {
	terms    []uint32
	elements []uint32
	atoms    []uint32
}

func (v *capturingVisitor) VisitTerm(s *Store, id uint32, term Term) { v.terms = append(v.terms, id) }
func (v *capturingVisitor) VisitElement(s *Store, id uint32, e Element) {
	v.elements = append(v.elements, id)
	s.AcceptElement(e, v, VisitAll)
}
func (v *capturingVisitor) VisitAtom(s *Store, a Atom) {
	v.atoms = append(v.atoms, a.Atom)
	s.AcceptAtom(a, v, VisitAll)
}

func TestVisitorOrderAtomThenElementsThenTerms(t *testing.T) {
	s := New()
	require.NoError(t, s.AddTerm(0, SymbolTerm("diff")))
	require.NoError(t, s.AddTerm(1, NumberTerm(1)))
	require.NoError(t, s.AddElement(0, []uint32{1}, 0))
	s.AddAtomGuard(7, 0, []uint32{0}, 2, 1)

	v := &capturingVisitor{}
	s.Accept(v, VisitAll)

	assert.Equal(t, []uint32{7}, v.atoms)
	assert.Equal(t, []uint32{0}, v.elements)
	assert.Contains(t, v.terms, uint32(0))
	assert.Contains(t, v.terms, uint32(1))
}

func TestCompoundTermVisitsArgsThenBase(t *testing.T) {
	s := New()
	require.NoError(t, s.AddTerm(0, SymbolTerm("f")))
	require.NoError(t, s.AddTerm(1, NumberTerm(1)))
	require.NoError(t, s.AddTerm(2, FunctionTerm(0, []uint32{1})))

	var order []uint32
	term, err := s.GetTerm(2)
	require.NoError(t, err)
	rec := visitFunc(func(s *Store, id uint32, t Term) { order = append(order, id) })
	s.AcceptTerm(term, rec, VisitAll)

	assert.Equal(t, []uint32{1, 0}, order)
}

// visitFunc adapts a plain term-visiting func into a Visitor for tests
// that only care about VisitTerm.
type visitFunc func(s *Store, id uint32, t Term)

func (f visitFunc) VisitTerm(s *Store, id uint32, t Term)    { f(s, id, t) }
func (f visitFunc) VisitElement(s *Store, id uint32, e Element) {}
func (f visitFunc) VisitAtom(s *Store, a Atom)               {}
