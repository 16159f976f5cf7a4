// Package rulebuilder SPDX-License-Identifier: MIT
//
// rulebuilder implements C1 of the specification: a scratch aggregator
// that stages exactly one rule or minimize statement at a time before it
// is frozen and, optionally, dispatched to a wire.Sink. It mirrors the
// state machine of potassco's RuleBuilder (see original_source/potassco
// /rule_utils.h) but trades the C++ version's packed byte buffer for two
// plain Go slices — §9 of the spec explicitly sanctions this substitution
// ("a straightforward variant ... is equally valid").
package rulebuilder

import (
	"aspif/internal/errkit"
	"aspif/internal/wire"
)

// kind distinguishes what a range currently holds. For the head range this
// is a wire.HeadType, or the minimizeHead sentinel when the active
// statement is a minimize (which has no head). For the body range this is
// a wire.BodyType.
type kind int

const minimizeHead kind = -1

// status tracks one of {open, started, finished} per range, matching the
// three states §4.1 names for a pending head or body range.
type status struct {
	kind     kind
	started  bool
	finished bool
}

func (s status) open() bool { return !s.started && !s.finished }

// Builder stages one rule (head atoms + body literals, or a weighted body
// with a bound) or one minimize statement (priority + weighted literals).
// It holds at most one pending head range and one pending body range.
type Builder struct {
	head     status
	body     status
	headBuf  []wire.Atom
	bodyBuf  []wire.Lit   // valid when body.kind == wire.Normal
	sumBuf   []wire.WLit  // valid when body.kind == wire.Sum or wire.Count
	bound    int32
	haveBnd  bool
}

// New returns an empty, unfrozen Builder.
func New() *Builder { return &Builder{} }

// Frozen reports whether both ranges are finished, i.e. End was called and
// no new Start* call has opened a fresh rule since.
func (b *Builder) Frozen() bool { return b.head.finished && b.body.finished }

// clearIfFrozen discards the whole active rule when the builder is frozen,
// per §4.1: "If the builder is frozen... the first start* call clears the
// buffer."
func (b *Builder) clearIfFrozen() {
	if b.Frozen() {
		b.Clear()
	}
}

// Clear discards the active rule (head and body) and unfreezes the
// builder.
func (b *Builder) Clear() {
	b.head = status{}
	b.body = status{}
	b.headBuf = nil
	b.bodyBuf = nil
	b.sumBuf = nil
	b.bound = 0
	b.haveBnd = false
}

// Reset is an explicit alias of Clear, named for callers that want to
// reuse one Builder value across unrelated rules
// without relying on the implicit clear-on-next-start behavior.
func (b *Builder) Reset() { b.Clear() }

// freezeCounterpart marks the other range finished when starting one range
// while the counterpart is still open, matching potassco's start(): "if
// the counterpart range is open, it is marked finished."
func (b *Builder) freezeCounterpart(isHead bool) {
	if b.Frozen() {
		return
	}
	if isHead {
		if b.body.open() {
			b.body.finished = true
		}
	} else {
		if b.head.open() {
			b.head.finished = true
		}
	}
}

// Start opens the rule's head as disjunctive or choice.
func (b *Builder) Start(ht wire.HeadType) *Builder {
	b.clearIfFrozen()
	if !b.head.open() {
		panic(errkit.Precondition("head already started"))
	}
	b.freezeCounterpart(true)
	b.head = status{kind: kind(ht), started: true}
	b.headBuf = nil
	return b
}

// StartBody opens a normal (conjunction) body.
func (b *Builder) StartBody() *Builder {
	b.clearIfFrozen()
	b.startBody(kind(wire.Normal), 0, false)
	return b
}

// StartSum opens a weighted-sum body with the given lower bound.
func (b *Builder) StartSum(bound int32) *Builder {
	b.clearIfFrozen()
	// potassco's startSum is a no-op when the active head is a minimize
	// and the builder isn't frozen: startMinimize already opened the sum
	// body with the priority as bound.
	if b.head.kind == minimizeHead && !b.Frozen() {
		return b
	}
	b.startBody(kind(wire.Sum), bound, true)
	return b
}

// StartMinimize opens a minimize statement at the given priority. A
// minimize statement has no head; its body is always a sum.
func (b *Builder) StartMinimize(priority int32) *Builder {
	b.clearIfFrozen()
	if !b.head.open() {
		panic(errkit.Precondition("head already started"))
	}
	b.freezeCounterpart(true)
	b.head = status{kind: minimizeHead, started: true}
	b.headBuf = nil
	b.startBody(kind(wire.Sum), priority, true)
	return b
}

func (b *Builder) startBody(k kind, bound int32, hasBound bool) {
	if !b.body.open() {
		panic(errkit.Precondition("body already started"))
	}
	b.freezeCounterpart(false)
	b.body = status{kind: k, started: true}
	b.bodyBuf = nil
	b.sumBuf = nil
	b.bound = bound
	b.haveBnd = hasBound
}

// IsMinimize reports whether the active statement is a minimize (no
// head, identified by the head range's sentinel kind).
func (b *Builder) IsMinimize() bool { return b.head.kind == minimizeHead }

// HeadType returns the head's type; meaningless (and reported as
// Disjunctive) when IsMinimize is true.
func (b *Builder) HeadType() wire.HeadType {
	if b.head.kind == minimizeHead {
		return wire.Disjunctive
	}
	return wire.HeadType(b.head.kind)
}

// BodyType returns the active body's type; Normal when no body has been
// started yet.
func (b *Builder) BodyType() wire.BodyType { return wire.BodyType(b.body.kind) }

// Head returns the head atoms recorded so far.
func (b *Builder) Head() []wire.Atom { return b.headBuf }

// Body returns the normal-body literals recorded so far (valid only when
// BodyType() == wire.Normal).
func (b *Builder) Body() []wire.Lit { return b.bodyBuf }

// SumLits returns the weighted body literals recorded so far (valid only
// when BodyType() != wire.Normal).
func (b *Builder) SumLits() []wire.WLit { return b.sumBuf }

// Bound returns the sum/count body's lower bound, or -1 if the body is
// normal (mirrors potassco's bound(), which returns -1 for a non-sum
// body).
func (b *Builder) Bound() int32 {
	if b.BodyType() == wire.Normal {
		return -1
	}
	return b.bound
}

// AddHead appends an atom to the head, starting it with the default
// (disjunctive) type if it has not been started.
func (b *Builder) AddHead(a wire.Atom) *Builder {
	b.clearIfFrozen()
	if !b.head.started {
		b.Start(wire.Disjunctive)
	}
	if b.head.finished {
		panic(errkit.Precondition("head already frozen"))
	}
	b.headBuf = append(b.headBuf, a)
	return b
}

// AddGoal appends a plain literal to the active body. In a normal body it
// is stored as-is; in a sum/count body it is stored with weight 1.
func (b *Builder) AddGoal(l wire.Lit) *Builder {
	b.clearIfFrozen()
	if !b.body.started {
		b.StartBody()
	}
	if b.body.finished {
		panic(errkit.Precondition("body already frozen"))
	}
	if b.BodyType() == wire.Normal {
		b.bodyBuf = append(b.bodyBuf, l)
	} else {
		b.addSum(wire.WLit{Lit: l, Weight: 1})
	}
	return b
}

// AddWeightedGoal appends a weight literal to the active body. Adding a
// weight literal to a normal body is only legal when its weight is 1 (it
// is then stored as a plain literal); any other weight is a precondition
// fault.
func (b *Builder) AddWeightedGoal(wl wire.WLit) *Builder {
	b.clearIfFrozen()
	if !b.body.started {
		b.StartBody()
	}
	if b.body.finished {
		panic(errkit.Precondition("body already frozen"))
	}
	if b.BodyType() == wire.Normal {
		if wl.Weight != 1 {
			panic(errkit.Precondition("non-trivial weight literal not supported in normal body"))
		}
		b.bodyBuf = append(b.bodyBuf, wl.Lit)
		return b
	}
	b.addSum(wl)
	return b
}

// addSum appends to the sum body, silently dropping zero-weight literals
// per §4.1 ("Weight 0 literals added to a sum body must be silently
// dropped").
func (b *Builder) addSum(wl wire.WLit) {
	if wl.Weight == 0 {
		return
	}
	b.sumBuf = append(b.sumBuf, wl)
}

// SetBound rewrites the active sum/count body's lower bound.
func (b *Builder) SetBound(bound int32) *Builder {
	if b.BodyType() == wire.Normal || b.Frozen() {
		panic(errkit.Precondition("setBound requires an open sum body"))
	}
	b.bound = bound
	return b
}

// FindSumLit performs a linear scan of the sum body by literal value
// (unnormalized: -a and a are distinct), returning the index or -1.
func (b *Builder) FindSumLit(l wire.Lit) int {
	for i, wl := range b.sumBuf {
		if wl.Lit == l {
			return i
		}
	}
	return -1
}

// ClearHead discards the head; the body is left untouched.
func (b *Builder) ClearHead() *Builder {
	b.head = status{}
	b.headBuf = nil
	return b
}

// ClearBody discards the body (and bound); the head is left untouched.
func (b *Builder) ClearBody() *Builder {
	b.body = status{}
	b.bodyBuf = nil
	b.sumBuf = nil
	b.bound = 0
	b.haveBnd = false
	return b
}

// Weaken downgrades the active sum/count body to a weaker shape:
//   - sum -> count: with resetWeights, weights all become 1 and the bound
//     becomes ceil(bound / minWeight); without it, only the body type
//     changes and weights and bound are kept as they are.
//   - sum -> normal / count -> normal: weights and bound are dropped;
//     literals survive in order.
//
// Weaken on a minimize statement's body is a precondition fault: a
// minimize body's weights are semantically significant (they are the
// objective), not a satisfaction threshold, so there is nothing to weaken
// toward.
func (b *Builder) Weaken(to wire.BodyType, resetWeights bool) *Builder {
	if b.IsMinimize() {
		panic(errkit.Precondition("weaken is invalid on a minimize statement"))
	}
	from := b.BodyType()
	if from == wire.Normal || from == to {
		return b
	}
	switch to {
	case wire.Normal:
		lits := make([]wire.Lit, len(b.sumBuf))
		for i, wl := range b.sumBuf {
			lits[i] = wl.Lit
		}
		b.bodyBuf = lits
		b.sumBuf = nil
		b.bound = 0
		b.haveBnd = false
		b.body.kind = kind(wire.Normal)
	case wire.Count:
		if len(b.sumBuf) == 0 {
			b.body.kind = kind(wire.Count)
			return b
		}
		if resetWeights {
			minW := b.sumBuf[0].Weight
			for _, wl := range b.sumBuf {
				if wl.Weight < minW {
					minW = wl.Weight
				}
			}
			if minW <= 0 {
				minW = 1
			}
			bound := b.bound
			for i := range b.sumBuf {
				b.sumBuf[i].Weight = 1
			}
			b.bound = (bound + minW - 1) / minW
		}
		b.body.kind = kind(wire.Count)
	}
	return b
}

// End freezes both ranges. If sink is non-nil, it dispatches the
// accumulated rule or minimize statement to it.
func (b *Builder) End(sink wire.Sink) error {
	b.head.finished = true
	b.body.finished = true
	b.head.started = true
	b.body.started = true
	if sink == nil {
		return nil
	}
	if b.IsMinimize() {
		return sink.Minimize(wire.Minimize{Priority: b.bound, Lits: append([]wire.WLit(nil), b.sumBuf...)})
	}
	return sink.Rule(b.Rule())
}

// Rule materializes the active rule as a value, independent of End's sink
// dispatch, so a caller can inspect a frozen (or still-open) rule without
// requiring a full sink round trip.
func (b *Builder) Rule() wire.Rule {
	r := wire.Rule{
		HeadType: b.HeadType(),
		Head:     append([]wire.Atom(nil), b.headBuf...),
		BodyType: b.BodyType(),
	}
	if r.BodyType == wire.Normal {
		r.Normal = append([]wire.Lit(nil), b.bodyBuf...)
	} else {
		r.Agg = wire.Aggregate{Lits: append([]wire.WLit(nil), b.sumBuf...), Bound: b.bound}
	}
	return r
}
