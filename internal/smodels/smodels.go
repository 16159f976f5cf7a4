// Package smodels implements C4 (parser) and C6 (writer) of the
// specification: the legacy smodels numeric format, including the clasp
// incremental/external-value extensions. Grounded on
// original_source/potassco/smodels.h and src/smodels.cpp.
package smodels

// RuleType is one of the fixed numeric rule-type codes of §6.2.
type RuleType int

const (
	End             RuleType = 0
	Basic           RuleType = 1
	Cardinality     RuleType = 2
	Choice          RuleType = 3
	Weight          RuleType = 5
	Optimize        RuleType = 6
	Disjunctive     RuleType = 8
	ClaspIncrement  RuleType = 90
	ClaspAssignExt  RuleType = 91
	ClaspReleaseExt RuleType = 92
)
