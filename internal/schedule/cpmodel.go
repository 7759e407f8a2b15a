package schedule

import (
	"fmt"

	mk "github.com/zeeeing/posting-scheduler/pkg/minikanren"
)

// This file adapts pkg/minikanren's finite-domain layer to the handful
// of patterns the posting-allocation model leans on repeatedly: plain
// decision booleans, implication between two such booleans, and
// "exactly/at-least/at-most K of N" counting. The solver's own
// reification convention (domain {1,2}, 1=false 2=true — see
// reification.go) is used directly as the boolean domain everywhere in
// this package, so a Regular automaton's alphabet symbols line up with
// a boolean variable's values with no remapping.

// boolDomain is the {false=1, true=2} domain shared by every decision
// boolean in this package.
var boolDomain = mk.DomainValues(1, 2)

const (
	valFalse = 1
	valTrue  = 2
)

// newBool declares a fresh boolean decision variable.
func newBool(m *mk.Model, name string) *mk.FDVariable {
	return m.NewVariableWithName(boolDomain, name)
}

// isTrue interprets a solved value under the {1,2} convention.
func isTrue(v int) bool { return v == valTrue }

// implies posts a <= b over the {1,2} convention, i.e. a=true forces
// b=true (CP-SAT's OnlyEnforceIf for a single-variable consequence).
func implies(m *mk.Model, a, b *mk.FDVariable) error {
	c, err := mk.NewInequality(a, b, mk.LessEqual)
	if err != nil {
		return err
	}
	m.AddConstraint(c)
	return nil
}

// reifyEquals posts boolVar <=> (v == target) and returns boolVar.
func reifyEquals(m *mk.Model, v *mk.FDVariable, target int, name string) (*mk.FDVariable, error) {
	flag := newBool(m, name)
	c, err := mk.NewEqualityReified(v, m.NewVariableWithName(mk.DomainValues(target), name+"_const"), flag)
	if err != nil {
		return nil, err
	}
	m.AddConstraint(c)
	return flag, nil
}

// reifyInSet posts boolVar <=> (v in values) and returns boolVar.
func reifyInSet(m *mk.Model, v *mk.FDVariable, values []int, name string) (*mk.FDVariable, error) {
	flag := newBool(m, name)
	c, err := mk.NewInSetReified(v, values, flag)
	if err != nil {
		return nil, err
	}
	m.AddConstraint(c)
	return flag, nil
}

// exactlyK constrains exactly k of vars to be true, using the
// {1,2}-domain identity sum(vars) = len(vars) + k.
func exactlyK(m *mk.Model, vars []*mk.FDVariable, k int, name string) error {
	return boundedSum(m, vars, len(vars)+k, len(vars)+k, name)
}

// atLeastK constrains at least k of vars to be true.
func atLeastK(m *mk.Model, vars []*mk.FDVariable, k int, name string) error {
	return boundedSum(m, vars, len(vars)+k, 2*len(vars), name)
}

// atMostK constrains at most k of vars to be true.
func atMostK(m *mk.Model, vars []*mk.FDVariable, k int, name string) error {
	return boundedSum(m, vars, len(vars), len(vars)+k, name)
}

// boundedSum posts sum(vars) in [lo, hi] by linking vars to a total
// variable whose domain is exactly that range.
func boundedSum(m *mk.Model, vars []*mk.FDVariable, lo, hi int, name string) error {
	if len(vars) == 0 {
		if lo <= 0 && 0 <= hi {
			return nil
		}
		return fmt.Errorf("boundedSum %s: empty variable list cannot satisfy [%d,%d]", name, lo, hi)
	}
	if lo > hi {
		return fmt.Errorf("boundedSum %s: empty range [%d,%d]", name, lo, hi)
	}
	total := m.NewVariableWithName(mk.DomainRange(lo, hi), name+"_total")
	coeffs := make([]int, len(vars))
	for i := range coeffs {
		coeffs[i] = 1
	}
	return m.LinearSum(vars, coeffs, total)
}

// countTrueVar returns an Among-encoded count variable for how many of
// vars take a value in values, per pkg/minikanren's K-encoding
// (solved value K decodes to actual count K-1).
func countTrueVar(m *mk.Model, vars []*mk.FDVariable, values []int, name string) (*mk.FDVariable, error) {
	k := m.NewVariableWithName(mk.DomainRange(1, len(vars)+1), name+"_k")
	c, err := mk.NewAmong(vars, values, k)
	if err != nil {
		return nil, err
	}
	m.AddConstraint(c)
	return k, nil
}

// amongCount decodes an Among K-encoded solved value to the actual count.
func amongCount(k int) int { return k - 1 }

// regularConstraint wires a Regular automaton over vars and adds it to
// the model.
func regularConstraint(m *mk.Model, vars []*mk.FDVariable, numStates, start int, accept []int, delta [][]int) error {
	c, err := mk.NewRegular(vars, numStates, start, accept, delta)
	if err != nil {
		return err
	}
	m.AddConstraint(c)
	return nil
}

// equalVars posts a <=> b between two already-built {1,2} booleans and
// returns the biconditional flag, using the same pinned-constant
// LinearSum trick as minMaxSpread: a - b can be -1, 0 or 1, none of
// which is a legal FD domain on its own, so it is shifted by +2 into
// diff in [1,3], and diff==2 iff a==b.
func equalVars(m *mk.Model, a, bVar *mk.FDVariable, name string) (*mk.FDVariable, error) {
	two := m.NewVariableWithName(mk.DomainValues(2), name+"_two")
	diff := m.NewVariableWithName(mk.DomainRange(1, 3), name+"_diff")
	c, err := mk.NewLinearSum([]*mk.FDVariable{a, bVar, two}, []int{1, -1, 1}, diff)
	if err != nil {
		return nil, err
	}
	m.AddConstraint(c)
	return reifyEquals(m, diff, 2, name+"_eq")
}

// minMaxSpread posts max(vars) - min(vars) <= spread by introducing
// min/max auxiliary variables and an inequality between them encoded
// via a shifted linear sum (max <= min + spread).
func minMaxSpread(m *mk.Model, vars []*mk.FDVariable, lo, hi, spread int, name string) error {
	minVar := m.NewVariableWithName(mk.DomainRange(lo, hi), name+"_min")
	maxVar := m.NewVariableWithName(mk.DomainRange(lo, hi), name+"_max")
	minC, err := mk.NewMin(vars, minVar)
	if err != nil {
		return err
	}
	m.AddConstraint(minC)
	maxC, err := mk.NewMax(vars, maxVar)
	if err != nil {
		return err
	}
	m.AddConstraint(maxC)
	// All FD domains are positive integers, so "max - min" (which can be
	// zero) cannot be a total directly. Shift by a pinned +1 constant:
	// max - min + 1 = total, total in [1, spread+1].
	one := m.NewVariableWithName(mk.DomainValues(1), name+"_one")
	total := m.NewVariableWithName(mk.DomainRange(1, spread+1), name+"_spread")
	c, err := mk.NewLinearSum([]*mk.FDVariable{maxVar, minVar, one}, []int{1, -1, 1}, total)
	if err != nil {
		return err
	}
	m.AddConstraint(c)
	return nil
}
