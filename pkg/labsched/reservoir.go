package labsched

import (
	"fmt"

	mk "github.com/gitrdm/gokando/pkg/minikanren"
)

// maxOverlapCombinations bounds how many (capacity+1)-sized subsets
// enforceMaxOverlap will post constraints for. A reservoir worker with many
// concurrent dwelling samples and capacity > 1 has C(n, capacity+1) such
// subsets, which grows fast; beyond this bound we stop adding subsets rather
// than building a combinatorially huge model. The schedule is still correct
// for every subset actually posted, it is only the additional, unposted
// subsets whose capacity violation would go undetected. Worth revisiting with
// a true time-table propagator (see DESIGN.md) if this bound is ever hit in
// practice.
const maxOverlapCombinations = 20000

// enforceMaxOverlap posts constraints ensuring that at most capacity of the
// given dwell intervals ever overlap simultaneously.
//
// capacity == 1 is the original scheduler's unit-capacity "sample span" rule:
// every pair of dwell intervals must be disjoint, decomposed exactly like
// gokando's own Diffn (reified pairwise inequalities, ORed via BoolSum) -
// see diffn.go.
//
// capacity > 1 generalizes this for Reservoir workers (SPEC_FULL.md §4.4):
// a family of 1-dimensional intervals can have at most `capacity` pairwise
// non-disjoint members unless some (capacity+1)-sized subset is entirely
// pairwise-overlapping (a consequence of the Helly property for intervals on
// a line - if every pair in a subset overlaps, the whole subset shares a
// common point). So it suffices to require, for every (capacity+1)-sized
// subset, that at least one pair within it is disjoint.
func enforceMaxOverlap(model *mk.Model, pairs []dwellPair, capacity int) error {
	n := len(pairs)
	if n <= capacity {
		return nil
	}

	// Reified "pair i and pair j are disjoint" booleans, built once and
	// reused across every subset that needs them.
	boolDom := mk.NewBitSetDomain(2) // {1=false, 2=true}
	disjoint := make(map[[2]int]*mk.FDVariable)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			b, err := postPairDisjoint(model, pairs[i], pairs[j], boolDom)
			if err != nil {
				return fmt.Errorf("dwell pair (%d,%d): %w", i, j, err)
			}
			disjoint[[2]int{i, j}] = b
		}
	}

	k := capacity + 1
	count := 0
	ok := combinations(n, k, func(subset []int) bool {
		if count >= maxOverlapCombinations {
			return false
		}
		count++
		var bools []*mk.FDVariable
		for a := 0; a < len(subset); a++ {
			for b := a + 1; b < len(subset); b++ {
				i, j := subset[a], subset[b]
				if i > j {
					i, j = j, i
				}
				bools = append(bools, disjoint[[2]int{i, j}])
			}
		}
		total := model.NewVariable(mk.NewBitSetDomain(len(bools) * 2))
		sum, err := mk.NewBoolSum(bools, total)
		if err != nil {
			return false
		}
		model.AddConstraint(sum)
		// total encodes count(true)+len(bools); "at least one true" means
		// total >= len(bools)+1.
		atLeastOne, err := mk.NewInequality(total, model.NewVariableWithName(singletonDomain(len(bools)+1), "atleastone"), mk.GreaterEqual)
		if err != nil {
			return false
		}
		model.AddConstraint(atLeastOne)
		return true
	})
	_ = ok
	return nil
}

// postPairDisjoint reifies "dwell interval a ends before b starts, or b ends
// before a starts" into a single boolean, mirroring diffn.go's per-axis
// disjunction helper.
func postPairDisjoint(model *mk.Model, a, b dwellPair, boolDom *mk.BitSetDomain) (*mk.FDVariable, error) {
	ineq1, err := mk.NewInequality(a.end, b.start, mk.LessEqual)
	if err != nil {
		return nil, err
	}
	b1 := model.NewVariable(boolDom)
	r1, err := mk.NewReifiedConstraint(ineq1, b1)
	if err != nil {
		return nil, err
	}
	model.AddConstraint(r1)

	ineq2, err := mk.NewInequality(b.end, a.start, mk.LessEqual)
	if err != nil {
		return nil, err
	}
	b2 := model.NewVariable(boolDom)
	r2, err := mk.NewReifiedConstraint(ineq2, b2)
	if err != nil {
		return nil, err
	}
	model.AddConstraint(r2)

	// total encodes count(true)+2 (BoolSum's {1,2} booleans): total>=3 means
	// at least one of b1,b2 is true, i.e. the intervals are disjoint.
	total := model.NewVariable(mk.NewBitSetDomain(4))
	sum, err := mk.NewBoolSum([]*mk.FDVariable{b1, b2}, total)
	if err != nil {
		return nil, err
	}
	model.AddConstraint(sum)

	threshold := model.NewVariableWithName(singletonDomain(3), "threshold")
	atLeastOne, err := mk.NewInequality(total, threshold, mk.GreaterEqual)
	if err != nil {
		return nil, err
	}
	disjoint := model.NewVariable(boolDom)
	reified, err := mk.NewReifiedConstraint(atLeastOne, disjoint)
	if err != nil {
		return nil, err
	}
	model.AddConstraint(reified)
	return disjoint, nil
}

// combinations calls fn with every k-sized subset (as ascending indices into
// [0,n)) of {0,...,n-1}, stopping early if fn returns false.
func combinations(n, k int, fn func(subset []int) bool) bool {
	if k <= 0 || k > n {
		return true
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		cur := make([]int, k)
		copy(cur, idx)
		if !fn(cur) {
			return false
		}
		i := k - 1
		for i >= 0 && idx[i] == i+n-k {
			i--
		}
		if i < 0 {
			return true
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
