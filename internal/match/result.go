package match

import (
	"fmt"
	"sort"
)

// Pass identifies which strategy accepted a pair.
type Pass int

const (
	PassIdentical Pass = 1 // equal content hash
	PassHeuristic Pass = 2 // section/form/proximity weighted score
	PassGlobal    Pass = 3 // global optimal text alignment
)

// Pair is one accepted page correspondence between the older and
// newer revision (0-based indices).
type Pair struct {
	Old   int
	New   int
	Pass  Pass
	Score float64
}

// Result is the outcome of one matching run. Pairs are ordered by
// old index and are crossing-free; Added holds newer-only page
// indices, Removed holds older-only page indices, both ascending.
type Result struct {
	Pairs   []Pair
	Added   []int
	Removed []int
}

// StructuralError reports a crossing pair of accepted matches. It is
// an internal invariant violation and always fatal to the run.
type StructuralError struct {
	A, B Pair
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("match: crossing pairs (%d,%d) and (%d,%d)", e.A.Old, e.A.New, e.B.Old, e.B.New)
}

// Validate checks that accepted pairs are strictly monotonic in both
// indices. A violation means the engine itself is broken; callers
// must abort rather than consolidate on top of it.
func (r *Result) Validate() error {
	pairs := make([]Pair, len(r.Pairs))
	copy(pairs, r.Pairs)
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Old != pairs[j].Old {
			return pairs[i].Old < pairs[j].Old
		}
		return pairs[i].New < pairs[j].New
	})
	for i := 1; i < len(pairs); i++ {
		prev, cur := pairs[i-1], pairs[i]
		if cur.Old == prev.Old || cur.New <= prev.New {
			return &StructuralError{A: prev, B: cur}
		}
	}
	return nil
}

// PairForNew returns the accepted pair whose new index is j, if any.
func (r *Result) PairForNew(j int) (Pair, bool) {
	for _, p := range r.Pairs {
		if p.New == j {
			return p, true
		}
	}
	return Pair{}, false
}

func (r *Result) sortOutputs() {
	sort.Slice(r.Pairs, func(i, j int) bool { return r.Pairs[i].Old < r.Pairs[j].Old })
	sort.Ints(r.Added)
	sort.Ints(r.Removed)
}
