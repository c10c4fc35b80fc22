package match

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/dgallion1/docverge/internal/document"
	"github.com/dgallion1/docverge/internal/similarity"
)

// Weights controls the Pass 2 heuristic blend. The three components
// must sum to 1.
type Weights struct {
	Name      float64 // enclosing-section name similarity
	Form      float64 // form/label name similarity
	Proximity float64 // positional proximity
}

// DefaultWeights returns the equal-thirds blend.
func DefaultWeights() Weights {
	return Weights{Name: 1.0 / 3, Form: 1.0 / 3, Proximity: 1.0 / 3}
}

// Valid reports whether the weights are non-negative and sum to 1.
func (w Weights) Valid() bool {
	if w.Name < 0 || w.Form < 0 || w.Proximity < 0 {
		return false
	}
	return math.Abs(w.Name+w.Form+w.Proximity-1) < 1e-9
}

// Config holds matching thresholds and scoring parallelism.
type Config struct {
	HeuristicThreshold float64 // Pass 2 acceptance threshold
	GlobalThreshold    float64 // Pass 3 acceptance threshold
	Weights            Weights
	ScoreWorkers       int // bounded parallelism for pairwise scoring
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		HeuristicThreshold: 0.5,
		GlobalThreshold:    0.6,
		Weights:            DefaultWeights(),
		ScoreWorkers:       4,
	}
}

// Engine aligns the pages of two revisions with a three-pass
// strategy: exact content hashes, a weighted section/form/proximity
// heuristic, then a global optimal text alignment over the leftovers.
type Engine struct {
	text similarity.Scorer
	name similarity.Scorer
	cfg  Config
	log  *slog.Logger
}

// NewEngine builds an engine. text scores page bodies, name scores
// section and form names.
func NewEngine(text, name similarity.Scorer, cfg Config, log *slog.Logger) (*Engine, error) {
	if !cfg.Weights.Valid() {
		return nil, fmt.Errorf("match: pass-2 weights must be non-negative and sum to 1")
	}
	if cfg.ScoreWorkers <= 0 {
		cfg.ScoreWorkers = 4
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{text: text, name: name, cfg: cfg, log: log}, nil
}

// Match aligns older against newer and returns the accepted pairs
// plus the added (newer-only) and removed (older-only) page indices.
func (e *Engine) Match(older, newer *document.Revision) (*Result, error) {
	oldLeft := make(map[int]bool, len(older.Pages))
	newLeft := make(map[int]bool, len(newer.Pages))
	for i := range older.Pages {
		oldLeft[i] = true
	}
	for j := range newer.Pages {
		newLeft[j] = true
	}

	res := &Result{}
	var acc []Pair // kept sorted by Old

	accept := func(p Pair) {
		pos := sort.Search(len(acc), func(k int) bool { return acc[k].Old > p.Old })
		acc = append(acc, Pair{})
		copy(acc[pos+1:], acc[pos:])
		acc[pos] = p
		delete(oldLeft, p.Old)
		delete(newLeft, p.New)
	}

	// Pass 1: identical content hashes, de-crossed.
	for _, p := range e.passIdentical(older, newer) {
		accept(p)
	}
	e.log.Debug("pass 1 complete", "identical", len(acc))

	// Pass 2: heuristic blend of section name, form name, proximity.
	before := len(acc)
	e.passHeuristic(older, newer, oldLeft, newLeft, &acc, accept)
	e.log.Debug("pass 2 complete", "heuristic", len(acc)-before)

	// Pass 3: global optimal alignment on the remainder.
	before = len(acc)
	for _, p := range e.passGlobal(older, newer, oldLeft, newLeft, acc) {
		accept(p)
	}
	e.log.Debug("pass 3 complete", "global", len(acc)-before)

	res.Pairs = acc
	for i := range older.Pages {
		if oldLeft[i] {
			res.Removed = append(res.Removed, i)
		}
	}
	for j := range newer.Pages {
		if newLeft[j] {
			res.Added = append(res.Added, j)
		}
	}
	res.sortOutputs()

	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// passIdentical pairs pages with equal content hashes, then keeps the
// maximum-cardinality crossing-free subset.
func (e *Engine) passIdentical(older, newer *document.Revision) []Pair {
	byHash := make(map[string][]int)
	for j := range newer.Pages {
		h := newer.Pages[j].Hash
		byHash[h] = append(byHash[h], j)
	}

	var raw []Pair
	for i := range older.Pages {
		list := byHash[older.Pages[i].Hash]
		if len(list) == 0 {
			continue
		}
		j := list[0]
		byHash[older.Pages[i].Hash] = list[1:]
		raw = append(raw, Pair{Old: i, New: j, Pass: PassIdentical, Score: 1.0})
	}
	return longestNonCrossing(raw)
}

// longestNonCrossing selects a maximum-cardinality subset of pairs
// with both indices strictly increasing (patience LIS on the new
// index; input is already sorted by old index, each index unique).
func longestNonCrossing(pairs []Pair) []Pair {
	if len(pairs) == 0 {
		return nil
	}
	tails := []int{}    // smallest terminal new-index per LIS length
	tailsIdx := []int{} // pair index holding each tail
	prev := make([]int, len(pairs))

	for i, p := range pairs {
		pos := sort.SearchInts(tails, p.New)
		if pos == len(tails) {
			tails = append(tails, p.New)
			tailsIdx = append(tailsIdx, i)
		} else {
			tails[pos] = p.New
			tailsIdx[pos] = i
		}
		prev[i] = -1
		if pos > 0 {
			prev[i] = tailsIdx[pos-1]
		}
	}

	var keep []Pair
	for k := tailsIdx[len(tailsIdx)-1]; k != -1; k = prev[k] {
		keep = append(keep, pairs[k])
	}
	for l, r := 0, len(keep)-1; l < r; l, r = l+1, r-1 {
		keep[l], keep[r] = keep[r], keep[l]
	}
	return keep
}

// passHeuristic scores every remaining (old, new) pair with the
// weighted blend, then greedily accepts each old page's best
// candidate at or above the threshold, skipping candidates that
// would cross already-accepted matches.
func (e *Engine) passHeuristic(older, newer *document.Revision, oldLeft, newLeft map[int]bool, acc *[]Pair, accept func(Pair)) {
	oldIdx := sortedKeys(oldLeft)
	newIdx := sortedKeys(newLeft)
	if len(oldIdx) == 0 || len(newIdx) == 0 {
		return
	}

	w := e.cfg.Weights
	scores := e.scoreMatrix(len(oldIdx), len(newIdx), func(r, c int) float64 {
		op := older.Pages[oldIdx[r]]
		np := newer.Pages[newIdx[c]]
		prox := 1.0 / (1.0 + math.Abs(float64(oldIdx[r]-newIdx[c])))
		return w.Name*e.nameTerm(op.Section, np.Section) +
			w.Form*e.nameTerm(op.Form, np.Form) +
			w.Proximity*prox
	})

	for r, i := range oldIdx {
		// Candidates at or above the threshold, best score first,
		// lowest new index on ties.
		type cand struct {
			j     int
			score float64
		}
		var cands []cand
		for c, j := range newIdx {
			if !newLeft[j] {
				continue
			}
			if s := scores[r][c]; s >= e.cfg.HeuristicThreshold {
				cands = append(cands, cand{j: j, score: s})
			}
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].score != cands[b].score {
				return cands[a].score > cands[b].score
			}
			return cands[a].j < cands[b].j
		})
		for _, c := range cands {
			if !compatible(*acc, i, c.j) {
				continue
			}
			accept(Pair{Old: i, New: c.j, Pass: PassHeuristic, Score: c.score})
			break
		}
	}
}

// passGlobal runs the safety-net alignment: pure text similarity,
// candidates at or above the global threshold, maximum-total-score
// crossing-free chain selected with a Fenwick-indexed weighted LIS.
func (e *Engine) passGlobal(older, newer *document.Revision, oldLeft, newLeft map[int]bool, acc []Pair) []Pair {
	oldIdx := sortedKeys(oldLeft)
	newIdx := sortedKeys(newLeft)
	if len(oldIdx) == 0 || len(newIdx) == 0 {
		return nil
	}

	scores := e.scoreMatrix(len(oldIdx), len(newIdx), func(r, c int) float64 {
		return e.text.Score(older.Pages[oldIdx[r]].Text, newer.Pages[newIdx[c]].Text)
	})

	type cand struct {
		old, new int
		rank     int // rank of new index among newIdx
		score    float64
	}
	var cands []cand
	for r, i := range oldIdx {
		for c, j := range newIdx {
			if scores[r][c] < e.cfg.GlobalThreshold {
				continue
			}
			// Each candidate must already slot between the accepted
			// matches; mutual ordering is handled by the chain below.
			if !compatible(acc, i, j) {
				continue
			}
			cands = append(cands, cand{old: i, new: j, rank: c, score: scores[r][c]})
		}
	}
	if len(cands) == 0 {
		return nil
	}
	// Sorted by old asc, new asc by construction.

	bit := newMaxBIT(len(newIdx))
	total := make([]float64, len(cands))
	parent := make([]int, len(cands))

	best, bestAt := 0.0, -1
	k := 0
	for k < len(cands) {
		// Process one old-index group against the tree, then commit
		// the group, so two candidates for the same old page never
		// chain together.
		g := k
		for g < len(cands) && cands[g].old == cands[k].old {
			g++
		}
		for x := k; x < g; x++ {
			prevScore, prevAt := bit.query(cands[x].rank - 1)
			total[x] = prevScore + cands[x].score
			parent[x] = prevAt
			if total[x] > best {
				best, bestAt = total[x], x
			}
		}
		for x := k; x < g; x++ {
			bit.update(cands[x].rank, total[x], x)
		}
		k = g
	}

	var chain []Pair
	for at := bestAt; at != -1; at = parent[at] {
		chain = append(chain, Pair{Old: cands[at].old, New: cands[at].new, Pass: PassGlobal, Score: cands[at].score})
	}
	for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
		chain[l], chain[r] = chain[r], chain[l]
	}
	return chain
}

// compatible reports whether pair (i, j) preserves monotonic order
// against every already-accepted pair. acc must be sorted by Old.
func compatible(acc []Pair, i, j int) bool {
	pos := sort.Search(len(acc), func(k int) bool { return acc[k].Old >= i })
	if pos < len(acc) && acc[pos].Old == i {
		return false
	}
	if pos > 0 && acc[pos-1].New >= j {
		return false
	}
	if pos < len(acc) && acc[pos].New <= j {
		return false
	}
	return true
}

// scoreMatrix computes fn over a rows x cols grid with a bounded
// worker pool, one row per task. Results are fully joined before
// return; nothing downstream mutates until scoring is done.
func (e *Engine) scoreMatrix(rows, cols int, fn func(r, c int) float64) [][]float64 {
	out := make([][]float64, rows)
	sem := make(chan struct{}, e.cfg.ScoreWorkers)
	var wg sync.WaitGroup
	for r := range rows {
		wg.Add(1)
		sem <- struct{}{}
		go func(r int) {
			defer wg.Done()
			defer func() { <-sem }()
			row := make([]float64, cols)
			for c := range cols {
				row[c] = fn(r, c)
			}
			out[r] = row
		}(r)
	}
	wg.Wait()
	return out
}

// nameTerm scores a section or form name pair. A page missing the
// name cannot support a name-based match, so the term is 0 rather
// than "two empty strings are identical".
func (e *Engine) nameTerm(a, b string) float64 {
	a, b = foldName(a), foldName(b)
	if a == "" || b == "" {
		return 0
	}
	return e.name.Score(a, b)
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func foldName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// maxBIT is a Fenwick tree over new-index ranks holding the best
// chain score (and its candidate) for prefix queries.
type maxBIT struct {
	score []float64
	at    []int
}

func newMaxBIT(n int) *maxBIT {
	b := &maxBIT{score: make([]float64, n+1), at: make([]int, n+1)}
	for i := range b.at {
		b.at[i] = -1
	}
	return b
}

// update records a chain of the given score ending at rank (0-based).
// Ties keep the earlier candidate for determinism.
func (b *maxBIT) update(rank int, score float64, at int) {
	for i := rank + 1; i < len(b.score); i += i & (-i) {
		if score > b.score[i] {
			b.score[i] = score
			b.at[i] = at
		}
	}
}

// query returns the best chain score over ranks [0, rank] and the
// candidate holding it; (-1) when empty or rank < 0.
func (b *maxBIT) query(rank int) (float64, int) {
	bestScore, bestAt := 0.0, -1
	for i := rank + 1; i > 0; i -= i & (-i) {
		if b.score[i] > bestScore {
			bestScore = b.score[i]
			bestAt = b.at[i]
		}
	}
	return bestScore, bestAt
}
