// Package similarity provides normalized text similarity scoring in
// the range [0, 1]. Scorers are pluggable so tests and callers can
// substitute their own.
package similarity

import "strings"

// Scorer computes a normalized similarity between two strings.
// 0 means entirely different, 1 means equivalent.
type Scorer interface {
	Score(a, b string) float64
}

// Func adapts a plain function to a Scorer.
type Func func(a, b string) float64

func (f Func) Score(a, b string) float64 { return f(a, b) }

// LineRatio scores two texts by their line sequences:
// 2 * matched / (lines(a) + lines(b)), where matched is the length of
// the longest common subsequence of lines. This is the page-text
// scorer used by the matching passes.
type LineRatio struct{}

func (LineRatio) Score(a, b string) float64 {
	if a == b {
		return 1
	}
	la := splitLines(a)
	lb := splitLines(b)
	if len(la) == 0 && len(lb) == 0 {
		return 1
	}
	if len(la) == 0 || len(lb) == 0 {
		return 0
	}
	m := lcsLen(la, lb)
	return 2 * float64(m) / float64(len(la)+len(lb))
}

// TokenRatio scores two strings by their whitespace-separated token
// sequences: 2 * matched / (tokens(a) + tokens(b)). Appending or
// dropping a word moves the score less than per-rune edit distance
// does, which suits section-name matching ("Urine Test" vs
// "Urine Test Hidden" scores 0.8).
type TokenRatio struct{}

func (TokenRatio) Score(a, b string) float64 {
	if a == b {
		return 1
	}
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	m := lcsLen(ta, tb)
	return 2 * float64(m) / float64(len(ta)+len(tb))
}

// EditRatio scores two strings by normalized edit distance over
// runes: 1 - dist/maxLen. This is the name scorer used by the
// tracker registry and the heuristic pass.
type EditRatio struct{}

func (EditRatio) Score(a, b string) float64 {
	if a == b {
		return 1
	}
	ra := []rune(a)
	rb := []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(editDistance(ra, rb))/float64(longest)
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// lcsLen computes longest-common-subsequence length with a rolling
// two-row table.
func lcsLen(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// editDistance is the classic Levenshtein distance with a rolling row.
func editDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(a); i++ {
		prevDiag := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			ins := row[j-1] + 1
			del := row[j] + 1
			sub := prevDiag + cost
			prevDiag = row[j]
			best := sub
			if ins < best {
				best = ins
			}
			if del < best {
				best = del
			}
			row[j] = best
		}
	}
	return row[len(b)]
}
