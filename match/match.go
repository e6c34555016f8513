// Package match scores completion candidates against the typed input.
//
// Matching is smart-case subsequence matching: a lowercase query rune matches
// either case, an uppercase query rune only matches itself. All alignments are
// considered and the best scoring one wins, so "fb" against "fabric_bar"
// prefers the word-start "b" over the earlier interior one.
package match

import (
	"math"
	"unicode"
)

// Weights configures the scoring formula.
type Weights struct {
	Base         int // starting score for any match
	Consecutive  int // per matched rune directly following the previous one
	WordBoundary int // per matched rune at a word start or camelCase hump
	Prefix       int // first matched rune is the first rune of the text
	ExactCase    int // per matched rune with identical case
	Gap          int // per unmatched rune between first and last match
	Leading      int // per rune before the first match
}

// DefaultWeights returns the weights used by New.
func DefaultWeights() Weights {
	return Weights{
		Base:         100,
		Consecutive:  20,
		WordBoundary: 15,
		Prefix:       25,
		ExactCase:    5,
		Gap:          2,
		Leading:      1,
	}
}

// Matcher is a pure scorer; it holds no mutable state and is safe for concurrent use.
type Matcher struct {
	weights Weights
}

// New creates a Matcher with the default weights.
func New() *Matcher {
	return &Matcher{weights: DefaultWeights()}
}

// Match returns the score of query against text and the rune indices of text
// that were matched. A zero score means no match.
func (m *Matcher) Match(text string, query []rune) (float64, []int) {
	if len(query) == 0 || text == "" {
		return 0, nil
	}
	runes := []rune(text)
	if len(query) > len(runes) {
		return 0, nil
	}
	score, positions := m.align(runes, query)
	if positions == nil {
		return 0, nil
	}
	return float64(max(score, 1)), positions
}

const unreachable = math.MinInt / 2

// align finds the highest scoring placement of query in runes. The gap
// penalty is the sum of the gaps between consecutive matches, so each
// transition can be scored on its own and a running maximum keeps it linear
// per query rune.
func (m *Matcher) align(runes, query []rune) (int, []int) {
	w := m.weights
	n := len(runes)
	prev := make([]int, n)
	cur := make([]int, n)
	from := make([][]int, len(query))

	for j := range runes {
		prev[j] = unreachable
		if !runeMatches(query[0], runes[j]) {
			continue
		}
		prev[j] = w.Base + m.pointScore(runes, query, j, 0)
		if j == 0 {
			prev[j] += w.Prefix
		} else {
			prev[j] -= j * w.Leading
		}
	}

	for i := 1; i < len(query); i++ {
		from[i] = make([]int, n)
		runMax, runArg := unreachable, -1
		for j := range runes {
			if k := j - 2; k >= 0 && prev[k] > unreachable {
				if v := prev[k] + k*w.Gap; v > runMax {
					runMax, runArg = v, k
				}
			}
			cur[j] = unreachable
			from[i][j] = -1
			if !runeMatches(query[i], runes[j]) {
				continue
			}
			best, arg := unreachable, -1
			if j > 0 && prev[j-1] > unreachable {
				best, arg = prev[j-1]+w.Consecutive, j-1
			}
			if runArg >= 0 {
				if v := runMax - (j-1)*w.Gap; v > best {
					best, arg = v, runArg
				}
			}
			if arg < 0 {
				continue
			}
			cur[j] = best + m.pointScore(runes, query, j, i)
			from[i][j] = arg
		}
		prev, cur = cur, prev
	}

	end, best := -1, unreachable
	for j, v := range prev {
		if v > best {
			end, best = j, v
		}
	}
	if end < 0 {
		return 0, nil
	}

	positions := make([]int, len(query))
	for i := len(query) - 1; i >= 0; i-- {
		positions[i] = end
		if i > 0 {
			end = from[i][end]
		}
	}
	return best, positions
}

// pointScore is the part of the score contributed by matching query[qi] at text index j.
func (m *Matcher) pointScore(runes, query []rune, j, qi int) int {
	score := 0
	if isWordBoundary(runes, j) {
		score += m.weights.WordBoundary
	}
	if runes[j] == query[qi] {
		score += m.weights.ExactCase
	}
	return score
}

func runeMatches(q, t rune) bool {
	if q == t {
		return true
	}
	if unicode.IsUpper(q) {
		return false
	}
	return q == unicode.ToLower(t)
}

// isWordBoundary reports whether the rune at idx starts a word.
func isWordBoundary(runes []rune, idx int) bool {
	if idx == 0 {
		return true
	}
	prev, curr := runes[idx-1], runes[idx]
	if unicode.IsSpace(prev) || unicode.IsPunct(prev) || unicode.IsSymbol(prev) {
		return true
	}
	return unicode.IsLower(prev) && unicode.IsUpper(curr)
}
