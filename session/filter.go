package session

import (
	"sort"
	"strings"
	"unicode/utf8"

	"suggestd/logger"
	"suggestd/types"
)

// SnippetExactScore is forced on a snippet whose word equals the input
const SnippetExactScore = 1 << 30

// FilterItems ranks the current results against input without re-querying
// sources. Returned items are copies; the results table is not modified.
func (s *Session) FilterItems(input string) []*types.CompleteItem {
	defer logger.Trace("session.FilterItems")()

	s.mu.Lock()
	defer s.mu.Unlock()

	query := []rune(input)
	seen := make(map[string]string)
	var items []*types.CompleteItem

	for _, name := range s.rankedSourcesLocked() {
		for _, item := range s.results[name].Items {
			if s.config.RemoveDuplicateItems && !item.Dup {
				if from, ok := seen[item.Word]; ok && from != name {
					continue
				}
			}
			if utf8.RuneCountInString(item.FilterText) < len(query) {
				continue
			}

			c := *item
			if len(query) == 0 {
				markSeen(seen, c.Word, name)
				items = append(items, &c)
				continue
			}

			score, positions := s.matcher.Match(c.FilterText, query)
			if score == 0 {
				continue
			}
			c.Positions = projectPositions(c.Abbr, c.FilterText, positions)
			if name == types.SnippetSourceName && c.Word == input {
				score = SnippetExactScore
			} else if c.SourceScore > 0 {
				score *= c.SourceScore
			}
			c.Score, c.Scored = score, true
			markSeen(seen, c.Word, name)
			items = append(items, &c)
		}
	}

	sortItems(items, len(query) > 0, s.config.DefaultSortMethod)
	if s.config.MaxItemCount > 0 && len(items) > s.config.MaxItemCount {
		items = items[:s.config.MaxItemCount]
	}
	return s.limitCompleteItems(items)
}

// markSeen records the first source that contributed a word to the list
func markSeen(seen map[string]string, word, name string) {
	if _, ok := seen[word]; !ok {
		seen[word] = name
	}
}

// rankedSourcesLocked orders the sources with results by result priority,
// falling back to the session source order for ties.
func (s *Session) rankedSourcesLocked() []string {
	names := make([]string, 0, len(s.results))
	order := make(map[string]int, len(s.sources))
	for i, src := range s.sources {
		order[src.Name()] = i
	}
	for name := range s.results {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := s.results[names[i]].Priority, s.results[names[j]].Priority
		if pi != pj {
			return pi > pj
		}
		oi, iok := order[names[i]]
		oj, jok := order[names[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})
	return names
}

func sortItems(items []*types.CompleteItem, hasQuery bool, method types.SortMethod) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.LocalBonus != b.LocalBonus {
			return a.LocalBonus > b.LocalBonus
		}
		if a.Source == b.Source && a.SortText != "" && b.SortText != "" && a.SortText != b.SortText {
			return a.SortText < b.SortText
		}
		if hasQuery {
			return false
		}
		switch method {
		case types.SortAlphabetical:
			return a.FilterText < b.FilterText
		case types.SortLength:
			return utf8.RuneCountInString(a.FilterText) < utf8.RuneCountInString(b.FilterText)
		default:
			return false
		}
	})
}

// limitCompleteItems drops items once their source reaches the cap of its
// priority tier. Rank order of the survivors is kept.
func (s *Session) limitCompleteItems(items []*types.CompleteItem) []*types.CompleteItem {
	high, low := s.config.HighPrioritySourceLimit, s.config.LowPrioritySourceLimit
	if high == 0 && low == 0 {
		return items
	}
	counts := make(map[string]int)
	out := make([]*types.CompleteItem, 0, len(items))
	for _, item := range items {
		limit := low
		if item.Priority >= HighPriority {
			limit = high
		}
		if limit > 0 && counts[item.Source] >= limit {
			continue
		}
		counts[item.Source]++
		out = append(out, item)
	}
	return out
}

// projectPositions maps rune positions in filterText onto abbr by locating
// the longest matched prefix of filterText inside abbr.
func projectPositions(abbr, filterText string, positions []int) []int {
	if abbr == filterText || len(positions) == 0 {
		return positions
	}
	ft := []rune(filterText)
	for end := positions[len(positions)-1] + 1; end > 0; end-- {
		idx := strings.Index(abbr, string(ft[:end]))
		if idx < 0 {
			continue
		}
		shift := utf8.RuneCountInString(abbr[:idx])
		projected := make([]int, 0, len(positions))
		for _, p := range positions {
			if p < end {
				projected = append(projected, p+shift)
			}
		}
		return projected
	}
	return nil
}
