package session

import (
	"testing"

	"suggestd/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterItems_HigherPriorityWinsTies(t *testing.T) {
	s := createTestSession(newMockDocument("foo"), newMockClock(), testConfig())
	store(s, "dict", 10, word("foob"))
	store(s, "lsp", 100, word("fooa"))

	items := s.FilterItems("foo")
	require.Len(t, items, 2)
	assert.Equal(t, items[0].Score, items[1].Score, "same match quality")
	assert.Equal(t, []string{"fooa", "foob"}, words(items))
}

func TestFilterItems_EmptyQueryPassesThroughUnscored(t *testing.T) {
	s := createTestSession(newMockDocument(""), newMockClock(), testConfig())
	store(s, "low", 50, word("cc"))
	store(s, "high", 100, word("bbb"), word("a"))

	items := s.FilterItems("")
	assert.Equal(t, []string{"bbb", "a", "cc"}, words(items))
	for _, it := range items {
		assert.False(t, it.Scored)
		assert.Zero(t, it.Score)
		assert.Empty(t, it.Positions)
	}
}

func TestFilterItems_EmptyQueryTiebreak(t *testing.T) {
	tests := []struct {
		name   string
		method types.SortMethod
		want   []string
	}{
		{"none keeps source order", types.SortNone, []string{"bbb", "ca", "a"}},
		{"alphabetical", types.SortAlphabetical, []string{"a", "bbb", "ca"}},
		{"length", types.SortLength, []string{"a", "ca", "bbb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.DefaultSortMethod = tt.method
			s := createTestSession(newMockDocument(""), newMockClock(), cfg)
			store(s, "around", 10, word("bbb"), word("ca"), word("a"))

			assert.Equal(t, tt.want, words(s.FilterItems("")))
		})
	}
}

func TestFilterItems_ShorterFilterTextExcluded(t *testing.T) {
	s := createTestSession(newMockDocument("foo"), newMockClock(), testConfig())
	store(s, "around", 10,
		word("fo"),
		word("foo"),
		&types.CompleteItem{Word: "foobar", FilterText: "fb"},
	)

	assert.Equal(t, []string{"foo"}, words(s.FilterItems("foo")))
}

func TestFilterItems_DropsNonMatching(t *testing.T) {
	s := createTestSession(newMockDocument("xyz"), newMockClock(), testConfig())
	store(s, "around", 10, word("abcdef"), word("xaybzc"))

	items := s.FilterItems("xyz")
	require.Len(t, items, 1)
	assert.Equal(t, "xaybzc", items[0].Word)
	assert.Equal(t, []int{0, 2, 4}, items[0].Positions)
}

func TestFilterItems_DuplicateRemoval(t *testing.T) {
	t.Run("higher priority source keeps the word", func(t *testing.T) {
		cfg := testConfig()
		cfg.RemoveDuplicateItems = true
		s := createTestSession(newMockDocument("fo"), newMockClock(), cfg)
		store(s, "dict", 10, word("foo"))
		store(s, "lsp", 100, word("foo"))

		items := s.FilterItems("fo")
		require.Len(t, items, 1)
		assert.Equal(t, "lsp", items[0].Source)
	})

	t.Run("dup flag allows the duplicate", func(t *testing.T) {
		cfg := testConfig()
		cfg.RemoveDuplicateItems = true
		s := createTestSession(newMockDocument("fo"), newMockClock(), cfg)
		store(s, "dict", 10, &types.CompleteItem{Word: "foo", Dup: true})
		store(s, "lsp", 100, word("foo"))

		assert.Len(t, s.FilterItems("fo"), 2)
	})

	t.Run("filtered out item does not hide the word", func(t *testing.T) {
		cfg := testConfig()
		cfg.RemoveDuplicateItems = true
		s := createTestSession(newMockDocument("fo"), newMockClock(), cfg)
		store(s, "dict", 10, word("foo"))
		store(s, "lsp", 100, &types.CompleteItem{Word: "foo", FilterText: "f"})

		items := s.FilterItems("fo")
		require.Len(t, items, 1)
		assert.Equal(t, "dict", items[0].Source)
	})

	t.Run("disabled keeps both", func(t *testing.T) {
		s := createTestSession(newMockDocument("fo"), newMockClock(), testConfig())
		store(s, "dict", 10, word("foo"))
		store(s, "lsp", 100, word("foo"))

		assert.Len(t, s.FilterItems("fo"), 2)
	})
}

func TestFilterItems_SnippetExactMatchRanksFirst(t *testing.T) {
	s := createTestSession(newMockDocument("for"), newMockClock(), testConfig())
	store(s, "lsp", 100, word("for"), word("format"))
	store(s, types.SnippetSourceName, 50, &types.CompleteItem{Word: "for", IsSnippet: true})

	items := s.FilterItems("for")
	require.Len(t, items, 3)
	assert.Equal(t, types.SnippetSourceName, items[0].Source)
	assert.Equal(t, float64(SnippetExactScore), items[0].Score)
	assert.Equal(t, "for~", items[0].Abbr)
	assert.Equal(t, []int{0, 1, 2}, items[0].Positions)
}

func TestFilterItems_SourceScoreWeightsScore(t *testing.T) {
	s := createTestSession(newMockDocument("foo"), newMockClock(), testConfig())
	store(s, "lsp", 100,
		&types.CompleteItem{Word: "foo1", SourceScore: 0.5},
		word("foo2"),
	)

	items := s.FilterItems("foo")
	require.Len(t, items, 2)
	assert.Equal(t, "foo2", items[0].Word)
	assert.InDelta(t, items[0].Score/2, items[1].Score, 0.0001)
}

func TestFilterItems_LocalBonusBreaksTies(t *testing.T) {
	s := createTestSession(newMockDocument("foo"), newMockClock(), testConfig())
	s.localBonus = map[string]int{"foob": 40}
	store(s, "around", 10, word("fooa"), word("foob"))

	assert.Equal(t, []string{"foob", "fooa"}, words(s.FilterItems("foo")))
}

func TestFilterItems_SortTextWithinSource(t *testing.T) {
	s := createTestSession(newMockDocument("foo"), newMockClock(), testConfig())
	store(s, "lsp", 100,
		&types.CompleteItem{Word: "fooa", SortText: "2"},
		&types.CompleteItem{Word: "foob", SortText: "1"},
	)

	assert.Equal(t, []string{"foob", "fooa"}, words(s.FilterItems("foo")))
}

func TestFilterItems_DoesNotMutateResults(t *testing.T) {
	s := createTestSession(newMockDocument("fo"), newMockClock(), testConfig())
	store(s, "around", 10, word("foo"))

	items := s.FilterItems("fo")
	require.Len(t, items, 1)
	assert.True(t, items[0].Scored)
	assert.False(t, s.results["around"].Items[0].Scored)
}

func TestFilterItems_MaxItemCount(t *testing.T) {
	cfg := testConfig()
	cfg.MaxItemCount = 3
	s := createTestSession(newMockDocument(""), newMockClock(), cfg)
	store(s, "around", 10, word("a1"), word("a2"), word("a3"), word("a4"), word("a5"))

	assert.Equal(t, []string{"a1", "a2", "a3"}, words(s.FilterItems("")))
}

func TestFilterItems_HighPrioritySourceLimit(t *testing.T) {
	cfg := testConfig()
	cfg.HighPrioritySourceLimit = 2
	s := createTestSession(newMockDocument("foo"), newMockClock(), cfg)
	store(s, "lsp", 100, word("foo1"), word("foo2"), word("foo3"))
	store(s, "dict", 10, word("foo4"))

	assert.Equal(t, []string{"foo1", "foo2", "foo4"}, words(s.FilterItems("foo")))
}

func TestLimitCompleteItems(t *testing.T) {
	ranked := []*types.CompleteItem{
		{Word: "a", Source: "lsp", Priority: 100},
		{Word: "b", Source: "dict", Priority: 10},
		{Word: "c", Source: "lsp", Priority: 100},
		{Word: "d", Source: "dict", Priority: 10},
		{Word: "e", Source: "lsp", Priority: 100},
	}

	t.Run("separate caps per tier", func(t *testing.T) {
		cfg := testConfig()
		cfg.HighPrioritySourceLimit = 2
		cfg.LowPrioritySourceLimit = 1
		s := createTestSession(newMockDocument(""), newMockClock(), cfg)

		assert.Equal(t, []string{"a", "b", "c"}, words(s.limitCompleteItems(ranked)))
	})

	t.Run("zero is unlimited", func(t *testing.T) {
		cfg := testConfig()
		cfg.LowPrioritySourceLimit = 1
		s := createTestSession(newMockDocument(""), newMockClock(), cfg)

		assert.Equal(t, []string{"a", "b", "c", "e"}, words(s.limitCompleteItems(ranked)))
	})
}

func TestProjectPositions(t *testing.T) {
	tests := []struct {
		name       string
		abbr       string
		filterText string
		positions  []int
		want       []int
	}{
		{"identical", "foo", "foo", []int{0, 2}, []int{0, 2}},
		{"abbr with prefix", "fmt.Println", "Println", []int{0, 1}, []int{4, 5}},
		{"abbr with suffix", "for~", "for", []int{0, 1, 2}, []int{0, 1, 2}},
		{"partial prefix only", "foo(x)", "foobar", []int{0, 1, 4}, []int{0, 1}},
		{"not found", "xyz", "abc", []int{0}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, projectPositions(tt.abbr, tt.filterText, tt.positions))
		})
	}
}
