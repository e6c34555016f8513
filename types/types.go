package types

import "context"

// CompleteOption is the trigger context of one completion session
type CompleteOption struct {
	Bufnr  int
	Linenr int    // 1-indexed
	Line   string // current line text
	Col    int    // 0-indexed byte offset where Input starts
	Colnr  int    // 1-indexed byte column of the cursor
	Input  string
	// TriggerCharacter is the character that started the session ("" for word input)
	TriggerCharacter string
	Filetype         string
	Synname          string
	// FollowWord is the run of word characters right of the cursor
	FollowWord string
}

// Cursor returns the 0-indexed byte offset of the cursor in Line
func (o *CompleteOption) Cursor() int {
	return o.Col + len(o.Input)
}

// CompleteResult is one source's answer
type CompleteResult struct {
	Items []*CompleteItem
	// Incomplete signals that the source can refine on a narrower input
	Incomplete bool
	// StartCol overrides the session's input start (byte offset) when set
	StartCol *int
	// Priority overrides the source priority when non-zero
	Priority int
}

// CompleteItem is a single completion candidate
type CompleteItem struct {
	Word       string
	Abbr       string
	FilterText string
	SortText   string
	Menu       string
	Kind       string
	Info       string
	IsSnippet  bool
	Dup        bool
	Preselect  bool
	Deprecated bool
	// SourceScore weights the fuzzy score; 0 means no weighting
	SourceScore float64

	// Ranking state, filled in by the session
	Source     string
	Shortcut   string
	Priority   int
	LocalBonus int
	Score      float64
	Scored     bool
	Positions  []int // rune indices into Abbr
}

// Source provides completion candidates
type Source interface {
	Name() string
	Priority() int
	DoComplete(ctx context.Context, opt CompleteOption) (*CompleteResult, error)
}

// Readiness is implemented by sources that may decline a request
type Readiness interface {
	ShouldComplete(ctx context.Context, opt CompleteOption) (bool, error)
}

// Shortcutter is implemented by sources that annotate their popup rows
type Shortcutter interface {
	Shortcut() string
}

// Disposer is implemented by sources holding resources
type Disposer interface {
	Dispose()
}

// SortMethod is the tiebreak used when the input is empty
type SortMethod string

const (
	SortNone         SortMethod = "none"
	SortAlphabetical SortMethod = "alphabetical"
	SortLength       SortMethod = "length"
)

// Selection controls how the popup picks its default row
type Selection string

const (
	SelectionFirst                Selection = "first"
	SelectionRecentlyUsed         Selection = "recentlyUsed"
	SelectionRecentlyUsedByPrefix Selection = "recentlyUsedByPrefix"
)

// SnippetSourceName is the name of the dedicated snippet source
const SnippetSourceName = "snippets"
