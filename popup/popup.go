// Package popup turns a ranked completion list into display lines, column
// layout and highlight spans, and hands them to the screen in one transaction.
package popup

import (
	"strings"

	"suggestd/logger"
	"suggestd/types"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-runewidth"
)

// Highlight groups linked by the Lua side
const (
	GroupSearch     = "SuggestSearch"
	GroupDeprecated = "SuggestDeprecated"
	GroupKind       = "SuggestKind"
	GroupMenu       = "SuggestMenu"
	GroupShortcut   = "SuggestShortcut"
)

const ellipsis = "…"

// Style is passed through to the floating window
type Style struct {
	Border    bool   `msgpack:"border"`
	MaxHeight int    `msgpack:"max_height"`
	Winblend  int    `msgpack:"winblend"`
	Highlight string `msgpack:"highlight"`
}

// Config controls selection and layout
type Config struct {
	NoSelect        bool
	EnablePreselect bool
	Selection       types.Selection
	LabelMaxLength  int
	// AmbiguousIsWide treats East-Asian ambiguous runes as two cells
	AmbiguousIsWide bool
	Style           Style
}

// Highlight is one span on a popup line. Columns are byte offsets, End exclusive.
type Highlight struct {
	Group    string `msgpack:"hl_group"`
	Row      int    `msgpack:"row"`
	ColStart int    `msgpack:"col_start"`
	ColEnd   int    `msgpack:"col_end"`
}

// Popup is the complete render payload
type Popup struct {
	Lines      []string    `msgpack:"lines"`
	Highlights []Highlight `msgpack:"highlights"`
	// Index is the default selected row, -1 for none
	Index  int   `msgpack:"index"`
	Width  int   `msgpack:"width"`
	Linenr int   `msgpack:"linenr"`
	Col    int   `msgpack:"col"`
	Style  Style `msgpack:"style"`
}

// Screen opens render transactions
type Screen interface {
	Begin() Transaction
}

// Transaction batches render calls so the editor sees one update
type Transaction interface {
	ShowPopup(p *Popup)
	HidePopup()
	Redraw()
	Commit() error
}

// RecencyScorer scores items by acceptance history; mru.Model implements it
type RecencyScorer interface {
	Score(input string, item *types.CompleteItem, selection types.Selection) int
}

// Renderer builds popups. It never mutates the items it is given.
type Renderer struct {
	config Config
	screen Screen
	mru    RecencyScorer
	cond   *runewidth.Condition
}

func NewRenderer(config Config, screen Screen, mru RecencyScorer) *Renderer {
	cond := runewidth.NewCondition()
	cond.EastAsianWidth = config.AmbiguousIsWide
	if config.Selection == "" {
		config.Selection = types.SelectionFirst
	}
	return &Renderer{
		config: config,
		screen: screen,
		mru:    mru,
		cond:   cond,
	}
}

// Show renders items for the current search text in one transaction
func (r *Renderer) Show(items []*types.CompleteItem, search string, option types.CompleteOption) (*Popup, error) {
	defer logger.Trace("popup.Show")()

	p := r.Build(items, search, option)
	tx := r.screen.Begin()
	if len(p.Lines) == 0 {
		tx.HidePopup()
	} else {
		tx.ShowPopup(p)
	}
	tx.Redraw()
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "render popup")
	}
	return p, nil
}

// Hide closes the popup
func (r *Renderer) Hide() error {
	tx := r.screen.Begin()
	tx.HidePopup()
	tx.Redraw()
	return errors.Wrap(tx.Commit(), "hide popup")
}

type columns struct {
	label, kind, menu, shortcut int
}

// Build computes the popup payload without rendering it
func (r *Renderer) Build(items []*types.CompleteItem, search string, option types.CompleteOption) *Popup {
	p := &Popup{
		Index:  r.defaultIndex(items, search),
		Linenr: option.Linenr,
		Col:    option.Col,
		Style:  r.config.Style,
	}
	if len(items) == 0 {
		p.Index = -1
		return p
	}

	labels := make([]string, len(items))
	var w columns
	for i, item := range items {
		labels[i] = r.label(item)
		w.label = max(w.label, r.cond.StringWidth(labels[i]))
		w.kind = max(w.kind, r.cond.StringWidth(item.Kind))
		w.menu = max(w.menu, r.cond.StringWidth(item.Menu))
		w.shortcut = max(w.shortcut, r.cond.StringWidth(shortcut(item)))
	}

	for row, item := range items {
		line, hls := r.buildLine(row, labels[row], item, w)
		p.Lines = append(p.Lines, line)
		p.Highlights = append(p.Highlights, hls...)
		p.Width = max(p.Width, r.cond.StringWidth(line))
	}
	return p
}

func (r *Renderer) buildLine(row int, label string, item *types.CompleteItem, w columns) (string, []Highlight) {
	var b strings.Builder
	var hls []Highlight

	b.WriteString(r.cond.FillRight(label, w.label))
	hls = append(hls, positionHighlights(label, item.Positions, 0, row)...)
	if item.Deprecated {
		hls = append(hls, Highlight{Group: GroupDeprecated, Row: row, ColStart: 0, ColEnd: len(label)})
	}

	field := func(text string, width int, group string) {
		if width == 0 {
			return
		}
		b.WriteByte(' ')
		if text != "" {
			start := b.Len()
			hls = append(hls, Highlight{Group: group, Row: row, ColStart: start, ColEnd: start + len(text)})
		}
		b.WriteString(r.cond.FillRight(text, width))
	}
	field(item.Kind, w.kind, GroupKind)
	field(item.Menu, w.menu, GroupMenu)
	field(shortcut(item), w.shortcut, GroupShortcut)

	return b.String(), hls
}

func (r *Renderer) label(item *types.CompleteItem) string {
	label := item.Abbr
	if label == "" {
		label = item.Word
	}
	if limit := r.config.LabelMaxLength; limit > 0 && r.cond.StringWidth(label) > limit {
		label = r.cond.Truncate(label, limit, ellipsis)
	}
	return label
}

func shortcut(item *types.CompleteItem) string {
	if item.Shortcut == "" {
		return ""
	}
	return "[" + item.Shortcut + "]"
}

// defaultIndex picks the initially selected row
func (r *Renderer) defaultIndex(items []*types.CompleteItem, search string) int {
	if r.config.NoSelect || len(items) == 0 {
		return -1
	}
	if r.config.EnablePreselect {
		for i, item := range items {
			if !item.Preselect {
				continue
			}
			if strings.HasPrefix(item.Word, search) {
				return i
			}
			break
		}
	}
	if r.config.Selection != types.SelectionFirst && r.mru != nil {
		best, idx := -1, 0
		for i, item := range items {
			if score := r.mru.Score(search, item, r.config.Selection); score > best {
				best, idx = score, i
			}
		}
		return idx
	}
	return 0
}

// positionHighlights collapses sorted rune positions of label into one span
// per contiguous run. offset is the byte column where label starts.
func positionHighlights(label string, positions []int, offset, row int) []Highlight {
	if len(positions) == 0 {
		return nil
	}
	runes := []rune(label)
	byteAt := make([]int, len(runes)+1)
	for i, r := range runes {
		byteAt[i+1] = byteAt[i] + len(string(r))
	}

	var hls []Highlight
	start, prev := -1, -1
	flush := func() {
		if start >= 0 {
			hls = append(hls, Highlight{
				Group:    GroupSearch,
				Row:      row,
				ColStart: offset + byteAt[start],
				ColEnd:   offset + byteAt[prev+1],
			})
		}
	}
	for _, pos := range positions {
		if pos < 0 || pos >= len(runes) {
			continue
		}
		if start >= 0 && pos == prev+1 {
			prev = pos
			continue
		}
		flush()
		start, prev = pos, pos
	}
	flush()
	return hls
}
