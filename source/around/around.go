// Package around completes words found in the current buffer.
package around

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"suggestd/buffer"
	"suggestd/logger"
	"suggestd/types"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const Name = "around"

type Config struct {
	Priority int
	Shortcut string
	MaxItems int
}

func DefaultConfig() Config {
	return Config{Priority: 1, Shortcut: "A", MaxItems: 1000}
}

// LineReader exposes the lines of the buffer as of the last sync
type LineReader interface {
	Lines() []string
}

// Source keeps a per-line word index of the buffer. Each completion diffs the
// buffer against the indexed snapshot and only re-tokenizes changed lines.
type Source struct {
	doc    LineReader
	config Config
	dmp    *diffmatchpatch.DiffMatchPatch

	mu        sync.Mutex
	snapshot  []string
	lineWords [][]string
	counts    map[string]int
}

func New(doc LineReader, config Config) *Source {
	def := DefaultConfig()
	if config.Shortcut == "" {
		config.Shortcut = def.Shortcut
	}
	if config.MaxItems <= 0 {
		config.MaxItems = def.MaxItems
	}
	return &Source{
		doc:    doc,
		config: config,
		dmp:    diffmatchpatch.New(),
		counts: make(map[string]int),
	}
}

func (s *Source) Name() string     { return Name }
func (s *Source) Priority() int    { return s.config.Priority }
func (s *Source) Shortcut() string { return s.config.Shortcut }

func (s *Source) DoComplete(ctx context.Context, opt types.CompleteOption) (*types.CompleteResult, error) {
	defer logger.Trace("around.DoComplete")()

	s.mu.Lock()
	s.update(s.doc.Lines())
	words := s.candidates(opt.Input)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, nil
	}

	items := make([]*types.CompleteItem, len(words))
	for i, w := range words {
		items[i] = &types.CompleteItem{Word: w}
	}
	return &types.CompleteResult{Items: items}, nil
}

// candidates returns indexed words sharing the first letter of input, case
// insensitively. The word being typed is left out unless it occurs elsewhere.
func (s *Source) candidates(input string) []string {
	first, _ := utf8.DecodeRuneInString(input)
	var out []string
	for w, n := range s.counts {
		if w == input && n <= 1 {
			continue
		}
		if input != "" {
			r, _ := utf8.DecodeRuneInString(w)
			if unicode.ToLower(r) != unicode.ToLower(first) {
				continue
			}
		}
		out = append(out, w)
	}
	sort.Strings(out)
	if len(out) > s.config.MaxItems {
		out = out[:s.config.MaxItems]
	}
	return out
}

// update brings the index in line with lines. Caller holds mu.
func (s *Source) update(lines []string) {
	if s.snapshot == nil {
		s.lineWords = make([][]string, 0, len(lines))
		for _, l := range lines {
			s.lineWords = append(s.lineWords, s.add(l))
		}
		s.snapshot = append([]string(nil), lines...)
		return
	}

	oldText, newText := joinLines(s.snapshot), joinLines(lines)
	if oldText == newText {
		return
	}

	chars1, chars2, lineArray := s.dmp.DiffLinesToChars(oldText, newText)
	diffs := s.dmp.DiffCharsToLines(s.dmp.DiffMain(chars1, chars2, false), lineArray)

	next := make([][]string, 0, len(lines))
	oldRow, newRow := 0, 0
	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			next = append(next, s.lineWords[oldRow:oldRow+n]...)
			oldRow += n
			newRow += n
		case diffmatchpatch.DiffDelete:
			for _, words := range s.lineWords[oldRow : oldRow+n] {
				s.remove(words)
			}
			oldRow += n
		case diffmatchpatch.DiffInsert:
			for _, l := range lines[newRow : newRow+n] {
				next = append(next, s.add(l))
			}
			newRow += n
		}
	}

	logger.Debug("around: reindexed %d -> %d lines", len(s.snapshot), len(lines))
	s.lineWords = next
	s.snapshot = append(s.snapshot[:0], lines...)
}

func (s *Source) add(line string) []string {
	ws := buffer.Words(line, buffer.MinWordLength)
	texts := make([]string, len(ws))
	for i, w := range ws {
		texts[i] = w.Text
		s.counts[w.Text]++
	}
	return texts
}

func (s *Source) remove(words []string) {
	for _, w := range words {
		if s.counts[w] <= 1 {
			delete(s.counts, w)
			continue
		}
		s.counts[w]--
	}
}

// joinLines terminates every line so each diff chunk counts whole lines
func joinLines(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}
