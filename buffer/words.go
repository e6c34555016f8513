package buffer

import (
	"unicode"
	"unicode/utf8"

	"suggestd/types"
)

// LocalityRadius is how many lines around the cursor earn a locality bonus
const LocalityRadius = 100

// MinWordLength is the shortest word indexed or boosted
const MinWordLength = 2

// IsWordRune reports whether r belongs to a keyword
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Word is a keyword and its byte span in a line
type Word struct {
	Text  string
	Start int
	End   int
}

// Words splits line into keywords of at least minLen runes
func Words(line string, minLen int) []Word {
	var words []Word
	start := -1
	for i, r := range line {
		if IsWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			words = appendWord(words, line, start, i, minLen)
			start = -1
		}
	}
	if start >= 0 {
		words = appendWord(words, line, start, len(line), minLen)
	}
	return words
}

func appendWord(words []Word, line string, start, end, minLen int) []Word {
	if utf8.RuneCountInString(line[start:end]) < minLen {
		return words
	}
	return append(words, Word{Text: line[start:end], Start: start, End: end})
}

// wordStart returns the byte offset where the keyword ending at cursor begins
func wordStart(line string, cursor int) int {
	cursor = min(max(cursor, 0), len(line))
	start := cursor
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:start])
		if !IsWordRune(r) {
			break
		}
		start -= size
	}
	return start
}

// wordAfter returns the keyword characters right of cursor
func wordAfter(line string, cursor int) string {
	cursor = min(max(cursor, 0), len(line))
	end := cursor
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		if !IsWordRune(r) {
			break
		}
		end += size
	}
	return line[cursor:end]
}

// NewOption derives the trigger context for a cursor at byte offset cursor on
// line linenr (1-based).
func NewOption(bufnr, linenr int, line string, cursor int, filetype string) types.CompleteOption {
	cursor = min(max(cursor, 0), len(line))
	start := wordStart(line, cursor)
	opt := types.CompleteOption{
		Bufnr:      bufnr,
		Linenr:     linenr,
		Line:       line,
		Col:        start,
		Colnr:      cursor + 1,
		Input:      line[start:cursor],
		Filetype:   filetype,
		FollowWord: wordAfter(line, cursor),
	}
	if r, size := utf8.DecodeLastRuneInString(line[:cursor]); size > 0 {
		opt.TriggerCharacter = string(r)
	}
	return opt
}

// LocalityBonus scores the words within radius lines of linenr. Closer
// occurrences score higher; the word under the cursor is skipped.
func LocalityBonus(lines []string, linenr, col, radius int) map[string]int {
	bonus := make(map[string]int)
	if radius <= 0 || linenr < 1 {
		return bonus
	}
	first := max(1, linenr-radius)
	last := min(len(lines), linenr+radius)
	for n := first; n <= last; n++ {
		distance := n - linenr
		if distance < 0 {
			distance = -distance
		}
		score := radius - distance
		for _, w := range Words(lines[n-1], MinWordLength) {
			if n == linenr && w.Start <= col && col <= w.End {
				continue
			}
			if score > bonus[w.Text] {
				bonus[w.Text] = score
			}
		}
	}
	return bonus
}
