package utils

// AvgCharsPerToken is a conservative estimate for source code
const AvgCharsPerToken = 2

// EstimateCharsFromTokens estimates the number of characters for a given token count
func EstimateCharsFromTokens(tokens int) int {
	return tokens * AvgCharsPerToken
}

// Window is a slice of a buffer around the cursor. Row is relative to Lines;
// Offset is the buffer row (0-indexed) of Lines[0].
type Window struct {
	Lines   []string
	Row     int
	Offset  int
	Trimmed bool
}

// Before returns the window text preceding the cursor at byte col
func (w Window) Before(col int) string {
	if len(w.Lines) == 0 {
		return ""
	}
	out := make([]byte, 0, 256)
	for _, l := range w.Lines[:w.Row] {
		out = append(out, l...)
		out = append(out, '\n')
	}
	line := w.Lines[w.Row]
	return string(append(out, line[:min(max(col, 0), len(line))]...))
}

// After returns the window text following the cursor at byte col
func (w Window) After(col int) string {
	if len(w.Lines) == 0 {
		return ""
	}
	line := w.Lines[w.Row]
	out := []byte(line[min(max(col, 0), len(line)):])
	for _, l := range w.Lines[w.Row+1:] {
		out = append(out, '\n')
		out = append(out, l...)
	}
	return string(out)
}

// TrimAroundCursor keeps as many lines around row (0-indexed) as fit in
// maxTokens. The budget left after the cursor line is split evenly above and
// below; whatever one side does not use goes to the other.
func TrimAroundCursor(lines []string, row, maxTokens int) Window {
	if len(lines) == 0 {
		return Window{Lines: lines}
	}
	row = min(max(row, 0), len(lines)-1)
	whole := Window{Lines: lines, Row: row}
	if maxTokens <= 0 {
		return whole
	}

	budget := EstimateCharsFromTokens(maxTokens)
	total := 0
	for _, l := range lines {
		total += len(l) + 1
	}
	if total <= budget {
		return whole
	}

	half := (budget - len(lines[row]) - 1) / 2

	start, above := row, 0
	for start > 0 {
		n := len(lines[start-1]) + 1
		if above+n > half {
			break
		}
		start--
		above += n
	}

	end, below := row, 0
	belowBudget := 2*half - above
	for end < len(lines)-1 {
		n := len(lines[end+1]) + 1
		if below+n > belowBudget {
			break
		}
		end++
		below += n
	}

	aboveBudget := 2*half - below
	for start > 0 {
		n := len(lines[start-1]) + 1
		if above+n > aboveBudget {
			break
		}
		start--
		above += n
	}

	return Window{
		Lines:   lines[start : end+1],
		Row:     row - start,
		Offset:  start,
		Trimmed: true,
	}
}
