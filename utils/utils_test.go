package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimAroundCursor_Empty(t *testing.T) {
	w := TrimAroundCursor(nil, 3, 100)
	assert.Empty(t, w.Lines)
	assert.Equal(t, 0, w.Row)
	assert.False(t, w.Trimmed)
	assert.Equal(t, "", w.Before(2))
	assert.Equal(t, "", w.After(2))
}

func TestTrimAroundCursor_FitsUntouched(t *testing.T) {
	lines := []string{"line 1", "line 2", "line 3"}
	w := TrimAroundCursor(lines, 1, 1000)
	assert.Equal(t, lines, w.Lines)
	assert.Equal(t, 1, w.Row)
	assert.Equal(t, 0, w.Offset)
	assert.False(t, w.Trimmed)

	assert.False(t, TrimAroundCursor(lines, 1, 0).Trimmed, "no budget means no trimming")
}

func TestTrimAroundCursor_ClampsRow(t *testing.T) {
	lines := []string{"a", "b", "c"}
	assert.Equal(t, 2, TrimAroundCursor(lines, 100, 1000).Row)
	assert.Equal(t, 0, TrimAroundCursor(lines, -5, 1000).Row)
}

func TestTrimAroundCursor_Balanced(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = "x"
	}

	// 11 tokens = 22 chars: the cursor line plus 5 lines on each side
	w := TrimAroundCursor(lines, 25, 11)
	require.True(t, w.Trimmed)
	assert.Len(t, w.Lines, 11)
	assert.Equal(t, 20, w.Offset)
	assert.Equal(t, 5, w.Row)
}

func TestTrimAroundCursor_UnusedBudgetMovesAcross(t *testing.T) {
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = "x"
	}

	atTop := TrimAroundCursor(lines, 1, 11)
	assert.Equal(t, 0, atTop.Offset)
	assert.Equal(t, 1, atTop.Row)
	assert.Len(t, atTop.Lines, 11)

	atBottom := TrimAroundCursor(lines, 29, 11)
	assert.Equal(t, 19, atBottom.Offset)
	assert.Equal(t, 10, atBottom.Row)
	assert.Len(t, atBottom.Lines, 11)
}

func TestWindow_BeforeAfter(t *testing.T) {
	w := Window{Lines: []string{"package main", "func f() {", "}"}, Row: 1}
	assert.Equal(t, "package main\nfunc f", w.Before(6))
	assert.Equal(t, "() {\n}", w.After(6))
	assert.Equal(t, "package main\nfunc f() {", w.Before(99))
	assert.True(t, strings.HasPrefix(w.After(-1), "func"))
}
