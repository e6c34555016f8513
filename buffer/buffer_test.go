package buffer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWords(t *testing.T) {
	words := Words("foo.bar(x, baz_qux) 日本", MinWordLength)
	var texts []string
	for _, w := range words {
		texts = append(texts, w.Text)
	}
	assert.Equal(t, []string{"foo", "bar", "baz_qux", "日本"}, texts)
	assert.Equal(t, Word{Text: "bar", Start: 4, End: 7}, words[1])
}

func TestNewOption(t *testing.T) {
	t.Run("word before cursor", func(t *testing.T) {
		opt := NewOption(3, 7, "  fmt.Prin(x)", 10, "go")
		assert.Equal(t, 3, opt.Bufnr)
		assert.Equal(t, 7, opt.Linenr)
		assert.Equal(t, 6, opt.Col)
		assert.Equal(t, 11, opt.Colnr)
		assert.Equal(t, "Prin", opt.Input)
		assert.Equal(t, "n", opt.TriggerCharacter)
		assert.Equal(t, "", opt.FollowWord)
		assert.Equal(t, "go", opt.Filetype)
		assert.Equal(t, opt.Col+len(opt.Input), opt.Cursor())
	})

	t.Run("after trigger character", func(t *testing.T) {
		opt := NewOption(1, 1, "foo.", 4, "")
		assert.Equal(t, "", opt.Input)
		assert.Equal(t, 4, opt.Col)
		assert.Equal(t, ".", opt.TriggerCharacter)
	})

	t.Run("follow word", func(t *testing.T) {
		opt := NewOption(1, 1, "foobar baz", 3, "")
		assert.Equal(t, "foo", opt.Input)
		assert.Equal(t, "bar", opt.FollowWord)
	})

	t.Run("cursor clamped", func(t *testing.T) {
		opt := NewOption(1, 1, "ab", 10, "")
		assert.Equal(t, "ab", opt.Input)
		assert.Equal(t, 3, opt.Colnr)
	})
}

func TestLocalityBonus(t *testing.T) {
	lines := []string{
		"alpha beta",
		"gamma",
		"beta delta",
		"far",
	}

	bonus := LocalityBonus(lines, 3, 5, 10)
	assert.Equal(t, 10, bonus["beta"], "closest occurrence wins")
	assert.Equal(t, 9, bonus["gamma"])
	assert.Equal(t, 8, bonus["alpha"])
	assert.Equal(t, 9, bonus["far"])
	assert.NotContains(t, bonus, "delta", "word under the cursor is skipped")
}

func TestLocalityBonus_Radius(t *testing.T) {
	lines := []string{"one", "two", "three", "four"}
	bonus := LocalityBonus(lines, 4, 0, 2)
	assert.Equal(t, 1, bonus["three"])
	assert.NotContains(t, bonus, "two", "distance equal to radius scores nothing")
	assert.NotContains(t, bonus, "one")
	assert.Empty(t, LocalityBonus(lines, 1, 0, 0))
}

func TestNvimBuffer_Accessors(t *testing.T) {
	buf := New(Config{LocalityRadius: 5})
	buf.lines = []string{"first", "sec ond"}
	buf.flags.Synname = "Comment"

	assert.Equal(t, "first", buf.Line(1))
	assert.Equal(t, "", buf.Line(0))
	assert.Equal(t, "", buf.Line(3))

	assert.Equal(t, []string{"first", "sec ond"}, buf.Lines())
	assert.Equal(t, "Comment", buf.Flags().Synname)

	assert.Equal(t, 4, buf.LocalityBonus(2, 4)["first"], "radius from config")
}

func TestNvimBuffer_SyncWithoutClient(t *testing.T) {
	buf := New(Config{})
	err := buf.Sync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client not set")
}

func TestScreen_WithoutClientIsNoop(t *testing.T) {
	s := NewScreen(New(Config{}))
	tx := s.Begin()
	tx.HidePopup()
	tx.Redraw()
	assert.NoError(t, tx.Commit())
}
