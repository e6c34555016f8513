package buffer

import (
	"context"
	"sync"

	"suggestd/logger"
	"suggestd/session"

	"github.com/cockroachdb/errors"
	"github.com/neovim/go-client/nvim"
)

// syncLua reads the buffer-local flags and the syntax group under the cursor
const syncLua = `
local row, col = unpack(vim.api.nvim_win_get_cursor(0))
local synname = ''
if vim.fn.exists('*synID') == 1 then
	synname = vim.fn.synIDattr(vim.fn.synID(row, math.max(col, 1), 1), 'name')
end
local disable = vim.b.suggest_disable
return {
	synname = synname,
	disabled = disable == true or disable == 1,
	blacklist = vim.b.suggest_blacklist or {},
}
`

type bufferState struct {
	Synname   string   `msgpack:"synname"`
	Disabled  bool     `msgpack:"disabled"`
	Blacklist []string `msgpack:"blacklist"`
}

type Config struct {
	LocalityRadius int
}

// NvimBuffer mirrors the current Neovim buffer. It implements session.Document.
type NvimBuffer struct {
	client *nvim.Nvim // stored internally, set via SetClient

	mu    sync.RWMutex
	id    nvim.Buffer
	lines []string
	flags session.Flags

	config Config
}

func New(config Config) *NvimBuffer {
	if config.LocalityRadius <= 0 {
		config.LocalityRadius = LocalityRadius
	}
	return &NvimBuffer{
		lines:  []string{},
		config: config,
	}
}

// SetClient stores the nvim client for all buffer operations
func (b *NvimBuffer) SetClient(n *nvim.Nvim) {
	b.mu.Lock()
	b.client = n
	b.mu.Unlock()
}

// Sync reads lines and flags from the editor in one round-trip
func (b *NvimBuffer) Sync(ctx context.Context) error {
	defer logger.Trace("buffer.Sync")()

	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()
	if client == nil {
		return errors.New("nvim client not set")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := client.NewBatch()

	var currentBuf nvim.Buffer
	var lines [][]byte
	var state bufferState

	batch.CurrentBuffer(&currentBuf)
	batch.BufferLines(nvim.Buffer(0), 0, -1, false, &lines)
	batch.ExecLua(syncLua, &state, nil)

	if err := batch.Execute(); err != nil {
		return errors.Wrap(err, "execute sync batch")
	}

	linesStr := make([]string, len(lines))
	for i, line := range lines {
		linesStr[i] = string(line)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.id != currentBuf {
		logger.Debug("buffer: switched %d -> %d", b.id, currentBuf)
		b.id = currentBuf
	}
	b.lines = linesStr
	b.flags = session.Flags{
		Synname:   state.Synname,
		Disabled:  state.Disabled,
		Blacklist: state.Blacklist,
	}
	return nil
}

// Line returns the 1-indexed line, or "" when out of range
func (b *NvimBuffer) Line(linenr int) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if linenr < 1 || linenr > len(b.lines) {
		return ""
	}
	return b.lines[linenr-1]
}

// Lines returns the buffer content as of the last sync
func (b *NvimBuffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lines
}

func (b *NvimBuffer) Flags() session.Flags {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.flags
}

func (b *NvimBuffer) LocalityBonus(linenr, col int) map[string]int {
	defer logger.Trace("buffer.LocalityBonus")()
	b.mu.RLock()
	defer b.mu.RUnlock()
	return LocalityBonus(b.lines, linenr, col, b.config.LocalityRadius)
}

// Notify shows msg through vim.notify
func (b *NvimBuffer) Notify(msg string, level LogLevel) {
	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()
	if client == nil {
		return
	}
	batch := client.NewBatch()
	batch.ExecLua("vim.notify(...)", nil, "[suggest] "+msg, int(level))
	if err := batch.Execute(); err != nil {
		logger.Error("error sending notification: %v", err)
	}
}

// LogLevel mirrors vim.log.levels
type LogLevel int

const (
	LevelInfo  LogLevel = 2
	LevelWarn  LogLevel = 3
	LevelError LogLevel = 4
)
