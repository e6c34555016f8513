package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"suggestd/buffer"
	"suggestd/popup"
	"suggestd/session"
	"suggestd/types"
)

type mockDocument struct {
	mu    sync.Mutex
	lines map[int]string
	flags session.Flags
}

func newMockDocument() *mockDocument {
	return &mockDocument{lines: make(map[int]string)}
}

func (d *mockDocument) Sync(ctx context.Context) error { return ctx.Err() }

func (d *mockDocument) Line(linenr int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lines[linenr]
}

func (d *mockDocument) setLine(linenr int, line string) {
	d.mu.Lock()
	d.lines[linenr] = line
	d.mu.Unlock()
}

func (d *mockDocument) Flags() session.Flags {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flags
}

func (d *mockDocument) LocalityBonus(linenr, col int) map[string]int { return nil }

type mockSource struct {
	name       string
	words      []string
	incomplete bool
	err        error
	startCol   *int
	// gate holds the first call until closed
	gate chan struct{}

	calls    atomic.Int32
	mu       sync.Mutex
	inputs   []string
	disposed bool
}

func (s *mockSource) Name() string  { return s.name }
func (s *mockSource) Priority() int { return 10 }

func (s *mockSource) DoComplete(ctx context.Context, opt types.CompleteOption) (*types.CompleteResult, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.inputs = append(s.inputs, opt.Input)
	s.mu.Unlock()
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	items := make([]*types.CompleteItem, len(s.words))
	for i, w := range s.words {
		items[i] = &types.CompleteItem{Word: w}
	}
	return &types.CompleteResult{Items: items, Incomplete: s.incomplete, StartCol: s.startCol}, nil
}

func (s *mockSource) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()
}

func (s *mockSource) lastInput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inputs) == 0 {
		return ""
	}
	return s.inputs[len(s.inputs)-1]
}

type mockRenderer struct {
	mu    sync.Mutex
	shown [][]string
	hides int
}

func (r *mockRenderer) Show(items []*types.CompleteItem, search string, option types.CompleteOption) (*popup.Popup, error) {
	words := make([]string, len(items))
	for i, it := range items {
		words[i] = it.Word
	}
	r.mu.Lock()
	r.shown = append(r.shown, words)
	r.mu.Unlock()
	return &popup.Popup{}, nil
}

func (r *mockRenderer) Hide() error {
	r.mu.Lock()
	r.hides++
	r.mu.Unlock()
	return nil
}

func (r *mockRenderer) last() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.shown) == 0 {
		return nil
	}
	return r.shown[len(r.shown)-1]
}

func (r *mockRenderer) hideCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hides
}

type mockHistory struct {
	mu    sync.Mutex
	added []string
	saved bool
}

func (h *mockHistory) Add(prefix string, item *types.CompleteItem) {
	h.mu.Lock()
	h.added = append(h.added, prefix+":"+item.Word)
	h.mu.Unlock()
}

func (h *mockHistory) Save() error {
	h.mu.Lock()
	h.saved = true
	h.mu.Unlock()
	return nil
}

func (h *mockHistory) entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.added...)
}

type mockNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *mockNotifier) Notify(msg string, level buffer.LogLevel) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (n *mockNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}
