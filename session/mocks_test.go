package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"suggestd/metrics"
	"suggestd/types"
)

// mockClock implements Clock for testing
type mockClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Unix(1700000000, 0)}
}

func (c *mockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTimer{fireAt: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves time forward and fires due timers outside the clock lock
func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*mockTimer
	for _, t := range c.timers {
		if !t.fireAt.After(c.now) {
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fire()
	}
}

// active counts timers that have neither fired nor been stopped
func (c *mockClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done() {
			n++
		}
	}
	return n
}

type mockTimer struct {
	mu      sync.Mutex
	fireAt  time.Time
	f       func()
	stopped bool
}

func (t *mockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (t *mockTimer) done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *mockTimer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	f := t.f
	t.mu.Unlock()
	if f != nil {
		f()
	}
}

// mockDocument implements Document for testing
type mockDocument struct {
	mu        sync.Mutex
	lines     []string
	flags     Flags
	bonus     map[string]int
	syncCalls int
}

func newMockDocument(lines ...string) *mockDocument {
	return &mockDocument{lines: lines}
}

func (d *mockDocument) Sync(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncCalls++
	return nil
}

func (d *mockDocument) Line(linenr int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if linenr < 1 || linenr > len(d.lines) {
		return ""
	}
	return d.lines[linenr-1]
}

func (d *mockDocument) setLine(linenr int, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines[linenr-1] = text
}

func (d *mockDocument) Flags() Flags {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flags
}

func (d *mockDocument) LocalityBonus(linenr, col int) map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bonus
}

// mockSource implements types.Source for testing
type mockSource struct {
	name       string
	priority   int
	words      []string
	incomplete bool
	startCol   *int
	err        error
	delay      time.Duration
	// honorCancel makes a delayed source return early on cancellation
	honorCancel bool
	calls       atomic.Int32
	inputs      chan string
}

func newMockSource(name string, priority int, words ...string) *mockSource {
	return &mockSource{name: name, priority: priority, words: words}
}

func (m *mockSource) Name() string  { return m.name }
func (m *mockSource) Priority() int { return m.priority }

func (m *mockSource) DoComplete(ctx context.Context, opt types.CompleteOption) (*types.CompleteResult, error) {
	m.calls.Add(1)
	if m.inputs != nil {
		m.inputs <- opt.Input
	}
	if m.delay > 0 {
		if m.honorCancel {
			select {
			case <-time.After(m.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			time.Sleep(m.delay)
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	result := &types.CompleteResult{Incomplete: m.incomplete, StartCol: m.startCol}
	for _, w := range m.words {
		result.Items = append(result.Items, &types.CompleteItem{Word: w})
	}
	return result, nil
}

// blockingSource waits for cancellation and records that it saw it
type blockingSource struct {
	name      string
	started   chan struct{}
	cancelled chan struct{}
}

func newBlockingSource(name string) *blockingSource {
	return &blockingSource{name: name, started: make(chan struct{}), cancelled: make(chan struct{})}
}

func (b *blockingSource) Name() string  { return b.name }
func (b *blockingSource) Priority() int { return 1 }

func (b *blockingSource) DoComplete(ctx context.Context, opt types.CompleteOption) (*types.CompleteResult, error) {
	close(b.started)
	<-ctx.Done()
	close(b.cancelled)
	return nil, ctx.Err()
}

// decliningSource is never ready
type decliningSource struct {
	*mockSource
}

func (decliningSource) ShouldComplete(ctx context.Context, opt types.CompleteOption) (bool, error) {
	return false, nil
}

// mockReporter records reported failures and outcomes
type mockReporter struct {
	mu       sync.Mutex
	failed   []string
	outcomes map[string][]metrics.Outcome
}

func newMockReporter() *mockReporter {
	return &mockReporter{outcomes: make(map[string][]metrics.Outcome)}
}

func (r *mockReporter) SourceFailed(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, name)
}

func (r *mockReporter) SourceFinished(name string, outcome metrics.Outcome, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[name] = append(r.outcomes[name], outcome)
}

func (r *mockReporter) failures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failed...)
}

// --- Helper functions ---

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TriggerWait = 0
	cfg.LocalityBonus = false
	cfg.DefaultSortMethod = types.SortNone
	return cfg
}

func createTestSession(doc *mockDocument, clock Clock, cfg Config, sources ...types.Source) *Session {
	opt := types.CompleteOption{Bufnr: 1, Linenr: 1, Line: doc.Line(1), Colnr: len(doc.Line(1)) + 1, Input: doc.Line(1)}
	return New(doc, sources, opt, cfg, clock, nil)
}

// store normalizes words as source name would and installs the result
func store(s *Session, name string, priority int, items ...*types.CompleteItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := &types.CompleteResult{Priority: priority}
	for _, it := range items {
		result.Items = append(result.Items, s.normalizeItem(it, name, "", priority))
	}
	s.setResult(name, result)
}

func resultCount(s *Session) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func words(items []*types.CompleteItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Word
	}
	return out
}

func word(w string) *types.CompleteItem {
	return &types.CompleteItem{Word: w}
}
