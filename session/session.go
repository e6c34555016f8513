// Package session implements one completion request's lifecycle: fan-out to
// sources under a timeout, merging of their results, ranking and limiting.
package session

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"suggestd/logger"
	"suggestd/match"
	"suggestd/metrics"
	"suggestd/types"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	// ErrDisabled aborts a session when the buffer has completion turned off
	ErrDisabled = errors.New("completion disabled for buffer")
	// ErrBlacklisted aborts a session when the input is on the buffer blacklist
	ErrBlacklisted = errors.New("input is blacklisted")
)

// Flags is the per-buffer trigger context read after a sync
type Flags struct {
	Synname   string
	Disabled  bool
	Blacklist []string
}

// Document is the text buffer collaborator.
// Implemented by buffer.NvimBuffer for Neovim integration.
type Document interface {
	// Sync flushes pending edits and refreshes the cached buffer state
	Sync(ctx context.Context) error
	Line(linenr int) string
	Flags() Flags
	// LocalityBonus maps nearby words to a bonus that grows with proximity to the cursor
	LocalityBonus(linenr, col int) map[string]int
}

// Reporter receives per-source outcomes
type Reporter interface {
	SourceFailed(name string, err error)
	SourceFinished(name string, outcome metrics.Outcome, elapsed time.Duration)
}

type nopReporter struct{}

func (nopReporter) SourceFailed(string, error) {}
func (nopReporter) SourceFinished(string, metrics.Outcome, time.Duration) {}

// Session owns the results table and cancellation scope of one trigger
type Session struct {
	ID string

	doc      Document
	config   Config
	clock    Clock
	reporter Reporter
	matcher  *match.Matcher

	mu           sync.Mutex
	sources      []types.Source
	option       types.CompleteOption
	results      map[string]*types.CompleteResult
	localBonus   map[string]int
	timedOut     []string
	scope        context.Context
	cancel       context.CancelFunc
	refreshTimer Timer
	refreshed    chan struct{}
	disposed     bool
}

// New creates a session over sources, ordered by descending priority with
// registration order kept for ties.
func New(doc Document, sources []types.Source, option types.CompleteOption, config Config, clock Clock, reporter Reporter) *Session {
	if clock == nil {
		clock = SystemClock{}
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	ordered := slices.Clone(sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() > ordered[j].Priority()
	})
	return &Session{
		ID:        uuid.NewString(),
		doc:       doc,
		config:    config.normalized(),
		clock:     clock,
		reporter:  reporter,
		matcher:   match.New(),
		sources:   ordered,
		option:    option,
		results:   make(map[string]*types.CompleteResult),
		refreshed: make(chan struct{}, 1),
	}
}

// Refreshed delivers at most one pending notification that the results table changed
func (s *Session) Refreshed() <-chan struct{} {
	return s.refreshed
}

// Option returns a copy of the current trigger context
func (s *Session) Option() types.CompleteOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.option
}

// TimedOut returns the sources abandoned by the last fan-out
func (s *Session) TimedOut() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.timedOut)
}

// IncompleteSources returns the names whose last result can be refined
func (s *Session) IncompleteSources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, src := range s.sources {
		if r, ok := s.results[src.Name()]; ok && r.Incomplete {
			names = append(names, src.Name())
		}
	}
	return names
}

// DoComplete starts the session: it reads the trigger-time buffer flags,
// waits out bursty keystrokes and fans out to every source. It returns false
// when the session was cancelled before the fan-out finished.
func (s *Session) DoComplete(ctx context.Context) (bool, error) {
	defer logger.Trace("session.DoComplete")()

	if err := s.doc.Sync(ctx); err != nil {
		return false, errors.Wrap(err, "sync document")
	}
	flags := s.doc.Flags()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return false, nil
	}
	s.option.Synname = flags.Synname
	input := s.option.Input
	s.mu.Unlock()

	if flags.Disabled {
		return false, ErrDisabled
	}
	if slices.Contains(flags.Blacklist, input) {
		return false, errors.Wrapf(ErrBlacklisted, "input %q", input)
	}

	if s.config.TriggerWait > 0 {
		if !s.wait(ctx, s.config.TriggerWait) {
			return false, nil
		}
	}

	if s.config.LocalityBonus {
		opt := s.Option()
		bonus := s.doc.LocalityBonus(opt.Linenr, opt.Col)
		s.mu.Lock()
		s.localBonus = bonus
		s.mu.Unlock()
	}

	scope, ok := s.newScope(ctx)
	if !ok {
		return false, nil
	}
	logger.Debug("session %s: complete %q with %d sources", s.ID, input, len(s.sources))
	return s.completeSources(scope, s.sourceList(), false), nil
}

// Resume re-queries the sources whose last result was incomplete with the
// new input and returns the re-ranked list.
func (s *Session) Resume(ctx context.Context, input string) ([]*types.CompleteItem, error) {
	names := s.IncompleteSources()
	if len(names) == 0 {
		return s.FilterItems(input), nil
	}
	return s.CompleteInComplete(ctx, input, names)
}

// CompleteInComplete re-triggers only the named sources with resumeInput,
// replacing the cancellation scope and the derived trigger fields, then
// filters once the resume finishes.
func (s *Session) CompleteInComplete(ctx context.Context, resumeInput string, names []string) ([]*types.CompleteItem, error) {
	defer logger.Trace("session.CompleteInComplete")()

	scope, ok := s.newScope(ctx)
	if !ok {
		return nil, nil
	}
	if err := s.doc.Sync(scope); err != nil {
		return nil, errors.Wrap(err, "sync document")
	}

	s.mu.Lock()
	s.option.Line = s.doc.Line(s.option.Linenr)
	s.option.Input = resumeInput
	s.option.Colnr = s.option.Col + len(resumeInput) + 1
	s.option.TriggerCharacter = ""
	if r, size := utf8.DecodeLastRuneInString(resumeInput); size > 0 {
		s.option.TriggerCharacter = string(r)
	}
	var sources []types.Source
	for _, src := range s.sources {
		if slices.Contains(names, src.Name()) {
			sources = append(sources, src)
		}
	}
	s.mu.Unlock()

	logger.Debug("session %s: resume %q on %v", s.ID, resumeInput, names)
	if !s.completeSources(scope, sources, true) {
		return nil, nil
	}
	return s.FilterItems(resumeInput), nil
}

type arrival struct {
	name        string
	contributed bool
}

// completeSources races the timeout against all sources. It returns false
// when the scope was cancelled from outside or the column moved.
func (s *Session) completeSources(scope context.Context, sources []types.Source, resume bool) bool {
	if len(sources) == 0 {
		s.requestRefresh(0)
		return true
	}

	s.mu.Lock()
	col := s.option.Col
	s.timedOut = nil
	s.mu.Unlock()

	start := s.clock.Now()
	pending := make(map[string]bool, len(sources))
	arrivals := make(chan arrival, len(sources))
	for _, src := range sources {
		pending[src.Name()] = true
		go func(src types.Source) {
			arrivals <- arrival{name: src.Name(), contributed: s.completeSource(scope, src)}
		}(src)
	}

	timeout := make(chan struct{})
	timer := s.clock.AfterFunc(s.config.Timeout, func() { close(timeout) })
	defer timer.Stop()

	for len(pending) > 0 {
		select {
		case a := <-arrivals:
			delete(pending, a.name)
			if scope.Err() != nil {
				return false
			}
			if !resume && s.Option().Col != col {
				logger.Debug("session %s: column moved, dropping %d pending sources", s.ID, len(pending))
				s.cancelScope(scope)
				s.requestRefresh(0)
				return false
			}
			if len(pending) > 0 && a.contributed {
				s.requestRefresh(RefreshDelay)
			}
		case <-timeout:
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			sort.Strings(names)
			s.cancelScope(scope)

			s.mu.Lock()
			s.timedOut = names
			s.mu.Unlock()

			elapsed := s.clock.Now().Sub(start)
			for _, name := range names {
				s.reporter.SourceFinished(name, metrics.OutcomeTimeout, elapsed)
			}
			logger.Warn("session %s: sources timed out after %v: %s", s.ID, s.config.Timeout, strings.Join(names, ", "))
			s.requestRefresh(0)
			return true
		case <-scope.Done():
			return false
		}
	}

	if scope.Err() != nil {
		return false
	}
	s.requestRefresh(0)
	return true
}

// completeSource queries one source and stores its normalized result.
// It reports whether the source contributed items.
func (s *Session) completeSource(scope context.Context, src types.Source) bool {
	name := src.Name()
	start := s.clock.Now()

	if scope.Err() != nil {
		s.reporter.SourceFinished(name, metrics.OutcomeSkipped, 0)
		return false
	}
	opt := s.Option()

	if r, ok := src.(types.Readiness); ok {
		ready, err := r.ShouldComplete(scope, opt)
		if err != nil {
			if scope.Err() == nil {
				s.sourceFailed(name, errors.Wrapf(err, "%s: should complete", name), start)
			}
			return false
		}
		if !ready || scope.Err() != nil {
			s.reporter.SourceFinished(name, metrics.OutcomeSkipped, 0)
			return false
		}
	}

	result, err := src.DoComplete(scope, opt)
	if err != nil {
		if scope.Err() != nil || errors.Is(err, context.Canceled) {
			return false
		}
		s.sourceFailed(name, errors.Wrapf(err, "%s: complete", name), start)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// late results after timeout, cancel or a newer scope are ignored
	if scope.Err() != nil || s.disposed {
		return false
	}
	elapsed := s.clock.Now().Sub(start)
	if result == nil || len(result.Items) == 0 {
		delete(s.results, name)
		s.reporter.SourceFinished(name, metrics.OutcomeEmpty, elapsed)
		return false
	}

	priority := result.Priority
	if priority == 0 {
		priority = src.Priority()
	}
	shortcut := ""
	if sc, ok := src.(types.Shortcutter); ok {
		shortcut = sc.Shortcut()
	}

	stored := &types.CompleteResult{
		Items:      make([]*types.CompleteItem, 0, len(result.Items)),
		Incomplete: result.Incomplete,
		StartCol:   result.StartCol,
		Priority:   priority,
	}
	for _, item := range result.Items {
		if item == nil {
			continue
		}
		stored.Items = append(stored.Items, s.normalizeItem(item, name, shortcut, priority))
	}
	s.setResult(name, stored)
	s.reporter.SourceFinished(name, metrics.OutcomeOK, elapsed)
	logger.Debug("session %s: %s returned %d items in %v", s.ID, name, len(stored.Items), elapsed)
	return true
}

func (s *Session) sourceFailed(name string, err error, start time.Time) {
	logger.Error("session %s: %v", s.ID, err)
	s.reporter.SourceFailed(name, err)
	s.reporter.SourceFinished(name, metrics.OutcomeError, s.clock.Now().Sub(start))
}

// normalizeItem returns a defaulted copy of item tagged with its source.
// Caller must hold s.mu.
func (s *Session) normalizeItem(item *types.CompleteItem, name, shortcut string, priority int) *types.CompleteItem {
	c := *item
	if c.Word == "" {
		c.Word = c.Abbr
	}
	if c.Abbr == "" {
		c.Abbr = c.Word
	}
	if c.FilterText == "" {
		c.FilterText = c.Word
	}
	c.Source = name
	c.Shortcut = shortcut
	c.Priority = priority
	c.Score, c.Scored, c.Positions = 0, false, nil

	if c.IsSnippet && s.config.SnippetIndicator != "" && !strings.HasSuffix(c.Abbr, s.config.SnippetIndicator) {
		c.Abbr += s.config.SnippetIndicator
	}

	follow := s.option.FollowWord
	if s.config.FixInsertedWord && !c.IsSnippet && follow != "" &&
		len(c.Word) > len(follow) && strings.HasSuffix(c.Word, follow) {
		c.Word = strings.TrimSuffix(c.Word, follow)
	}

	if name != types.SnippetSourceName && s.localBonus != nil {
		c.LocalBonus = s.localBonus[c.FilterText]
	}
	return &c
}

// setResult stores result for name. A start column that disagrees with the
// session resets the table and moves the session to that column.
// Caller must hold s.mu.
func (s *Session) setResult(name string, result *types.CompleteResult) {
	if result.StartCol != nil && *result.StartCol != s.option.Col {
		startCol := *result.StartCol
		cursor := s.option.Cursor()
		if startCol >= 0 && startCol <= cursor && cursor <= len(s.option.Line) {
			s.option.Input = s.option.Line[startCol:cursor]
		}
		logger.Debug("session %s: %s moved start column %d -> %d", s.ID, name, s.option.Col, startCol)
		s.option.Col = startCol
		s.results = map[string]*types.CompleteResult{name: result}
		return
	}
	s.results[name] = result
}

// newScope cancels the active scope and installs a fresh one derived from parent
func (s *Session) newScope(parent context.Context) (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, false
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.scope, s.cancel = context.WithCancel(parent)
	return s.scope, true
}

func (s *Session) cancelScope(scope context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scope == scope && s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) sourceList() []types.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sources)
}

// wait blocks for d on the session clock; false means ctx ended first
func (s *Session) wait(ctx context.Context, d time.Duration) bool {
	done := make(chan struct{})
	t := s.clock.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
		return true
	case <-ctx.Done():
		t.Stop()
		return false
	}
}

// requestRefresh replaces any pending refresh. A zero delay notifies immediately.
func (s *Session) requestRefresh(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
	if s.disposed {
		return
	}
	if delay <= 0 {
		s.notify()
		return
	}
	var t Timer
	t = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.refreshTimer != t {
			return
		}
		s.refreshTimer = nil
		s.notify()
	})
	s.refreshTimer = t
}

// notify performs a non-blocking send on the single-slot channel
func (s *Session) notify() {
	select {
	case s.refreshed <- struct{}{}:
	default:
	}
}

// Cancel stops the pending refresh and the in-flight sources. Collected
// results stay available for filtering.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// Dispose cancels the session and drops its sources and results
func (s *Session) Dispose() {
	s.Cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.sources = nil
	s.results = make(map[string]*types.CompleteResult)
	s.localBonus = nil
}
