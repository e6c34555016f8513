// Package snippets serves snippet definitions from TOML and YAML files and
// reloads them when the files change.
package snippets

import (
	"context"
	"path/filepath"
	"sync"

	"suggestd/logger"
	"suggestd/types"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

type Config struct {
	Paths    []string
	Priority int
	Shortcut string
	Watch    bool
}

func DefaultConfig() Config {
	return Config{Priority: 90, Shortcut: "S", Watch: true}
}

type Source struct {
	config Config

	mu       sync.RWMutex
	snippets []Snippet

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// New loads the configured paths and, when Watch is set, starts watching
// them. Parse errors are logged; a broken file never disables the source.
func New(config Config) (*Source, error) {
	if config.Shortcut == "" {
		config.Shortcut = DefaultConfig().Shortcut
	}
	s := &Source{config: config, done: make(chan struct{})}
	s.reload()

	if !config.Watch || len(config.Paths) == 0 {
		return s, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create snippet watcher")
	}
	watched := make(map[string]bool)
	for _, p := range config.Paths {
		dir := p
		if isSnippetFile(p) {
			dir = filepath.Dir(p)
		}
		if watched[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			logger.Warn("snippets: cannot watch %s: %v", dir, err)
			continue
		}
		watched[dir] = true
	}

	s.watcher = w
	s.wg.Add(1)
	go s.watch()
	return s, nil
}

func (s *Source) Name() string     { return types.SnippetSourceName }
func (s *Source) Priority() int    { return s.config.Priority }
func (s *Source) Shortcut() string { return s.config.Shortcut }

// Len returns the number of loaded snippets
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snippets)
}

func (s *Source) DoComplete(ctx context.Context, opt types.CompleteOption) (*types.CompleteResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []*types.CompleteItem
	for i := range s.snippets {
		snip := &s.snippets[i]
		if !snip.appliesTo(opt.Filetype) {
			continue
		}
		items = append(items, &types.CompleteItem{
			Word:      snip.Prefix,
			Menu:      snip.Description,
			Info:      snip.Body,
			Kind:      "Snippet",
			IsSnippet: true,
		})
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &types.CompleteResult{Items: items}, nil
}

// Dispose stops the file watcher
func (s *Source) Dispose() {
	if s.watcher == nil {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	s.watcher.Close()
	s.wg.Wait()
}

func (s *Source) reload() {
	snips, err := LoadPaths(s.config.Paths)
	if err != nil {
		logger.Warn("snippets: %v", err)
	}
	s.mu.Lock()
	s.snippets = snips
	s.mu.Unlock()
	logger.Debug("snippets: loaded %d definitions", len(snips))
}

func (s *Source) watch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !isSnippetFile(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				s.reload()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("snippets: watcher error: %v", err)
		}
	}
}
