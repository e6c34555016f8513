package mru

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"suggestd/logger"
	"suggestd/types"

	"github.com/cockroachdb/errors"
)

// DefaultMaxEntries bounds the history kept in memory and on disk
const DefaultMaxEntries = 500

// Entry is one accepted completion
type Entry struct {
	Prefix string `json:"prefix"`
	Word   string `json:"word"`
	Kind   string `json:"kind,omitempty"`
	Source string `json:"source,omitempty"`
}

// Model tracks recently accepted completions, most recent first.
// It is safe for concurrent use.
type Model struct {
	mu         sync.RWMutex
	entries    []Entry
	maxEntries int
	path       string // empty disables persistence
}

// New creates an in-memory model
func New(maxEntries int) *Model {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Model{maxEntries: maxEntries}
}

// Load creates a model persisted under dataDir. A missing or unreadable
// history file yields an empty model.
func Load(dataDir string, maxEntries int) *Model {
	m := New(maxEntries)
	if dataDir == "" {
		return m
	}
	m.path = filepath.Join(dataDir, "suggest_mru.json")

	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("mru: could not read %s: %v", m.path, err)
		}
		return m
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("mru: ignoring corrupt history %s: %v", m.path, err)
		return m
	}
	if len(entries) > m.maxEntries {
		entries = entries[:m.maxEntries]
	}
	m.entries = entries
	return m
}

// Add records an accepted item typed with prefix
func (m *Model) Add(prefix string, item *types.CompleteItem) {
	if item == nil || item.Word == "" {
		return
	}
	entry := Entry{Prefix: prefix, Word: item.Word, Kind: item.Kind, Source: item.Source}

	m.mu.Lock()
	kept := make([]Entry, 0, len(m.entries)+1)
	kept = append(kept, entry)
	for _, e := range m.entries {
		if e.Prefix == entry.Prefix && e.Word == entry.Word && e.Source == entry.Source {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) > m.maxEntries {
		kept = kept[:m.maxEntries]
	}
	m.entries = kept
	m.mu.Unlock()
}

// Score returns the recency affinity of item for the given input. Higher is
// more recent; -1 means the item has no history under this selection mode.
func (m *Model) Score(input string, item *types.CompleteItem, selection types.Selection) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, e := range m.entries {
		if e.Word != item.Word {
			continue
		}
		switch selection {
		case types.SelectionRecentlyUsedByPrefix:
			if e.Prefix != input {
				continue
			}
		case types.SelectionRecentlyUsed:
		default:
			return -1
		}
		return len(m.entries) - i
	}
	return -1
}

// Len returns the number of recorded entries
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Save writes the history to disk. No-op for in-memory models.
func (m *Model) Save() error {
	if m.path == "" {
		return nil
	}
	m.mu.RLock()
	data, err := json.Marshal(m.entries)
	m.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "marshal mru history")
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return errors.Wrapf(err, "create data dir for %s", m.path)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	return errors.Wrap(os.Rename(tmp, m.path), "replace mru history")
}
