package metrics

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"suggestd/logger"

	"github.com/google/uuid"
)

// Outcome classifies how a source call ended
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeEmpty   Outcome = "empty"
	OutcomeError   Outcome = "error"
	OutcomeTimeout Outcome = "timeout"
	OutcomeSkipped Outcome = "skipped"
)

// SourceStats is the aggregate for one source
type SourceStats struct {
	Name       string  `msgpack:"name" json:"name"`
	Calls      int     `msgpack:"calls" json:"calls"`
	OK         int     `msgpack:"ok" json:"ok"`
	Empty      int     `msgpack:"empty" json:"empty"`
	Errors     int     `msgpack:"errors" json:"errors"`
	Timeouts   int     `msgpack:"timeouts" json:"timeouts"`
	Skipped    int     `msgpack:"skipped" json:"skipped"`
	AvgLatency float64 `msgpack:"avg_latency_ms" json:"avg_latency_ms"`
	MaxLatency float64 `msgpack:"max_latency_ms" json:"max_latency_ms"`

	totalLatency time.Duration
}

// Stats is the payload returned by the suggestd_stats RPC
type Stats struct {
	InstanceID string        `msgpack:"instance_id" json:"instance_id"`
	Sessions   int           `msgpack:"sessions" json:"sessions"`
	Accepted   int           `msgpack:"accepted" json:"accepted"`
	Sources    []SourceStats `msgpack:"sources" json:"sources"`
}

// Tracker aggregates per-source latency and outcome counts.
// It is safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	instanceID string
	sessions   int
	accepted   int
	sources    map[string]*SourceStats
}

func NewTracker(dataDir string) *Tracker {
	return &Tracker{
		instanceID: loadOrCreateInstanceID(dataDir),
		sources:    make(map[string]*SourceStats),
	}
}

// SessionStarted counts a new completion session
func (t *Tracker) SessionStarted() {
	t.mu.Lock()
	t.sessions++
	t.mu.Unlock()
}

// Accepted counts an accepted completion
func (t *Tracker) Accepted() {
	t.mu.Lock()
	t.accepted++
	t.mu.Unlock()
}

// Record adds one source call. Skipped calls do not count towards latency.
func (t *Tracker) Record(source string, outcome Outcome, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sources[source]
	if !ok {
		s = &SourceStats{Name: source}
		t.sources[source] = s
	}
	s.Calls++
	switch outcome {
	case OutcomeOK:
		s.OK++
	case OutcomeEmpty:
		s.Empty++
	case OutcomeError:
		s.Errors++
	case OutcomeTimeout:
		s.Timeouts++
	case OutcomeSkipped:
		s.Skipped++
		return
	}
	s.totalLatency += elapsed
	ms := float64(elapsed) / float64(time.Millisecond)
	if ms > s.MaxLatency {
		s.MaxLatency = ms
	}
}

// Snapshot returns a copy of the current stats, sources sorted by name
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{
		InstanceID: t.instanceID,
		Sessions:   t.sessions,
		Accepted:   t.accepted,
		Sources:    make([]SourceStats, 0, len(t.sources)),
	}
	for _, s := range t.sources {
		c := *s
		if timed := c.Calls - c.Skipped; timed > 0 {
			c.AvgLatency = float64(c.totalLatency) / float64(time.Millisecond) / float64(timed)
		}
		stats.Sources = append(stats.Sources, c)
	}
	sort.Slice(stats.Sources, func(i, j int) bool {
		return stats.Sources[i].Name < stats.Sources[j].Name
	})
	return stats
}

// LogSummary writes one line per source to the log
func (t *Tracker) LogSummary() {
	stats := t.Snapshot()
	logger.Info("metrics: instance=%s sessions=%d accepted=%d", stats.InstanceID, stats.Sessions, stats.Accepted)
	for _, s := range stats.Sources {
		logger.Info("metrics: source=%s calls=%d ok=%d empty=%d errors=%d timeouts=%d skipped=%d avg=%.1fms max=%.1fms",
			s.Name, s.Calls, s.OK, s.Empty, s.Errors, s.Timeouts, s.Skipped, s.AvgLatency, s.MaxLatency)
	}
}

func loadOrCreateInstanceID(dataDir string) string {
	if dataDir == "" {
		return uuid.NewString()
	}

	idPath := filepath.Join(dataDir, "instance_id")

	data, err := os.ReadFile(idPath)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, perr := uuid.Parse(id); perr == nil {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Warn("metrics: could not create data dir %s: %v", dataDir, err)
		return id
	}
	if err := os.WriteFile(idPath, []byte(id), 0644); err != nil {
		logger.Warn("metrics: could not write instance_id: %v", err)
	}
	return id
}
