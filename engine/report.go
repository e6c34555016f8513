package engine

import (
	"fmt"
	"sync"
	"time"

	"suggestd/buffer"
	"suggestd/metrics"
	"suggestd/session"
)

// reporter feeds per-source outcomes into the tracker and tells the user
// about failures, at most once per interval and source.
type reporter struct {
	tracker  *metrics.Tracker
	notifier Notifier
	clock    session.Clock
	interval time.Duration

	mu       sync.Mutex
	notified map[string]time.Time
}

func newReporter(tracker *metrics.Tracker, notifier Notifier, clock session.Clock, interval time.Duration) *reporter {
	return &reporter{
		tracker:  tracker,
		notifier: notifier,
		clock:    clock,
		interval: interval,
		notified: make(map[string]time.Time),
	}
}

func (r *reporter) SourceFailed(name string, err error) {
	if r.notifier == nil {
		return
	}
	now := r.clock.Now()

	r.mu.Lock()
	last, seen := r.notified[name]
	if seen && now.Sub(last) < r.interval {
		r.mu.Unlock()
		return
	}
	r.notified[name] = now
	r.mu.Unlock()

	r.notifier.Notify(fmt.Sprintf("source %s failed: %v", name, err), buffer.LevelWarn)
}

func (r *reporter) SourceFinished(name string, outcome metrics.Outcome, elapsed time.Duration) {
	r.tracker.Record(name, outcome, elapsed)
}
