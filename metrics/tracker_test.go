package metrics

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RecordAggregates(t *testing.T) {
	tr := NewTracker("")
	tr.Record("lsp", OutcomeOK, 10*time.Millisecond)
	tr.Record("lsp", OutcomeTimeout, 30*time.Millisecond)
	tr.Record("lsp", OutcomeSkipped, 0)
	tr.Record("around", OutcomeEmpty, 2*time.Millisecond)

	stats := tr.Snapshot()
	require.Len(t, stats.Sources, 2)
	assert.Equal(t, "around", stats.Sources[0].Name, "sorted by name")

	lsp := stats.Sources[1]
	assert.Equal(t, 3, lsp.Calls)
	assert.Equal(t, 1, lsp.OK)
	assert.Equal(t, 1, lsp.Timeouts)
	assert.Equal(t, 1, lsp.Skipped)
	assert.InDelta(t, 20.0, lsp.AvgLatency, 0.001, "skipped calls are not timed")
	assert.InDelta(t, 30.0, lsp.MaxLatency, 0.001)
}

func TestTracker_SessionsAndAccepts(t *testing.T) {
	tr := NewTracker("")
	tr.SessionStarted()
	tr.SessionStarted()
	tr.Accepted()

	stats := tr.Snapshot()
	assert.Equal(t, 2, stats.Sessions)
	assert.Equal(t, 1, stats.Accepted)
}

func TestInstanceID_PersistedInDataDir(t *testing.T) {
	dir := t.TempDir()
	first := NewTracker(dir).Snapshot().InstanceID
	second := NewTracker(dir).Snapshot().InstanceID

	_, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
