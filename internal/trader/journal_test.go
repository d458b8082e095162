package trader

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalAppendAndRecent(t *testing.T) {
	j := newTestJournal(t)

	base := time.Now().Add(-time.Minute)
	for i, state := range []CycleState{StateFlattening, StateSizing, StateOpen} {
		require.NoError(t, j.Append(CycleEvent{
			CycleID:   "cycle-1",
			Symbol:    "BTCUSDT",
			State:     state,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	events, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Newest first.
	assert.Equal(t, StateOpen, events[0].State)
	assert.Equal(t, StateFlattening, events[2].State)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, "cycle-1", events[0].CycleID)
}

func TestJournalRecentLimit(t *testing.T) {
	j := newTestJournal(t)
	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(CycleEvent{
			CycleID:   "c",
			Symbol:    "BTCUSDT",
			State:     StateSizing,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	events, err := j.Recent(2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestJournalNilSafe(t *testing.T) {
	var j *Journal
	assert.NoError(t, j.Append(CycleEvent{}))
	events, err := j.Recent(5)
	assert.NoError(t, err)
	assert.Nil(t, events)
	assert.NoError(t, j.Close())
}

func TestJournalRequiresPath(t *testing.T) {
	_, err := NewJournal("  ")
	assert.Error(t, err)
}
