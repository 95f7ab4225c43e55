package runstatus

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkitt/medwatch/internal/types"
)

func runAt(t0 time.Time, i int, success bool) *types.RunResult {
	r := &types.RunResult{
		Timestamp:        t0.Add(time.Duration(i) * time.Hour),
		Success:          success,
		SourcesProcessed: 3,
		ChangesDetected:  i,
	}
	if !success {
		r.Errors = []string{"fetch failed for cdc_std"}
	}
	return r
}

func TestRecordRunCounters(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "run_status.json"))
	t0 := time.Date(2026, 7, 1, 6, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordRun(runAt(t0, 0, true)))
	require.NoError(t, store.RecordRun(runAt(t0, 1, false)))
	require.NoError(t, store.RecordRun(runAt(t0, 2, true)))

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, st.RunCount)
	assert.Equal(t, 1, st.ErrorCount)
	assert.Equal(t, t0, st.FirstRun)
	assert.Equal(t, t0.Add(2*time.Hour), st.LastRun)
	assert.Equal(t, t0.Add(2*time.Hour), st.LastSuccess)
	assert.Equal(t, "fetch failed for cdc_std", st.LastError)
}

func TestHistoryKeepsNewestTen(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "run_status.json"))
	t0 := time.Date(2026, 7, 1, 6, 0, 0, 0, time.UTC)

	const runs = 15
	for i := 0; i < runs; i++ {
		require.NoError(t, store.RecordRun(runAt(t0, i, true)))
	}

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, runs, st.RunCount)
	require.Len(t, st.RecentRuns, 10)

	// Oldest five dropped; remainder in chronological order.
	for j, rec := range st.RecentRuns {
		assert.Equal(t, t0.Add(time.Duration(j+5)*time.Hour), rec.Timestamp)
	}
}

func TestLoadMissingFileIsZero(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "run_status.json"))
	st, err := store.Load()
	require.NoError(t, err)
	assert.Zero(t, st.RunCount)
	assert.True(t, st.FirstRun.IsZero())
	assert.Empty(t, st.RecentRuns)
}
