package detect

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkitt/medwatch/internal/snapshot"
	"github.com/medkitt/medwatch/internal/types"
)

func newTestDetector(t *testing.T) (*Detector, *snapshot.Store) {
	t.Helper()
	dir := t.TempDir()
	snaps, err := snapshot.New(filepath.Join(dir, "hashes"), filepath.Join(dir, "raw"))
	require.NoError(t, err)
	return New(snaps), snaps
}

func TestDetectFirstRun(t *testing.T) {
	det, snaps := newTestDetector(t)

	m, err := det.Detect("cdc_syphilis", &types.Payload{Content: "Treatment: Drug A 500mg"})
	require.NoError(t, err)

	assert.True(t, m.Changed, "first run with content is always a change")
	assert.Equal(t, 1.0, m.Magnitude, "no previous text means total change")
	assert.Len(t, m.Fingerprint, 64)
	assert.Empty(t, m.PreviousFingerprint)

	fp, ok := snaps.Fingerprint("cdc_syphilis")
	require.True(t, ok)
	assert.Equal(t, m.Fingerprint, fp)
}

func TestDetectFirstRunEmptyPayload(t *testing.T) {
	det, _ := newTestDetector(t)

	m, err := det.Detect("cdc_syphilis", &types.Payload{})
	require.NoError(t, err)

	assert.False(t, m.Changed, "empty payload on first run is not a change")
	assert.Equal(t, 0.0, m.Magnitude)
}

func TestDetectIdenticalRefetch(t *testing.T) {
	det, _ := newTestDetector(t)
	payload := &types.Payload{Content: "Treatment: Drug A 500mg"}

	first, err := det.Detect("cdc_syphilis", payload)
	require.NoError(t, err)

	second, err := det.Detect("cdc_syphilis", payload)
	require.NoError(t, err)

	assert.False(t, second.Changed)
	assert.Equal(t, 0.0, second.Magnitude)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Fingerprint, second.PreviousFingerprint)
}

func TestDetectIgnoresFetchTimestamp(t *testing.T) {
	det, _ := newTestDetector(t)

	_, err := det.Detect("cdc_syphilis", &types.Payload{
		Content:   "Treatment: Drug A 500mg",
		FetchedAt: time.Date(2026, 7, 12, 6, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	m, err := det.Detect("cdc_syphilis", &types.Payload{
		Content:   "Treatment: Drug A 500mg",
		FetchedAt: time.Date(2026, 7, 13, 6, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.False(t, m.Changed, "refetch time alone is not a content change")
}

func TestDetectContentChange(t *testing.T) {
	det, _ := newTestDetector(t)

	_, err := det.Detect("cdc_syphilis", &types.Payload{Content: "Treatment: Drug A 500mg"})
	require.NoError(t, err)

	m, err := det.Detect("cdc_syphilis", &types.Payload{Content: "Treatment: Drug B 1000mg"})
	require.NoError(t, err)

	assert.True(t, m.Changed)
	assert.GreaterOrEqual(t, m.Magnitude, 0.4)
	assert.LessOrEqual(t, m.Magnitude, 0.6)
}

func TestDetectArchivesEveryRun(t *testing.T) {
	det, snaps := newTestDetector(t)

	_, err := det.Detect("fda_alerts", &types.Payload{Content: "first"})
	require.NoError(t, err)
	_, err = det.Detect("fda_alerts", &types.Payload{Content: "second"})
	require.NoError(t, err)

	latest, ok := snaps.Latest("fda_alerts")
	require.True(t, ok)
	assert.Equal(t, "second", latest.Content)
}
