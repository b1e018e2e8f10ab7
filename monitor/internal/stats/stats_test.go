package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCountsAndRate(t *testing.T) {
	tracker := New(time.Minute)
	now := time.Now()

	for i := 0; i < 18; i++ {
		tracker.ObserveMessage("market_data", now)
	}
	tracker.ObserveError("market_data", now)
	tracker.ObserveError("market_data", now)

	samples := tracker.Snapshot(now)
	require.Len(t, samples, 1)
	assert.Equal(t, int64(20), samples[0].Messages)
	assert.Equal(t, int64(2), samples[0].Errors)
	assert.InDelta(t, 0.1, samples[0].ErrorRate, 1e-9)
}

func TestWindowPrunesOldBuckets(t *testing.T) {
	tracker := New(time.Minute)
	old := time.Now().Add(-2 * time.Minute)
	now := time.Now()

	tracker.ObserveMessage("execution", old)
	tracker.ObserveMessage("execution", now)

	samples := tracker.Snapshot(now)
	require.Len(t, samples, 1)
	assert.Equal(t, int64(1), samples[0].Messages)
}

func TestHeartbeatLatencyEWMA(t *testing.T) {
	tracker := New(time.Minute)
	now := time.Now()

	tracker.ObserveHeartbeat("risk_management", now.Add(-100*time.Millisecond), now)
	samples := tracker.Snapshot(now)
	require.Len(t, samples, 1)
	assert.InDelta(t, 100.0, samples[0].LatencyMS, 0.5)

	// 0.3*200 + 0.7*100 = 130
	tracker.ObserveHeartbeat("risk_management", now.Add(-200*time.Millisecond), now)
	samples = tracker.Snapshot(now)
	assert.InDelta(t, 130.0, samples[0].LatencyMS, 0.5)

	assert.Equal(t, now, samples[0].LastHeartbeat)
}

func TestSnapshotSorted(t *testing.T) {
	tracker := New(time.Minute)
	now := time.Now()

	tracker.ObserveMessage("risk_management", now)
	tracker.ObserveMessage("execution", now)

	samples := tracker.Snapshot(now)
	require.Len(t, samples, 2)
	assert.Equal(t, "execution", samples[0].Agent)
	assert.Equal(t, "risk_management", samples[1].Agent)
}
