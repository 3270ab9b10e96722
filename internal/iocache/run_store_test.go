package iocache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStoreLifecycle(t *testing.T) {
	store, err := NewRunStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	start := time.Date(2024, 2, 21, 10, 0, 0, 0, time.UTC)
	runID, err := store.BeginRun(start, schema.CachedRun, map[string]any{"workers": 4})
	require.NoError(t, err)
	assert.Positive(t, runID)

	scores := []schema.NodeScore{
		{NodeID: "node-a", Feature: "rx_bytes", Score: 0.4},
		{NodeID: "node-b", Feature: "rx_bytes", Score: 3.2},
		{NodeID: "node-b", Feature: "cpu_load", Score: 1.1},
	}
	end := start.Add(1500 * time.Millisecond)
	require.NoError(t, store.RecordNodeScores(runID, end, scores))
	require.NoError(t, store.EndRun(runID, end, 2, 1))

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, runID, run.RunID)
	assert.Equal(t, "cached", run.Mode)
	assert.True(t, start.Equal(run.StartTime))
	require.NotNil(t, run.EndTime)
	assert.True(t, end.Equal(*run.EndTime))
	require.NotNil(t, run.RunDurationMs)
	assert.Equal(t, int32(1500), *run.RunDurationMs)
	assert.Equal(t, int32(2), run.FeaturesScored)
	assert.Equal(t, int32(1), run.FeaturesSkipped)
	require.NotNil(t, run.ConfigParams)
	var params map[string]any
	require.NoError(t, json.Unmarshal([]byte(*run.ConfigParams), &params))
	assert.InDelta(t, 4.0, params["workers"], 1e-12)

	got, err := store.GetAllNodeScores()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "node-a", got[0].NodeID)
	assert.Equal(t, "cpu_load", got[1].Feature, "scores should be ordered by node then feature")
	assert.InDelta(t, 3.2, got[2].Score, 1e-12)
	assert.True(t, end.Equal(got[2].ScoreTime))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.TotalRuns)
	assert.Equal(t, runID, status.LastRunID)
	assert.Equal(t, 2, status.TotalNodesScored)
	assert.Contains(t, status.TableSizes, scoreRunsTable)
	assert.Contains(t, status.TableSizes, nodeScoresTable)
}

func TestRunStoreOpenRun(t *testing.T) {
	store, err := NewRunStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.BeginRun(time.Now(), schema.OverrideRun, nil)
	require.NoError(t, err)

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].EndTime)
	assert.Nil(t, runs[0].RunDurationMs)
}

func TestRunStoreEndUnknownRun(t *testing.T) {
	store, err := NewRunStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.Error(t, store.EndRun(42, time.Now(), 0, 0))
}

func TestRunStoreDuplicateScore(t *testing.T) {
	store, err := NewRunStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	runID, err := store.BeginRun(time.Now(), schema.CachedRun, nil)
	require.NoError(t, err)
	dup := []schema.NodeScore{
		{NodeID: "node-a", Feature: "rx", Score: 1},
		{NodeID: "node-a", Feature: "rx", Score: 2},
	}
	assert.Error(t, store.RecordNodeScores(runID, time.Now(), dup))

	// The failed batch is rolled back as a whole
	got, err := store.GetAllNodeScores()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRunStoreNoneBackend(t *testing.T) {
	store, err := NewRunStore(schema.NoneBackend, "")
	require.NoError(t, err)

	runID, err := store.BeginRun(time.Now(), schema.CachedRun, nil)
	require.NoError(t, err)
	assert.Zero(t, runID)
	assert.NoError(t, store.RecordNodeScores(runID, time.Now(), []schema.NodeScore{{NodeID: "n", Feature: "f"}}))
	assert.NoError(t, store.EndRun(runID, time.Now(), 1, 0))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, store.Close())
}

func TestNewRunStoreUnsupported(t *testing.T) {
	_, err := NewRunStore(schema.ParquetBackend, "")
	assert.ErrorContains(t, err, "unsupported backend")
}
