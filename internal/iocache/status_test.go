package iocache

import (
	"bytes"
	"testing"
	"time"

	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/stretchr/testify/assert"
)

func TestPrintBaselineStatus(t *testing.T) {
	ts := time.Date(2024, 2, 21, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	PrintBaselineStatus(&buf, schema.CacheStatus{
		Backend: "parquet", Location: "cache/baselines.parquet", Connected: true,
		TotalEntries: 3, LastEntryTime: ts, OldestEntryTime: ts, TableSizeBytes: 2048,
	})
	out := buf.String()
	assert.Contains(t, out, "Baseline Backend: parquet")
	assert.Contains(t, out, "Total Baselines: 3")
	assert.Contains(t, out, "Newest Baseline: 2024-02-21 10:00:00")
	assert.Contains(t, out, "Size: 2048 bytes")

	buf.Reset()
	PrintBaselineStatus(&buf, schema.CacheStatus{Backend: "mysql"})
	assert.NotContains(t, buf.String(), "Total Baselines")
}

func TestPrintRunStatus(t *testing.T) {
	ts := time.Date(2024, 2, 21, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	PrintRunStatus(&buf, schema.RunStatus{
		Backend: "sqlite", Connected: true, TotalRuns: 2, LastRunID: 2,
		LastRunTime: ts, OldestRunTime: ts, TotalNodesScored: 5,
		TableSizes: map[string]int64{nodeScoresTable: 20, scoreRunsTable: 10},
	})
	out := buf.String()
	assert.Contains(t, out, "Total Runs: 2")
	assert.Contains(t, out, "Total Nodes Scored: 5")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(nodeScoresTable)), bytes.Index(buf.Bytes(), []byte(scoreRunsTable)))
}
