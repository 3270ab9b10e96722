package iocache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []schema.BaselineRecord {
	start := time.Date(2024, 2, 21, 10, 0, 0, 0, time.UTC)
	return []schema.BaselineRecord{
		{
			Feature: "rx_bytes", BStart: start, BEnd: start.Add(30 * time.Minute),
			VMin: 0.5, VMax: 12.25, ZScore: []float64{1.25, 0.5, 2},
			CreatedAt: start.Add(time.Hour),
		},
		{
			Feature: "cpu_load", BStart: start, BEnd: start.Add(time.Hour),
			VMin: 0, VMax: 5.21, ZScore: []float64{1},
			WindowFallback: true, RangeFallback: true,
			CreatedAt: start.Add(2 * time.Hour),
		},
	}
}

func assertSameRecords(t *testing.T, want, got []schema.BaselineRecord) {
	t.Helper()
	wantSet := schema.NewBaselineSet(want)
	require.Len(t, got, len(wantSet))
	for _, g := range got {
		w, ok := wantSet[g.Feature]
		require.True(t, ok, "unexpected feature %s", g.Feature)
		assert.True(t, w.BStart.Equal(g.BStart), "b_start of %s", g.Feature)
		assert.True(t, w.BEnd.Equal(g.BEnd), "b_end of %s", g.Feature)
		assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "created_at of %s", g.Feature)
		assert.InDelta(t, w.VMin, g.VMin, 1e-12)
		assert.InDelta(t, w.VMax, g.VMax, 1e-12)
		assert.InDeltaSlice(t, w.ZScore, g.ZScore, 1e-12)
		assert.Equal(t, w.WindowFallback, g.WindowFallback)
		assert.Equal(t, w.RangeFallback, g.RangeFallback)
	}
}

func TestBaselineStores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		backend schema.DatabaseBackend
		connStr string
	}{
		{"parquet", schema.ParquetBackend, filepath.Join(dir, "nested", "baselines.parquet")},
		{"sqlite file", schema.SQLiteBackend, filepath.Join(dir, "db", "baselines.db")},
		{"sqlite memory", schema.SQLiteBackend, ":memory:"},
		{"none", schema.NoneBackend, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewBaselineStore(tt.backend, tt.connStr)
			require.NoError(t, err)
			defer func() { _ = store.Close() }()

			// Nothing persisted yet
			got, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)

			records := sampleRecords()
			require.NoError(t, store.Save(ctx, records))

			got, err = store.Load(ctx)
			require.NoError(t, err)
			assertSameRecords(t, records, got)
			assert.Equal(t, "cpu_load", got[0].Feature, "records should be ordered by feature")

			// Save replaces wholesale
			require.NoError(t, store.Save(ctx, records[:1]))
			got, err = store.Load(ctx)
			require.NoError(t, err)
			assertSameRecords(t, records[:1], got)

			status, err := store.GetStatus()
			require.NoError(t, err)
			assert.Equal(t, string(tt.backend), status.Backend)
			assert.True(t, status.Connected)
			assert.Equal(t, 1, status.TotalEntries)
			assert.True(t, records[0].CreatedAt.Equal(status.LastEntryTime))
		})
	}
}

func TestParquetBaselineStoreDefaults(t *testing.T) {
	store := NewParquetBaselineStore("")
	assert.Equal(t, filepath.Join("cache", "baselines.parquet"), store.Path())

	missing := NewParquetBaselineStore(filepath.Join(t.TempDir(), "absent.parquet"))
	status, err := missing.GetStatus()
	require.NoError(t, err)
	assert.Zero(t, status.TotalEntries)
	assert.Zero(t, status.TableSizeBytes)
}

func TestParquetBaselineStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baselines.parquet")
	require.NoError(t, os.WriteFile(path, []byte("not parquet"), 0o644))

	_, err := NewParquetBaselineStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestParquetBaselineStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewParquetBaselineStore(filepath.Join(dir, "baselines.parquet"))
	require.NoError(t, store.Save(context.Background(), sampleRecords()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "baselines.parquet", entries[0].Name())
}

func TestBaselineStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewParquetBaselineStore(filepath.Join(t.TempDir(), "baselines.parquet"))
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Save(ctx, sampleRecords()), context.Canceled)
}

func TestMemoryBaselineStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBaselineStore()
	records := sampleRecords()
	require.NoError(t, store.Save(ctx, records))

	records[0].ZScore[0] = 99
	got, err := store.Load(ctx)
	require.NoError(t, err)
	for _, r := range got {
		if r.Feature == "rx_bytes" {
			assert.InDelta(t, 1.25, r.ZScore[0], 1e-12)
		}
	}
}

func TestNewBaselineStoreUnsupported(t *testing.T) {
	_, err := NewBaselineStore("cassandra", "")
	assert.ErrorContains(t, err, "unsupported baseline backend")
}
