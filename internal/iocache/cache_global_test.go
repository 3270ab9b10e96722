package iocache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreManager(t *testing.T) {
	baselines := NewMemoryBaselineStore()
	runs, err := NewRunStore(schema.NoneBackend, "")
	require.NoError(t, err)

	mgr := NewStoreManager(baselines, runs)
	assert.Same(t, baselines, mgr.GetBaselineStore())
	assert.Equal(t, runs, mgr.GetRunStore())

	empty := NewStoreManager(baselines, nil)
	assert.Nil(t, empty.GetRunStore())
}

func TestClearBaselinesFileBackends(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend schema.DatabaseBackend
		path    string
	}{
		{schema.ParquetBackend, filepath.Join(dir, "baselines.parquet")},
		{schema.SQLiteBackend, filepath.Join(dir, "baselines.db")},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			store, err := NewBaselineStore(tt.backend, tt.path)
			require.NoError(t, err)
			require.NoError(t, store.Save(context.Background(), sampleRecords()))
			require.NoError(t, store.Close())

			require.NoError(t, ClearBaselines(tt.backend, tt.path))
			_, err = os.Stat(tt.path)
			assert.True(t, os.IsNotExist(err))

			// Clearing twice is fine
			assert.NoError(t, ClearBaselines(tt.backend, tt.path))
		})
	}
}

func TestClearRunsSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewRunStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, ClearRuns(schema.SQLiteBackend, path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestClearUnsupported(t *testing.T) {
	assert.NoError(t, ClearBaselines(schema.NoneBackend, ""))
	assert.NoError(t, ClearRuns(schema.NoneBackend, ""))
	assert.Error(t, ClearBaselines("cassandra", ""))
	assert.Error(t, ClearRuns(schema.ParquetBackend, ""))
}
