package iocache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/parquet"
	"github.com/allisonaustin/cluster-vis/schema"
)

// NewBaselineStore opens the baseline cache for the given backend.
// For file backends an empty connStr selects the default path.
func NewBaselineStore(backend schema.DatabaseBackend, connStr string) (contract.BaselineStore, error) {
	switch backend {
	case schema.ParquetBackend:
		return NewParquetBaselineStore(connStr), nil
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
		return NewSQLBaselineStore(backend, connStr)
	case schema.NoneBackend:
		return NewMemoryBaselineStore(), nil
	default:
		return nil, fmt.Errorf("unsupported baseline backend: %s", backend)
	}
}

// ParquetBaselineStore keeps the cache in a single Parquet file with one
// row per feature.
type ParquetBaselineStore struct {
	mu   sync.Mutex
	path string
}

var _ contract.BaselineStore = &ParquetBaselineStore{} // Compile-time check

// NewParquetBaselineStore returns a store backed by path.
func NewParquetBaselineStore(path string) *ParquetBaselineStore {
	if path == "" {
		path = contract.GetBaselineFilePath()
	}
	return &ParquetBaselineStore{path: path}
}

// Path returns the file backing the store.
func (ps *ParquetBaselineStore) Path() string {
	return ps.path
}

// Load reads every record. A missing file is an empty cache.
func (ps *ParquetBaselineStore) Load(ctx context.Context) ([]schema.BaselineRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.load()
}

func (ps *ParquetBaselineStore) load() ([]schema.BaselineRecord, error) {
	if _, err := os.Stat(ps.path); errors.Is(err, fs.ErrNotExist) {
		return []schema.BaselineRecord{}, nil
	}
	rows, err := parquet.ReadFile[parquet.Baseline](ps.path)
	if err != nil {
		return nil, err
	}
	return parquet.ToBaselineRecords(rows), nil
}

// Save replaces the file contents. The new file is written next to the
// old one and renamed into place.
func (ps *ParquetBaselineStore) Save(ctx context.Context, records []schema.BaselineRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()

	dir := filepath.Dir(ps.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(ps.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := parquet.WriteRows(tmp, parquet.ConvertBaselineRecords(sortedRecords(records))); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary cache file: %w", err)
	}
	if err := os.Rename(tmpName, ps.path); err != nil {
		return fmt.Errorf("failed to replace cache file %q: %w", ps.path, err)
	}
	return nil
}

// GetStatus returns status information about the cache file.
func (ps *ParquetBaselineStore) GetStatus() (schema.CacheStatus, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	status := schema.CacheStatus{
		Backend:   string(schema.ParquetBackend),
		Location:  ps.path,
		Connected: true,
	}
	info, err := os.Stat(ps.path)
	if errors.Is(err, fs.ErrNotExist) {
		return status, nil
	}
	if err != nil {
		return status, fmt.Errorf("failed to stat cache file: %w", err)
	}
	status.TableSizeBytes = info.Size()

	records, err := ps.load()
	if err != nil {
		return status, err
	}
	fillCacheStatus(&status, records)
	return status, nil
}

// Close is a no-op for file storage.
func (ps *ParquetBaselineStore) Close() error {
	return nil
}

// MemoryBaselineStore keeps the cache for the lifetime of the process only.
// It backs the "none" backend.
type MemoryBaselineStore struct {
	mu      sync.Mutex
	records []schema.BaselineRecord
}

var _ contract.BaselineStore = &MemoryBaselineStore{} // Compile-time check

// NewMemoryBaselineStore returns an empty in-memory store.
func NewMemoryBaselineStore() *MemoryBaselineStore {
	return &MemoryBaselineStore{}
}

// Load returns a copy of the saved records.
func (ms *MemoryBaselineStore) Load(_ context.Context) ([]schema.BaselineRecord, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return cloneRecords(ms.records), nil
}

// Save replaces the saved records.
func (ms *MemoryBaselineStore) Save(_ context.Context, records []schema.BaselineRecord) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.records = cloneRecords(sortedRecords(records))
	return nil
}

// GetStatus returns status information about the in-memory cache.
func (ms *MemoryBaselineStore) GetStatus() (schema.CacheStatus, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	status := schema.CacheStatus{Backend: string(schema.NoneBackend), Location: "memory", Connected: true}
	fillCacheStatus(&status, ms.records)
	return status, nil
}

// Close is a no-op.
func (ms *MemoryBaselineStore) Close() error {
	return nil
}

func fillCacheStatus(status *schema.CacheStatus, records []schema.BaselineRecord) {
	status.TotalEntries = len(records)
	for _, r := range records {
		if status.LastEntryTime.IsZero() || r.CreatedAt.After(status.LastEntryTime) {
			status.LastEntryTime = r.CreatedAt
		}
		if status.OldestEntryTime.IsZero() || r.CreatedAt.Before(status.OldestEntryTime) {
			status.OldestEntryTime = r.CreatedAt
		}
	}
}

func sortedRecords(records []schema.BaselineRecord) []schema.BaselineRecord {
	return schema.NewBaselineSet(records).Records()
}

func cloneRecords(records []schema.BaselineRecord) []schema.BaselineRecord {
	out := make([]schema.BaselineRecord, len(records))
	for i, r := range records {
		r.ZScore = slices.Clone(r.ZScore)
		out[i] = r
	}
	return out
}
