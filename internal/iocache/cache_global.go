package iocache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/schema"
)

// Global Manager instance for main logic.
var (
	Manager   = &StoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// InitStores initializes the global manager with the baseline and run stores.
// An empty runBackend disables run tracking.
func InitStores(baselineBackend schema.DatabaseBackend, baselineConnStr string, runBackend schema.DatabaseBackend, runConnStr string) error {
	var initErr error

	initOnce.Do(func() {
		baselines, err := NewBaselineStore(baselineBackend, baselineConnStr)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize baseline cache: %w", err)
			return
		}

		var runs contract.RunStore
		if runBackend != "" {
			runs, err = NewRunStore(runBackend, runConnStr)
			if err != nil {
				_ = baselines.Close()
				initErr = fmt.Errorf("failed to initialize run store: %w", err)
				return
			}
		}

		Manager.Lock()
		defer Manager.Unlock()
		Manager.baselines = baselines
		Manager.runs = runs
	})

	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() { // called in main defer
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.baselines != nil {
			_ = Manager.baselines.Close()
		}
		if Manager.runs != nil {
			_ = Manager.runs.Close()
		}
	})
}

// ClearBaselines removes the persisted baseline cache.
// For Parquet and SQLite, it deletes the file.
// For MySQL and PostgreSQL, it drops the table.
// For NoneBackend, it does nothing.
func ClearBaselines(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.ParquetBackend:
		return removeFile(connStr, contract.GetBaselineFilePath())
	case schema.SQLiteBackend:
		return removeFile(connStr, contract.GetBaselineDBFilePath())
	case schema.MySQLBackend, schema.PostgreSQLBackend:
		return clearSQLTables(backend, connStr, baselineTable)
	case schema.NoneBackend:
		return nil
	default:
		return fmt.Errorf("unsupported baseline backend for clearing: %s", backend)
	}
}

// ClearRuns removes every tracked run.
// For SQLite, it deletes the database file.
// For MySQL and PostgreSQL, it drops the run tables and their migration history.
// For NoneBackend, it does nothing.
func ClearRuns(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		return removeFile(connStr, contract.GetRunDBFilePath())
	case schema.MySQLBackend, schema.PostgreSQLBackend:
		return clearSQLTables(backend, connStr, nodeScoresTable, scoreRunsTable, runMigrationsTable)
	case schema.NoneBackend:
		return nil
	default:
		return fmt.Errorf("unsupported run backend for clearing: %s", backend)
	}
}

// removeFile deletes path, or defaultPath when path is empty. A missing
// file is not an error.
func removeFile(path, defaultPath string) error {
	if path == "" {
		path = defaultPath
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// clearSQLTables connects to the SQL database and drops each table if it exists.
func clearSQLTables(backend schema.DatabaseBackend, connStr string, tableNames ...string) error {
	db, err := openDB(backend, connStr, "")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	for _, tableName := range tableNames {
		if err := validateTableName(tableName); err != nil {
			return err
		}
		query := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteTableName(tableName, backend))
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", tableName, err)
		}
	}
	return nil
}
