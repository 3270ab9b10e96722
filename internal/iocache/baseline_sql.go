package iocache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/schema"
)

// baselineTable holds one row per feature.
const baselineTable = "baseline_cache"

// SQLBaselineStore keeps the cache in a SQL table.
type SQLBaselineStore struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	connStr string
	table   string
}

var _ contract.BaselineStore = &SQLBaselineStore{} // Compile-time check

// NewSQLBaselineStore opens the database and creates the cache table.
func NewSQLBaselineStore(backend schema.DatabaseBackend, connStr string) (*SQLBaselineStore, error) {
	if err := validateTableName(baselineTable); err != nil {
		return nil, err
	}
	db, err := openDB(backend, connStr, contract.GetBaselineDBFilePath())
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(getCreateBaselineTableQuery(baselineTable, backend)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", baselineTable, err)
	}
	return &SQLBaselineStore{db: db, backend: backend, connStr: connStr, table: baselineTable}, nil
}

// getCreateBaselineTableQuery returns the CREATE TABLE query for the backend.
func getCreateBaselineTableQuery(tableName string, backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(tableName, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				feature VARCHAR(255) NOT NULL PRIMARY KEY,
				b_start DATETIME(6) NOT NULL,
				b_end DATETIME(6) NOT NULL,
				v_min DOUBLE NOT NULL,
				v_max DOUBLE NOT NULL,
				z_score LONGTEXT NOT NULL,
				window_fallback BOOLEAN NOT NULL DEFAULT FALSE,
				range_fallback BOOLEAN NOT NULL DEFAULT FALSE,
				created_at DATETIME(6) NOT NULL
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				feature TEXT NOT NULL PRIMARY KEY,
				b_start TIMESTAMPTZ NOT NULL,
				b_end TIMESTAMPTZ NOT NULL,
				v_min DOUBLE PRECISION NOT NULL,
				v_max DOUBLE PRECISION NOT NULL,
				z_score TEXT NOT NULL,
				window_fallback BOOLEAN NOT NULL DEFAULT FALSE,
				range_fallback BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				feature TEXT NOT NULL PRIMARY KEY,
				b_start TEXT NOT NULL,
				b_end TEXT NOT NULL,
				v_min REAL NOT NULL,
				v_max REAL NOT NULL,
				z_score TEXT NOT NULL,
				window_fallback INTEGER NOT NULL DEFAULT 0,
				range_fallback INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL
			);
		`, quotedTableName)
	}
}

// Load returns every record ordered by feature.
func (ss *SQLBaselineStore) Load(ctx context.Context) ([]schema.BaselineRecord, error) {
	query := fmt.Sprintf(`SELECT feature, b_start, b_end, v_min, v_max, z_score, window_fallback, range_fallback, created_at FROM %s ORDER BY feature`,
		quoteTableName(ss.table, ss.backend))
	rows, err := ss.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query baselines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []schema.BaselineRecord{}
	for rows.Next() {
		var (
			rec                 schema.BaselineRecord
			start, end, created sqlTime
			zscore              string
		)
		if err := rows.Scan(&rec.Feature, &start, &end, &rec.VMin, &rec.VMax, &zscore, &rec.WindowFallback, &rec.RangeFallback, &created); err != nil {
			return nil, fmt.Errorf("failed to scan baseline row: %w", err)
		}
		if err := json.Unmarshal([]byte(zscore), &rec.ZScore); err != nil {
			return nil, fmt.Errorf("failed to decode z_score of %s: %w", rec.Feature, err)
		}
		rec.BStart, rec.BEnd, rec.CreatedAt = start.Time, end.Time, created.Time
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating baseline rows: %w", err)
	}
	return records, nil
}

// Save replaces the table contents in one transaction.
func (ss *SQLBaselineStore) Save(ctx context.Context, records []schema.BaselineRecord) error {
	quotedTableName := quoteTableName(ss.table, ss.backend)

	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, quotedTableName)); err != nil {
		return fmt.Errorf("failed to clear baselines: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (feature, b_start, b_end, v_min, v_max, z_score, window_fallback, range_fallback, created_at) VALUES (%s)`,
		quotedTableName, placeholders(ss.backend, 9))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare baseline insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range sortedRecords(records) {
		zscore := r.ZScore
		if zscore == nil {
			zscore = []float64{}
		}
		encoded, err := json.Marshal(zscore)
		if err != nil {
			return fmt.Errorf("failed to encode z_score of %s: %w", r.Feature, err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.Feature,
			formatTime(r.BStart, ss.backend),
			formatTime(r.BEnd, ss.backend),
			r.VMin, r.VMax, string(encoded),
			r.WindowFallback, r.RangeFallback,
			formatTime(r.CreatedAt, ss.backend),
		); err != nil {
			return fmt.Errorf("failed to insert baseline %s: %w", r.Feature, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit baselines: %w", err)
	}
	return nil
}

// GetStatus returns status information about the cache table.
func (ss *SQLBaselineStore) GetStatus() (schema.CacheStatus, error) {
	status := schema.CacheStatus{
		Backend:   string(ss.backend),
		Location:  ss.location(),
		Connected: true,
	}
	quotedTableName := quoteTableName(ss.table, ss.backend)

	row := ss.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quotedTableName))
	if err := row.Scan(&status.TotalEntries); err != nil {
		return status, fmt.Errorf("failed to count baselines: %w", err)
	}
	if status.TotalEntries > 0 {
		var newest, oldest sqlTime
		row = ss.db.QueryRow(fmt.Sprintf(`SELECT MAX(created_at), MIN(created_at) FROM %s`, quotedTableName))
		if err := row.Scan(&newest, &oldest); err != nil {
			return status, fmt.Errorf("failed to get entry times: %w", err)
		}
		status.LastEntryTime, status.OldestEntryTime = newest.Time, oldest.Time
	}
	status.TableSizeBytes = tableSizeBytes(ss.db, ss.backend, ss.connStr, ss.table, status.TotalEntries)
	return status, nil
}

func (ss *SQLBaselineStore) location() string {
	switch ss.backend {
	case schema.SQLiteBackend:
		if ss.connStr == "" {
			return contract.GetBaselineDBFilePath()
		}
		return ss.connStr
	default:
		return fmt.Sprintf("%s table %s", ss.backend, ss.table)
	}
}

// Close closes the underlying connection.
func (ss *SQLBaselineStore) Close() error {
	if ss.db != nil {
		return ss.db.Close()
	}
	return nil
}
