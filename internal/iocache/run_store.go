package iocache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/schema"
)

// Table names for run tracking.
const (
	scoreRunsTable  = "clustervis_score_runs"
	nodeScoresTable = "clustervis_node_scores"
)

// RunStoreImpl implements the RunStore interface.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	connStr string
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore creates a new RunStore with the specified backend and
// migrates its tables to the latest version.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (contract.RunStore, error) {
	switch backend {
	case schema.NoneBackend:
		// Return a no-op store for disabled tracking
		return &RunStoreImpl{backend: backend}, nil
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}

	db, err := openDB(backend, connStr, contract.GetRunDBFilePath())
	if err != nil {
		return nil, err
	}
	if err := ensureRunSchema(context.Background(), db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create run tables: %w", err)
	}
	return &RunStoreImpl{db: db, backend: backend, connStr: connStr}, nil
}

func (rs *RunStoreImpl) disabled() bool {
	return rs.backend == schema.NoneBackend || rs.db == nil
}

// BeginRun creates a new scoring run and returns its unique ID.
func (rs *RunStoreImpl) BeginRun(startTime time.Time, mode schema.RunMode, configParams map[string]any) (int64, error) {
	if rs.disabled() {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	quotedTableName := quoteTableName(scoreRunsTable, rs.backend)
	args := []any{string(mode), formatTime(startTime, rs.backend), string(configJSON)}

	var runID int64
	switch rs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (mode, start_time, config_params) VALUES ($1, $2, $3) RETURNING run_id`, quotedTableName)
		err = rs.db.QueryRow(query, args...).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (mode, start_time, config_params) VALUES (?, ?, ?)`, quotedTableName)
		var result sql.Result
		result, err = rs.db.Exec(query, args...)
		if err == nil {
			runID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert score run: %w", err)
	}
	return runID, nil
}

// EndRun updates the run with completion data.
func (rs *RunStoreImpl) EndRun(runID int64, endTime time.Time, featuresScored, featuresSkipped int) error {
	if rs.disabled() {
		return nil
	}

	quotedTableName := quoteTableName(scoreRunsTable, rs.backend)
	var startTime sqlTime
	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, quotedTableName, placeholder(rs.backend, 1))
	if err := rs.db.QueryRow(query, runID).Scan(&startTime); err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}

	durationMs := endTime.Sub(startTime.Time).Milliseconds()
	update := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, features_scored = %s, features_skipped = %s WHERE run_id = %s`,
		quotedTableName,
		placeholder(rs.backend, 1), placeholder(rs.backend, 2), placeholder(rs.backend, 3),
		placeholder(rs.backend, 4), placeholder(rs.backend, 5))
	if _, err := rs.db.Exec(update, formatTime(endTime, rs.backend), durationMs, featuresScored, featuresSkipped, runID); err != nil {
		return fmt.Errorf("failed to update score run: %w", err)
	}
	return nil
}

// RecordNodeScores stores the scores of a run in one transaction.
func (rs *RunStoreImpl) RecordNodeScores(runID int64, scoreTime time.Time, scores []schema.NodeScore) error {
	if rs.disabled() || len(scores) == 0 {
		return nil
	}

	tx, err := rs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`INSERT INTO %s (run_id, node_id, feature, score, score_time) VALUES (%s)`,
		quoteTableName(nodeScoresTable, rs.backend), placeholders(rs.backend, 5))
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare node score insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	at := formatTime(scoreTime, rs.backend)
	for _, s := range scores {
		if _, err := stmt.Exec(runID, s.NodeID, s.Feature, s.Score, at); err != nil {
			return fmt.Errorf("failed to insert score for %s/%s: %w", s.NodeID, s.Feature, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit node scores: %w", err)
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStatus, error) {
	status := schema.RunStatus{
		Backend:    string(rs.backend),
		TableSizes: make(map[string]int64),
	}
	if rs.disabled() {
		return status, nil
	}
	status.Connected = true

	runsTable := quoteTableName(scoreRunsTable, rs.backend)
	scoresTable := quoteTableName(nodeScoresTable, rs.backend)

	if err := rs.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, runsTable)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to count runs: %w", err)
	}
	var scoreRows int
	if err := rs.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, scoresTable)).Scan(&scoreRows); err != nil {
		return status, fmt.Errorf("failed to count node scores: %w", err)
	}

	if status.TotalRuns > 0 {
		var last, oldest sqlTime
		row := rs.db.QueryRow(fmt.Sprintf(`SELECT run_id, start_time FROM %s ORDER BY run_id DESC LIMIT 1`, runsTable))
		if err := row.Scan(&status.LastRunID, &last); err != nil {
			return status, fmt.Errorf("failed to get last run: %w", err)
		}
		if err := rs.db.QueryRow(fmt.Sprintf(`SELECT MIN(start_time) FROM %s`, runsTable)).Scan(&oldest); err != nil {
			return status, fmt.Errorf("failed to get oldest run: %w", err)
		}
		status.LastRunTime, status.OldestRunTime = last.Time, oldest.Time

		if err := rs.db.QueryRow(fmt.Sprintf(`SELECT COUNT(DISTINCT node_id) FROM %s`, scoresTable)).Scan(&status.TotalNodesScored); err != nil {
			return status, fmt.Errorf("failed to count scored nodes: %w", err)
		}
	}

	status.TableSizes[scoreRunsTable] = tableSizeBytes(rs.db, rs.backend, rs.connStr, scoreRunsTable, status.TotalRuns)
	status.TableSizes[nodeScoresTable] = tableSizeBytes(rs.db, rs.backend, rs.connStr, nodeScoresTable, scoreRows)
	return status, nil
}

// GetAllRuns returns every tracked run ordered by ID.
func (rs *RunStoreImpl) GetAllRuns() ([]schema.ScoreRunRecord, error) {
	if rs.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT run_id, mode, start_time, end_time, run_duration_ms, features_scored, features_skipped, config_params FROM %s ORDER BY run_id`,
		quoteTableName(scoreRunsTable, rs.backend))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query score runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []schema.ScoreRunRecord
	for rows.Next() {
		var (
			rec        schema.ScoreRunRecord
			start, end sqlTime
			duration   sql.NullInt32
			params     sql.NullString
		)
		if err := rows.Scan(&rec.RunID, &rec.Mode, &start, &end, &duration, &rec.FeaturesScored, &rec.FeaturesSkipped, &params); err != nil {
			return nil, fmt.Errorf("failed to scan score run: %w", err)
		}
		rec.StartTime = start.Time
		if end.Valid {
			t := end.Time
			rec.EndTime = &t
		}
		if duration.Valid {
			d := duration.Int32
			rec.RunDurationMs = &d
		}
		if params.Valid {
			p := params.String
			rec.ConfigParams = &p
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score runs: %w", err)
	}
	return records, nil
}

// GetAllNodeScores returns every tracked node score ordered by run, node and feature.
func (rs *RunStoreImpl) GetAllNodeScores() ([]schema.NodeScoreRecord, error) {
	if rs.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT run_id, node_id, feature, score, score_time FROM %s ORDER BY run_id, node_id, feature`,
		quoteTableName(nodeScoresTable, rs.backend))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query node scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []schema.NodeScoreRecord
	for rows.Next() {
		var rec schema.NodeScoreRecord
		var at sqlTime
		if err := rows.Scan(&rec.RunID, &rec.NodeID, &rec.Feature, &rec.Score, &at); err != nil {
			return nil, fmt.Errorf("failed to scan node score: %w", err)
		}
		rec.ScoreTime = at.Time
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node scores: %w", err)
	}
	return records, nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}
