package schema

import "time"

// CacheStatus represents the status of the baseline cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Location        string    `json:"location"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// RunStatus represents the status of the run tracking store.
type RunStatus struct {
	Backend          string           `json:"backend"`
	Connected        bool             `json:"connected"`
	TotalRuns        int              `json:"total_runs"`
	LastRunID        int64            `json:"last_run_id"`
	LastRunTime      time.Time        `json:"last_run_time"`
	OldestRunTime    time.Time        `json:"oldest_run_time"`
	TotalNodesScored int              `json:"total_nodes_scored"`
	TableSizes       map[string]int64 `json:"table_sizes"`
}

// ScoreRunRecord represents a row from the clustervis_score_runs table.
type ScoreRunRecord struct {
	RunID           int64
	Mode            string
	StartTime       time.Time
	EndTime         *time.Time
	RunDurationMs   *int32
	FeaturesScored  int32
	FeaturesSkipped int32
	ConfigParams    *string
}

// NodeScoreRecord represents a row from the clustervis_node_scores table.
type NodeScoreRecord struct {
	RunID     int64
	NodeID    string
	Feature   string
	Score     float64
	ScoreTime time.Time
}
