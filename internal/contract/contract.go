// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/allisonaustin/cluster-vis/schema"
	"gonum.org/v1/gonum/mat"
)

// Engine is the multi-resolution decomposition primitive used to calibrate
// baselines and score live windows. Implementations must be safe for
// concurrent use by multiple goroutines.
type Engine interface {
	// Decompose recursively halves the column axis up to maxLevels deep and
	// fits maxCycles slow modes at each node of the resulting tree.
	Decompose(ctx context.Context, m *mat.Dense, maxLevels, maxCycles int, parallel bool) (*schema.DecompositionTree, error)

	// SplitPoints returns the ascending column boundaries produced by halving
	// [0, totalColumns) maxLevels times. Both 0 and totalColumns are included.
	SplitPoints(totalColumns, maxLevels int) []int

	// DeviationScore returns the reference score of a baseline when forBaseline
	// is set, and one deviation per comparison row otherwise. refScore is
	// required in scoring mode and ignored in baseline mode.
	DeviationScore(m *mat.Dense, splits []int, tree *schema.DecompositionTree, reference, comparison []int, refScore []float64, forBaseline bool) ([]float64, error)
}

// StoreManager defines the interface for managing persistence stores.
// This allows the storage layer to be mocked for testing.
type StoreManager interface {
	GetBaselineStore() BaselineStore
	GetRunStore() RunStore
}

// BaselineStore persists the baseline cache. Reads and writes are wholesale.
type BaselineStore interface {
	// Load returns every persisted record. A store with nothing persisted
	// yet returns an empty slice and no error.
	Load(ctx context.Context) ([]schema.BaselineRecord, error)

	// Save replaces the persisted cache with records.
	Save(ctx context.Context, records []schema.BaselineRecord) error

	// GetStatus returns status information about the store
	GetStatus() (schema.CacheStatus, error)

	// Close releases the underlying resources
	Close() error
}

// RunStore defines the interface for tracking scoring runs and their node scores.
type RunStore interface {
	// BeginRun creates a new scoring run and returns its unique ID
	BeginRun(startTime time.Time, mode schema.RunMode, configParams map[string]any) (int64, error)

	// EndRun updates the run with completion data
	EndRun(runID int64, endTime time.Time, featuresScored, featuresSkipped int) error

	// RecordNodeScores stores the scores produced by a run
	RecordNodeScores(runID int64, scoreTime time.Time, scores []schema.NodeScore) error

	// GetStatus returns status information about the run store
	GetStatus() (schema.RunStatus, error)

	// GetAllRuns returns every tracked run ordered by ID
	GetAllRuns() ([]schema.ScoreRunRecord, error)

	// GetAllNodeScores returns every tracked node score ordered by run, node and feature
	GetAllNodeScores() ([]schema.NodeScoreRecord, error)

	// Close closes the underlying connection
	Close() error
}

// ScoreSink publishes node scores to an external time-series system.
type ScoreSink interface {
	Publish(ctx context.Context, at time.Time, scores []schema.NodeScore) error
	Close()
}
