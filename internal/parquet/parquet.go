// Package parquet provides data structures and functions for reading and writing
// clustervis observations, baselines and scores using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/parquet-go/parquet-go"
)

// Observation is one long-format telemetry reading.
type Observation struct {
	NodeID    string    `parquet:"node_id,snappy,dict"`
	Timestamp time.Time `parquet:"timestamp,snappy"`
	Feature   string    `parquet:"feature,snappy,dict"`
	Value     float64   `parquet:"value,snappy"`
}

// Baseline is one cached baseline record. One row per feature; the
// reference score is stored as a list column.
type Baseline struct {
	// Feature is the monitored metric this baseline describes
	Feature string `parquet:"feature,snappy"`

	// BStart and BEnd bound the baseline window
	BStart time.Time `parquet:"b_start,snappy"`
	BEnd   time.Time `parquet:"b_end,snappy"`

	// VMin and VMax bound the inlier value range
	VMin float64 `parquet:"v_min,snappy"`
	VMax float64 `parquet:"v_max,snappy"`

	// ZScore is the reference score from the decomposition engine
	ZScore []float64 `parquet:"z_score,list"`

	WindowFallback bool      `parquet:"window_fallback"`
	RangeFallback  bool      `parquet:"range_fallback"`
	CreatedAt      time.Time `parquet:"created_at,snappy"`
}

// ScoreRun represents a single tracked scoring run.
// This struct maps to the clustervis_score_runs database table.
type ScoreRun struct {
	RunID           int64      `parquet:"run_id,snappy"`
	Mode            string     `parquet:"mode,snappy"`
	StartTime       time.Time  `parquet:"start_time,snappy"`
	EndTime         *time.Time `parquet:"end_time,optional,snappy"`
	RunDurationMs   *int32     `parquet:"run_duration_ms,optional,snappy"`
	FeaturesScored  int32      `parquet:"features_scored,snappy"`
	FeaturesSkipped int32      `parquet:"features_skipped,snappy"`
	ConfigParams    *string    `parquet:"config_params,optional,snappy"`
}

// NodeScore is one (node, feature) deviation. RunID is zero for scores
// written straight from a pipeline call rather than exported from the run store.
type NodeScore struct {
	RunID     int64     `parquet:"run_id,snappy"`
	NodeID    string    `parquet:"node_id,snappy,dict"`
	Feature   string    `parquet:"feature,snappy,dict"`
	Score     float64   `parquet:"score,snappy"`
	Label     string    `parquet:"label,snappy,dict"`
	ScoreTime time.Time `parquet:"score_time,snappy"`
}

// WriteRows writes rows to w as a single Parquet file. The schema is
// derived from the struct tags of T.
func WriteRows[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteFile creates outputPath and writes rows to it.
func WriteFile[T any](rows []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteRows(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ReadFile reads every row of a Parquet file into T.
func ReadFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file %s: %w", path, err)
	}
	return rows, nil
}

// ReadObservations reads long-format telemetry.
func ReadObservations(path string) ([]Observation, error) {
	return ReadFile[Observation](path)
}

// ConvertBaselineRecords converts schema records to Parquet rows.
func ConvertBaselineRecords(records []schema.BaselineRecord) []Baseline {
	out := make([]Baseline, len(records))
	for i, r := range records {
		out[i] = Baseline{
			Feature:        r.Feature,
			BStart:         r.BStart,
			BEnd:           r.BEnd,
			VMin:           r.VMin,
			VMax:           r.VMax,
			ZScore:         r.ZScore,
			WindowFallback: r.WindowFallback,
			RangeFallback:  r.RangeFallback,
			CreatedAt:      r.CreatedAt,
		}
	}
	return out
}

// ToBaselineRecords converts Parquet rows back to schema records.
func ToBaselineRecords(rows []Baseline) []schema.BaselineRecord {
	out := make([]schema.BaselineRecord, len(rows))
	for i, r := range rows {
		out[i] = schema.BaselineRecord{
			Feature:        r.Feature,
			BStart:         r.BStart.UTC(),
			BEnd:           r.BEnd.UTC(),
			VMin:           r.VMin,
			VMax:           r.VMax,
			ZScore:         r.ZScore,
			WindowFallback: r.WindowFallback,
			RangeFallback:  r.RangeFallback,
			CreatedAt:      r.CreatedAt.UTC(),
		}
	}
	return out
}

// ConvertScoreRunRecords converts schema.ScoreRunRecord slice to ScoreRun slice.
func ConvertScoreRunRecords(records []schema.ScoreRunRecord) []ScoreRun {
	out := make([]ScoreRun, len(records))
	for i, r := range records {
		out[i] = ScoreRun{
			RunID:           r.RunID,
			Mode:            r.Mode,
			StartTime:       r.StartTime,
			EndTime:         r.EndTime,
			RunDurationMs:   r.RunDurationMs,
			FeaturesScored:  r.FeaturesScored,
			FeaturesSkipped: r.FeaturesSkipped,
			ConfigParams:    r.ConfigParams,
		}
	}
	return out
}

// ConvertNodeScoreRecords converts tracked node scores to Parquet rows.
func ConvertNodeScoreRecords(records []schema.NodeScoreRecord, label func(float64) string) []NodeScore {
	out := make([]NodeScore, len(records))
	for i, r := range records {
		out[i] = NodeScore{
			RunID:     r.RunID,
			NodeID:    r.NodeID,
			Feature:   r.Feature,
			Score:     r.Score,
			Label:     label(r.Score),
			ScoreTime: r.ScoreTime,
		}
	}
	return out
}
