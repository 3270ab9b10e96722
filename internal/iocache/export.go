package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/parquet"
)

// ExportRuns writes every tracked run and node score to two Parquet files
// named after outputFile, and reports progress to w.
func ExportRuns(store contract.RunStore, outputFile string, w io.Writer) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("run tracking is disabled")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get run status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve score runs: %w", err)
	}
	scores, err := store.GetAllNodeScores()
	if err != nil {
		return fmt.Errorf("failed to retrieve node scores: %w", err)
	}

	runsFile := outputFile + ".score_runs.parquet"
	runRows := parquet.ConvertScoreRunRecords(runs)
	if err := parquet.WriteFile(runRows, runsFile); err != nil {
		return fmt.Errorf("failed to write score runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d score runs to: %s\n", len(runRows), runsFile)

	scoresFile := outputFile + ".node_scores.parquet"
	scoreRows := parquet.ConvertNodeScoreRecords(scores, contract.GetPlainLabel)
	if err := parquet.WriteFile(scoreRows, scoresFile); err != nil {
		return fmt.Errorf("failed to write node scores: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d node scores to: %s\n", len(scoreRows), scoresFile)
	return nil
}
