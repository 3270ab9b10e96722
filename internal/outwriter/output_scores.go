package outwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/parquet"
	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// RankedNode is one row of the score table, ranked by the node's largest
// feature score.
type RankedNode struct {
	Rank   int                `json:"rank"`
	NodeID string             `json:"node_id"`
	Max    float64            `json:"max_score"`
	Label  string             `json:"label"`
	Scores map[string]float64 `json:"scores"`
}

// RankNodes orders nodes by maximum score, highest first, breaking ties by
// node id. A positive limit keeps only the top nodes.
func RankNodes(table schema.ScoreTable, limit int) []RankedNode {
	ranked := make([]RankedNode, 0, len(table.Nodes))
	for _, node := range table.Nodes {
		top := table.MaxScore(node)
		ranked = append(ranked, RankedNode{
			NodeID: node,
			Max:    top,
			Label:  contract.GetPlainLabel(top),
			Scores: table.Values[node],
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Max != ranked[j].Max {
			return ranked[i].Max > ranked[j].Max
		}
		return ranked[i].NodeID < ranked[j].NodeID
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// WriteScoreResults outputs a pipeline result, dispatching based on the output format configured.
func WriteScoreResults(result *schema.RunResult, cfg *contract.Config) error {
	if result == nil {
		return errors.New("no result to write")
	}
	fmtFloat := createFormatters(cfg.Precision)
	ranked := RankNodes(result.Scores, cfg.ResultLimit)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeScoresJSON(w, result, ranked)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeScoresCSV(w, result.Scores.Features, ranked, fmtFloat)
		}, "Wrote CSV")
	case schema.ParquetOut:
		if cfg.OutputFile == "" {
			return errors.New("--output-file is required for parquet output")
		}
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeScoresParquet(w, result)
		}, "Wrote Parquet")
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeScoreTable(w, result, ranked, cfg, fmtFloat)
		}, "Wrote table")
	}
}

// writeScoreTable generates and writes the human-readable table.
func writeScoreTable(w io.Writer, result *schema.RunResult, ranked []RankedNode, cfg *contract.Config, fmtFloat func(float64) string) error {
	features := result.Scores.Features
	shown := features
	if maxCols := GetMaxFeatureColumns(cfg); len(shown) > maxCols {
		shown = shown[:maxCols]
	}

	table := tablewriter.NewWriter(w)
	headers := []string{"Rank", "Node", "Max", "Label"}
	for _, f := range shown {
		headers = append(headers, contract.TruncateLabel(f, featureColumnWidth-2))
	}
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, r := range ranked {
		row := []string{
			strconv.Itoa(r.Rank), // Rank
			r.NodeID,             // Node
			fmtFloat(r.Max),      // Max
			labelFor(r.Max, cfg), // Label
		}
		for _, f := range shown {
			if v, ok := r.Scores[f]; ok {
				row = append(row, fmtFloat(v))
			} else {
				row = append(row, "-")
			}
		}
		data = append(data, row)
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Showing %d of %d nodes across %d features (%s run)\n",
		len(ranked), len(result.Scores.Nodes), len(features), result.Mode); err != nil {
		return err
	}
	if hidden := len(features) - len(shown); hidden > 0 {
		if _, err := fmt.Fprintf(w, "%d more feature columns hidden; use --output csv or json for the full table\n", hidden); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Baselines: %d built, %d reused in %v. Scoring completed in %v with %d workers. Cache backend: %s\n",
		result.Built, result.Reused, result.BaselineDuration.Round(time.Millisecond),
		result.ScoringDuration.Round(time.Millisecond), cfg.Workers, cfg.BaselineBackend); err != nil {
		return err
	}
	return writeSkipped(w, result.Scores.Skipped)
}

// writeSkipped lists the features dropped from the result.
func writeSkipped(w io.Writer, skipped []schema.SkippedFeature) error {
	if len(skipped) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "Skipped %d features:\n", len(skipped)); err != nil {
		return err
	}
	for _, s := range skipped {
		if _, err := fmt.Fprintf(w, "  - %s [%s]: %s\n", s.Feature, s.Phase, s.Reason); err != nil {
			return err
		}
	}
	return nil
}

// writeScoresCSV writes one wide row per ranked node.
func writeScoresCSV(w io.Writer, features []string, ranked []RankedNode, fmtFloat func(float64) string) error {
	header := append([]string{"rank", "node_id", "max_score", "label"}, features...)
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range ranked {
			rec := []string{strconv.Itoa(r.Rank), r.NodeID, fmtFloat(r.Max), r.Label}
			for _, f := range features {
				if v, ok := r.Scores[f]; ok {
					rec = append(rec, fmtFloat(v))
				} else {
					rec = append(rec, "")
				}
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeScoresJSON writes the ranked nodes together with the run summary.
func writeScoresJSON(w io.Writer, result *schema.RunResult, ranked []RankedNode) error {
	type jsonResult struct {
		Mode               schema.RunMode          `json:"mode"`
		Nodes              []RankedNode            `json:"nodes"`
		Features           []string                `json:"features"`
		Skipped            []schema.SkippedFeature `json:"skipped"`
		Built              int                     `json:"built"`
		Reused             int                     `json:"reused"`
		BaselineDurationMs int64                   `json:"baseline_duration_ms"`
		ScoringDurationMs  int64                   `json:"scoring_duration_ms"`
		FinishedAt         time.Time               `json:"finished_at"`
	}
	skipped := result.Scores.Skipped
	if skipped == nil {
		skipped = []schema.SkippedFeature{}
	}
	return writeJSON(w, jsonResult{
		Mode:               result.Mode,
		Nodes:              ranked,
		Features:           result.Scores.Features,
		Skipped:            skipped,
		Built:              result.Built,
		Reused:             result.Reused,
		BaselineDurationMs: result.BaselineDuration.Milliseconds(),
		ScoringDurationMs:  result.ScoringDuration.Milliseconds(),
		FinishedAt:         result.FinishedAt,
	})
}

// writeScoresParquet writes every score in long form.
func writeScoresParquet(w io.Writer, result *schema.RunResult) error {
	long := result.Scores.Long()
	rows := make([]parquet.NodeScore, len(long))
	for i, s := range long {
		rows[i] = parquet.NodeScore{
			NodeID:    s.NodeID,
			Feature:   s.Feature,
			Score:     s.Score,
			Label:     contract.GetPlainLabel(s.Score),
			ScoreTime: result.FinishedAt,
		}
	}
	return parquet.WriteRows(w, rows)
}
