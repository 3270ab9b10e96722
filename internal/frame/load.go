package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/parquet"
	"github.com/allisonaustin/cluster-vis/schema"
)

// ErrMissingColumn is returned when an input lacks nodeId or timestamp.
var ErrMissingColumn = errors.New("missing required column")

// LoadFile reads an observation table from a CSV or Parquet file,
// dropping the excluded feature columns.
func LoadFile(path string, exclude []string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return LoadParquet(path, exclude)
	case ".csv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		return LoadCSV(f, exclude)
	default:
		return nil, fmt.Errorf("unsupported input format %q: expected .csv or .parquet", filepath.Ext(path))
	}
}

// LoadCSV reads a wide CSV with nodeId, timestamp and one column per feature.
// Empty or non-numeric cells read as 0. Unnamed index columns are dropped.
func LoadCSV(r io.Reader, exclude []string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty input: %w", ErrMissingColumn)
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	nodeCol, tsCol := -1, -1
	var featureCols []int
	var features []string
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch {
		case name == schema.NodeIDColumn:
			nodeCol = i
		case name == schema.TimestampColumn:
			tsCol = i
		case name == "" || strings.HasPrefix(name, "Unnamed"):
			// index columns written by dataframe exports
		case slices.Contains(exclude, name):
		default:
			featureCols = append(featureCols, i)
			features = append(features, name)
		}
	}
	if nodeCol < 0 {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, schema.NodeIDColumn)
	}
	if tsCol < 0 {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, schema.TimestampColumn)
	}

	table := NewTable(features)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := contract.ParseTimestamp(record[tsCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values := make([]float64, len(featureCols))
		for j, c := range featureCols {
			values[j] = parseCell(record[c])
		}
		if err := table.Append(strings.TrimSpace(record[nodeCol]), ts, values); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return table, nil
}

// LoadParquet reads long-format rows (node_id, timestamp, feature, value)
// and widens them into a table. Features absent for a row read as NaN and
// are filled when the feature is pivoted.
func LoadParquet(path string, exclude []string) (*Table, error) {
	rows, err := parquet.ReadObservations(path)
	if err != nil {
		return nil, err
	}

	var features []string
	featureCol := make(map[string]int)
	for _, r := range rows {
		if slices.Contains(exclude, r.Feature) {
			continue
		}
		if _, ok := featureCol[r.Feature]; !ok {
			featureCol[r.Feature] = len(features)
			features = append(features, r.Feature)
		}
	}

	table := NewTable(features)
	rowOf := make(map[string]int)
	for _, r := range rows {
		c, ok := featureCol[r.Feature]
		if !ok {
			continue
		}
		key := r.NodeID + "\x00" + strconv.FormatInt(r.Timestamp.UnixNano(), 10)
		i, ok := rowOf[key]
		if !ok {
			values := make([]float64, len(features))
			for j := range values {
				values[j] = math.NaN()
			}
			i = len(table.Rows)
			rowOf[key] = i
			table.Rows = append(table.Rows, Observation{NodeID: r.NodeID, Timestamp: r.Timestamp.UTC(), Values: values})
		}
		table.Rows[i].Values[c] = r.Value
	}
	return table, nil
}

func parseCell(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}
