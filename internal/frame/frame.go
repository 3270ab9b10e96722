// Package frame holds the long-format observation table and the per-feature
// node x time matrices derived from it.
package frame

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"
)

// Observation is one (node, timestamp) row with a value per feature.
// NaN marks a missing reading.
type Observation struct {
	NodeID    string
	Timestamp time.Time
	Values    []float64
}

// Table is the observation table: wide across features, long across
// nodes and timestamps. Values of every row align with Features.
type Table struct {
	Features []string
	Rows     []Observation

	index map[string]int
}

// NewTable returns an empty table over the given feature columns.
func NewTable(features []string) *Table {
	t := &Table{Features: slices.Clone(features)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Features))
	for i, f := range t.Features {
		t.index[f] = i
	}
}

// Append adds a row. values must align with the table's features.
func (t *Table) Append(node string, ts time.Time, values []float64) error {
	if len(values) != len(t.Features) {
		return fmt.Errorf("row for node %s has %d values, expected %d", node, len(values), len(t.Features))
	}
	t.Rows = append(t.Rows, Observation{NodeID: node, Timestamp: ts, Values: values})
	return nil
}

// Empty reports whether the table has no rows or no features.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0 || len(t.Features) == 0
}

// FeatureIndex returns the column of a feature.
func (t *Table) FeatureIndex(feature string) (int, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[feature]
	return i, ok
}

// HasFeature reports whether the table carries a feature column.
func (t *Table) HasFeature(feature string) bool {
	_, ok := t.FeatureIndex(feature)
	return ok
}

// FeatureValues returns the feature's non-missing readings in row order.
func (t *Table) FeatureValues(feature string) []float64 {
	col, ok := t.FeatureIndex(feature)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		if v := r.Values[col]; !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Nodes returns the unique node ids in first-seen order.
func (t *Table) Nodes() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.Rows {
		if _, ok := seen[r.NodeID]; !ok {
			seen[r.NodeID] = struct{}{}
			out = append(out, r.NodeID)
		}
	}
	return out
}

// Timestamps returns the unique timestamps in chronological order.
func (t *Table) Timestamps() []time.Time {
	seen := make(map[int64]struct{})
	var out []time.Time
	for _, r := range t.Rows {
		k := r.Timestamp.UnixNano()
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, r.Timestamp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Filter returns a table restricted to the given nodes and features.
// Empty selections keep everything. Unknown features are ignored.
func (t *Table) Filter(nodes, features []string) *Table {
	cols := make([]int, 0, len(t.Features))
	var names []string
	if len(features) == 0 {
		for i, f := range t.Features {
			cols = append(cols, i)
			names = append(names, f)
		}
	} else {
		for _, f := range features {
			if i, ok := t.FeatureIndex(f); ok && !slices.Contains(names, f) {
				cols = append(cols, i)
				names = append(names, f)
			}
		}
	}

	keep := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		keep[n] = struct{}{}
	}

	out := NewTable(names)
	for _, r := range t.Rows {
		if len(keep) > 0 {
			if _, ok := keep[r.NodeID]; !ok {
				continue
			}
		}
		values := make([]float64, len(cols))
		for j, c := range cols {
			values[j] = r.Values[c]
		}
		out.Rows = append(out.Rows, Observation{NodeID: r.NodeID, Timestamp: r.Timestamp, Values: values})
	}
	return out
}

// Without drops the named feature columns.
func (t *Table) Without(features []string) *Table {
	var keep []string
	for _, f := range t.Features {
		if !slices.Contains(features, f) {
			keep = append(keep, f)
		}
	}
	if len(keep) == len(t.Features) {
		return t
	}
	return t.Filter(nil, keep)
}

// Window returns the rows whose timestamp lies in [start, end].
func (t *Table) Window(start, end time.Time) *Table {
	out := NewTable(t.Features)
	for _, r := range t.Rows {
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// Pivot builds the node x time matrix of one feature. Rows follow the
// first-seen node order and columns are chronological. Gaps are filled
// forward then backward along each row; a node with no reading at all
// is filled with 0. A later duplicate (node, timestamp) replaces an
// earlier one.
func (t *Table) Pivot(feature string) (*Matrix, error) {
	col, ok := t.FeatureIndex(feature)
	if !ok {
		return nil, fmt.Errorf("unknown feature %q", feature)
	}

	nodes := t.Nodes()
	times := t.Timestamps()
	m := newMatrix(nodes, times)
	if len(nodes) == 0 || len(times) == 0 {
		return m, nil
	}

	rowOf := make(map[string]int, len(nodes))
	for i, n := range nodes {
		rowOf[n] = i
	}
	colOf := make(map[int64]int, len(times))
	for j, ts := range times {
		colOf[ts.UnixNano()] = j
	}

	raw := make([]float64, len(nodes)*len(times))
	for i := range raw {
		raw[i] = math.NaN()
	}
	for _, r := range t.Rows {
		raw[rowOf[r.NodeID]*len(times)+colOf[r.Timestamp.UnixNano()]] = r.Values[col]
	}
	for i := range nodes {
		fillRow(raw[i*len(times) : (i+1)*len(times)])
	}
	m.setData(raw)
	return m, nil
}

// fillRow forward-fills then backward-fills NaN gaps in place.
func fillRow(row []float64) {
	last := math.NaN()
	for j, v := range row {
		if math.IsNaN(v) {
			row[j] = last
		} else {
			last = v
		}
	}
	next := math.NaN()
	for j := len(row) - 1; j >= 0; j-- {
		if math.IsNaN(row[j]) {
			row[j] = next
		} else {
			next = row[j]
		}
	}
	for j, v := range row {
		if math.IsNaN(v) {
			row[j] = 0
		}
	}
}
