// Package schema has models and enums shared by all parts of clustervis.
package schema

import (
	"sort"
	"time"
)

// ValueRange is the inlier band of a feature's distribution.
type ValueRange struct {
	Lower float64 `json:"v_min"`
	Upper float64 `json:"v_max"`
}

// IsZero reports whether the band collapsed to (0, 0).
func (r ValueRange) IsZero() bool {
	return r.Lower == 0 && r.Upper == 0
}

// Contains reports whether v lies in the closed band.
func (r ValueRange) Contains(v float64) bool {
	return v >= r.Lower && v <= r.Upper
}

// Window is a closed interval of timestamps drawn from a feature matrix.
type Window struct {
	Start time.Time `json:"b_start"`
	End   time.Time `json:"b_end"`
}

// BaselineRecord is the persisted "normal behavior" of one feature.
// ZScore is the opaque reference score produced by the decomposition engine.
type BaselineRecord struct {
	Feature        string    `json:"feature"`
	BStart         time.Time `json:"b_start"`
	BEnd           time.Time `json:"b_end"`
	VMin           float64   `json:"v_min"`
	VMax           float64   `json:"v_max"`
	ZScore         []float64 `json:"z_score"`
	WindowFallback bool      `json:"window_fallback"` // no contiguous run, full span used
	RangeFallback  bool      `json:"range_fallback"`  // IQR band collapsed, mean±std used
	CreatedAt      time.Time `json:"created_at"`
}

// Usable reports whether the record carries a reference score.
func (r BaselineRecord) Usable() bool {
	return len(r.ZScore) > 0
}

// Range returns the record's value band.
func (r BaselineRecord) Range() ValueRange {
	return ValueRange{Lower: r.VMin, Upper: r.VMax}
}

// Window returns the record's baseline window.
func (r BaselineRecord) Window() Window {
	return Window{Start: r.BStart, End: r.BEnd}
}

// BaselineSet is the keyed collection of baseline records, one per feature.
type BaselineSet map[string]BaselineRecord

// NewBaselineSet indexes records by feature. Later duplicates replace earlier ones.
func NewBaselineSet(records []BaselineRecord) BaselineSet {
	set := make(BaselineSet, len(records))
	for _, r := range records {
		set[r.Feature] = r
	}
	return set
}

// Features returns the feature names in sorted order.
func (s BaselineSet) Features() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Records returns the records sorted by feature name.
func (s BaselineSet) Records() []BaselineRecord {
	out := make([]BaselineRecord, 0, len(s))
	for _, name := range s.Features() {
		out = append(out, s[name])
	}
	return out
}

// DecompositionTree is the multi-resolution model of one node x time matrix.
// Each node covers columns [Start, End) at depth Level.
type DecompositionTree struct {
	Level      int
	Start      int
	End        int
	Amplitudes []float64 // per-row magnitude of the slow modes at this node
	Children   []*DecompositionTree
}

// Walk visits the tree in depth-first order.
func (t *DecompositionTree) Walk(fn func(*DecompositionTree)) {
	if t == nil {
		return
	}
	fn(t)
	for _, c := range t.Children {
		c.Walk(fn)
	}
}

// Depth returns the number of levels in the tree.
func (t *DecompositionTree) Depth() int {
	if t == nil {
		return 0
	}
	deepest := 0
	for _, c := range t.Children {
		if d := c.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// SkippedFeature records a feature dropped from a result and why.
type SkippedFeature struct {
	Feature string `json:"feature"`
	Phase   Phase  `json:"phase"`
	Reason  string `json:"reason"`
}

// NodeScore is one (node, feature) deviation value.
type NodeScore struct {
	NodeID  string  `json:"node_id"`
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// ScoreTable is the wide per-node deviation table produced by a scoring call.
// Values is keyed by node then by feature.
type ScoreTable struct {
	Nodes    []string                      `json:"nodes"`
	Features []string                      `json:"features"`
	Values   map[string]map[string]float64 `json:"values"`
	Skipped  []SkippedFeature              `json:"skipped"`
}

// NewScoreTable returns an empty table.
func NewScoreTable() ScoreTable {
	return ScoreTable{Values: make(map[string]map[string]float64)}
}

// Set stores one score, registering the node and feature if new.
func (t *ScoreTable) Set(node, feature string, score float64) {
	if t.Values == nil {
		t.Values = make(map[string]map[string]float64)
	}
	row, ok := t.Values[node]
	if !ok {
		row = make(map[string]float64)
		t.Values[node] = row
		t.Nodes = append(t.Nodes, node)
	}
	if !containsString(t.Features, feature) {
		t.Features = append(t.Features, feature)
	}
	row[feature] = score
}

// Get returns the score for a node and feature.
func (t ScoreTable) Get(node, feature string) (float64, bool) {
	row, ok := t.Values[node]
	if !ok {
		return 0, false
	}
	v, ok := row[feature]
	return v, ok
}

// Empty reports whether the table holds no scores.
func (t ScoreTable) Empty() bool {
	return len(t.Nodes) == 0
}

// MaxScore returns the largest feature score of a node.
func (t ScoreTable) MaxScore(node string) float64 {
	var best float64
	for _, v := range t.Values[node] {
		if v > best {
			best = v
		}
	}
	return best
}

// Long flattens the table into node scores ordered by node then feature.
func (t ScoreTable) Long() []NodeScore {
	var out []NodeScore
	for _, node := range t.Nodes {
		for _, feature := range t.Features {
			if v, ok := t.Values[node][feature]; ok {
				out = append(out, NodeScore{NodeID: node, Feature: feature, Score: v})
			}
		}
	}
	return out
}

// RunResult is the output of one orchestrated pipeline call.
type RunResult struct {
	Mode             RunMode          `json:"mode"`
	Scores           ScoreTable       `json:"scores"`
	Baselines        []BaselineRecord `json:"baselines"`
	Built            int              `json:"built"`
	Reused           int              `json:"reused"`
	BaselineDuration time.Duration    `json:"baseline_duration"`
	ScoringDuration  time.Duration    `json:"scoring_duration"`
	FinishedAt       time.Time        `json:"finished_at"`
}

// SkippedCount returns the number of features dropped in any phase.
func (r *RunResult) SkippedCount() int {
	return len(r.Scores.Skipped)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
