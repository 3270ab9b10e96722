package mrdmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDeviationScoreBaselineMode(t *testing.T) {
	e := New()
	m := wave(6, 32)
	tree, err := e.Decompose(context.Background(), m, 3, 1, false)
	require.NoError(t, err)

	ref, err := e.DeviationScore(m, e.SplitPoints(32, 3), tree, []int{0, 1, 2}, []int{3, 4, 5}, nil, true)
	require.NoError(t, err)
	assert.Len(t, ref, tree.Depth())
	for _, v := range ref {
		assert.Greater(t, v, 0.0)
	}
}

func TestDeviationScoreZeroVarianceBaseline(t *testing.T) {
	e := New()
	m := mat.NewDense(4, 8, nil)
	for i := range 4 {
		for j := range 8 {
			m.Set(i, j, 3)
		}
	}
	tree, err := e.Decompose(context.Background(), m, 2, 1, false)
	require.NoError(t, err)

	ref, err := e.DeviationScore(m, e.SplitPoints(8, 2), tree, []int{0, 1}, []int{2, 3}, nil, true)
	require.NoError(t, err)
	for _, v := range ref {
		assert.Equal(t, 1.0, v)
	}

	scores, err := e.DeviationScore(m, nil, tree, []int{0, 1}, []int{2, 3}, ref, false)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0}, scores, 1e-9)
}

func TestDeviationScoreFlagsOutlierRow(t *testing.T) {
	e := New()
	m := wave(6, 32)
	// row 1 is a live node far from the stacked reference rows 3..5
	for j := range 32 {
		m.Set(1, j, m.At(1, j)*20)
	}
	tree, err := e.Decompose(context.Background(), m, 3, 1, true)
	require.NoError(t, err)

	scores, err := e.DeviationScore(m, e.SplitPoints(32, 3), tree, []int{3, 4, 5}, []int{0, 1, 2}, []float64{0.5}, false)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Greater(t, scores[1], scores[0])
	assert.Greater(t, scores[1], scores[2])
}

func TestDeviationScoreErrors(t *testing.T) {
	e := New()
	m := wave(4, 8)
	tree, err := e.Decompose(context.Background(), m, 2, 1, false)
	require.NoError(t, err)

	tests := []struct {
		name        string
		splits      []int
		reference   []int
		comparison  []int
		refScore    []float64
		forBaseline bool
	}{
		{name: "missing reference score", reference: []int{0}, comparison: []int{1}},
		{name: "empty reference group", comparison: []int{1}, refScore: []float64{1}},
		{name: "row out of range", reference: []int{9}, comparison: []int{1}, forBaseline: true},
		{name: "splits mismatch", splits: []int{0, 5}, reference: []int{0}, comparison: []int{1}, forBaseline: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.DeviationScore(m, tt.splits, tree, tt.reference, tt.comparison, tt.refScore, tt.forBaseline)
			assert.Error(t, err)
		})
	}

	_, err = e.DeviationScore(m, nil, nil, nil, nil, nil, true)
	assert.Error(t, err)
}
