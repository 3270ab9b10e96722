package mrdmd

import (
	"context"
	"math"
	"testing"

	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// wave returns a rows x cols matrix of phase-shifted sines plus a per-row offset.
func wave(rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := range rows {
		for j := range cols {
			m.Set(i, j, float64(i+1)+math.Sin(float64(j)/3+float64(i)))
		}
	}
	return m
}

func TestSplitPoints(t *testing.T) {
	e := New()
	tests := []struct {
		name      string
		total     int
		maxLevels int
		expected  []int
	}{
		{"empty", 0, 9, []int{0}},
		{"single level", 10, 1, []int{0, 10}},
		{"two levels", 10, 2, []int{0, 5, 10}},
		{"three levels", 16, 3, []int{0, 4, 8, 12, 16}},
		{"stops at narrow segments", 6, 9, []int{0, 3, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.SplitPoints(tt.total, tt.maxLevels))
		})
	}
}

func TestDecomposeTreeShape(t *testing.T) {
	e := New()
	tree, err := e.Decompose(context.Background(), wave(4, 16), 3, 1, false)
	require.NoError(t, err)

	assert.Equal(t, 3, tree.Depth())
	assert.Equal(t, 0, tree.Start)
	assert.Equal(t, 16, tree.End)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, 8, tree.Children[1].Start)

	var leaves []int
	tree.Walk(func(n *schema.DecompositionTree) {
		assert.Len(t, n.Amplitudes, 4)
		if len(n.Children) == 0 {
			leaves = append(leaves, n.Start)
		}
	})
	assert.Equal(t, []int{0, 4, 8, 12}, leaves)

	splits := e.SplitPoints(16, 3)
	assert.Equal(t, []int{0, 4, 8, 12, 16}, splits)
}

func TestDecomposeParallelMatchesSerial(t *testing.T) {
	e := New()
	m := wave(6, 40)
	serial, err := e.Decompose(context.Background(), m, 4, 1, false)
	require.NoError(t, err)
	parallel, err := e.Decompose(context.Background(), m, 4, 1, true)
	require.NoError(t, err)

	var a, b [][]float64
	serial.Walk(func(n *schema.DecompositionTree) { a = append(a, n.Amplitudes) })
	parallel.Walk(func(n *schema.DecompositionTree) { b = append(b, n.Amplitudes) })
	require.Len(t, b, len(a))
	for i := range a {
		assert.InDeltaSlice(t, a[i], b[i], 1e-9)
	}
}

func TestDecomposeDoesNotMutateInput(t *testing.T) {
	m := wave(3, 8)
	before := mat.DenseCopyOf(m)
	_, err := New().Decompose(context.Background(), m, 3, 1, false)
	require.NoError(t, err)
	assert.True(t, mat.Equal(before, m))
}

func TestDecomposeErrors(t *testing.T) {
	e := New()
	ctx := context.Background()

	_, err := e.Decompose(ctx, nil, 3, 1, false)
	assert.ErrorIs(t, err, ErrEmptyMatrix)

	_, err = e.Decompose(ctx, wave(2, 4), 0, 1, false)
	assert.Error(t, err)

	_, err = e.Decompose(ctx, wave(2, 4), 2, 0, false)
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Decompose(cancelled, wave(2, 8), 3, 1, true)
	assert.ErrorIs(t, err, context.Canceled)
}
