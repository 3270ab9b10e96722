package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func times(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = minute(i)
	}
	return out
}

func TestNewMatrixSizeMismatch(t *testing.T) {
	_, err := NewMatrix([]string{"a"}, times(2), []float64{1})
	assert.Error(t, err)
}

func TestSliceTimes(t *testing.T) {
	m, err := NewMatrix([]string{"a", "b"}, times(4), []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
	})
	require.NoError(t, err)

	s := m.SliceTimes(minute(1), minute(2))
	assert.Equal(t, 2, s.Cols())
	assert.Equal(t, []float64{2, 3, 6, 7}, s.Raw())

	assert.True(t, m.SliceTimes(minute(10), minute(11)).Empty())
}

func TestReindexFillsColumnMean(t *testing.T) {
	m, err := NewMatrix([]string{"a", "b"}, times(2), []float64{
		1, 2,
		3, 6,
	})
	require.NoError(t, err)

	out, found := m.Reindex([]string{"b", "z"})
	assert.Equal(t, 1, found)
	assert.Equal(t, []string{"b", "z"}, out.Nodes)
	assert.Equal(t, []float64{3, 6, 2, 4}, out.Raw())

	_, found = m.Reindex([]string{"x"})
	assert.Equal(t, 0, found)
}

func TestTileAndRelabel(t *testing.T) {
	m, err := NewMatrix([]string{"a"}, times(3), []float64{1, 2, 3})
	require.NoError(t, err)

	tiled := m.Tile(5)
	assert.Equal(t, 15, tiled.Cols())
	cut := tiled.SliceCols(0, 10)
	assert.Equal(t, []float64{1, 2, 3, 1, 2, 3, 1, 2, 3, 1}, cut.Raw())

	live := make([]time.Time, 10)
	for i := range live {
		live[i] = t0.Add(time.Duration(i) * time.Hour)
	}
	relabeled, err := cut.WithTimes(live)
	require.NoError(t, err)
	assert.Equal(t, live, relabeled.Times)

	_, err = cut.WithTimes(live[:3])
	assert.Error(t, err)
}

func TestStack(t *testing.T) {
	a, err := NewMatrix([]string{"a"}, times(2), []float64{1, 2})
	require.NoError(t, err)
	b, err := NewMatrix([]string{"b", "c"}, times(2), []float64{3, 4, 5, 6})
	require.NoError(t, err)

	s, err := a.Stack(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, s.Nodes)
	assert.Equal(t, []float64{5, 6}, s.Row(2))

	c, err := NewMatrix([]string{"c"}, times(3), []float64{1, 2, 3})
	require.NoError(t, err)
	_, err = a.Stack(c)
	assert.Error(t, err)
}
