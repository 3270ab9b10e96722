package baseline

import (
	"context"
	"testing"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/mrdmd"
	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBuildPicksLongestInRangeWindow(t *testing.T) {
	// node 2 spikes at column 4, leaving runs [0,3] and [5,9]
	tbl := buildTable(t, []string{"rx"}, 4, 10, func(f, i, j int) float64 {
		if i == 2 && j == 4 {
			return 100
		}
		return gentle(f, i, j)
	})

	b := NewBuilder(mrdmd.New(), testOptions())
	rec, err := b.Build(context.Background(), tbl, "rx")
	require.NoError(t, err)

	assert.Equal(t, "rx", rec.Feature)
	assert.Equal(t, minute(5), rec.BStart)
	assert.Equal(t, minute(9), rec.BEnd)
	assert.False(t, rec.WindowFallback)
	assert.False(t, rec.RangeFallback)
	assert.LessOrEqual(t, rec.VMin, 1.0)
	assert.GreaterOrEqual(t, rec.VMax, 1.4)
	assert.True(t, rec.Usable())
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestBuildCallsEngineInBaselineMode(t *testing.T) {
	tbl := buildTable(t, []string{"rx"}, 5, 8, gentle)
	tree := &schema.DecompositionTree{Level: 1}

	engine := &contract.MockEngine{}
	engine.On("Decompose", mock.Anything, mock.Anything, 3, 1, false).Return(tree, nil).Once()
	engine.On("SplitPoints", 8, 3).Return([]int{0, 4, 8}).Once()
	engine.On("DeviationScore", mock.Anything, []int{0, 4, 8}, tree, []int{0, 1, 2}, []int{3, 4}, []float64(nil), true).
		Return([]float64{0.5, 0.25}, nil).Once()

	rec, err := NewBuilder(engine, testOptions()).Build(context.Background(), tbl, "rx")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25}, rec.ZScore)
	engine.AssertExpectations(t)
}

func TestBuildFallbacks(t *testing.T) {
	t.Run("all zero feature", func(t *testing.T) {
		tbl := buildTable(t, []string{"idle"}, 4, 8, func(int, int, int) float64 { return 0 })
		rec, err := NewBuilder(mrdmd.New(), testOptions()).Build(context.Background(), tbl, "idle")
		require.NoError(t, err)
		assert.True(t, rec.RangeFallback)
		assert.Equal(t, minute(0), rec.BStart)
		assert.Equal(t, minute(7), rec.BEnd)
		for _, v := range rec.ZScore {
			assert.Equal(t, 1.0, v)
		}
	})

	t.Run("no in-range column uses full span", func(t *testing.T) {
		// every column holds one node far outside the band of the others
		tbl := buildTable(t, []string{"rx"}, 4, 6, func(_, i, j int) float64 {
			if i == j%4 {
				return 1000
			}
			return 1
		})
		rec, err := NewBuilder(mrdmd.New(), testOptions()).Build(context.Background(), tbl, "rx")
		require.NoError(t, err)
		assert.True(t, rec.WindowFallback)
		assert.Equal(t, minute(0), rec.BStart)
		assert.Equal(t, minute(5), rec.BEnd)
	})
}

func TestBuildErrors(t *testing.T) {
	tbl := buildTable(t, []string{"rx"}, 2, 4, gentle)
	b := NewBuilder(mrdmd.New(), testOptions())

	_, err := b.Build(context.Background(), tbl, "tx")
	assert.ErrorIs(t, err, ErrUnknownFeature)

	engine := &contract.MockEngine{}
	engine.On("Decompose", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)
	_, err = NewBuilder(engine, testOptions()).Build(context.Background(), tbl, "rx")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestBuildOverride(t *testing.T) {
	tbl := buildTable(t, []string{"rx"}, 4, 10, gentle)
	b := NewBuilder(mrdmd.New(), testOptions())
	ctx := context.Background()

	rec, err := b.BuildOverride(ctx, tbl, "rx", schema.ValueRange{Lower: 0.5, Upper: 3}, schema.Window{Start: minute(2), End: minute(6)})
	require.NoError(t, err)
	assert.Equal(t, minute(2), rec.BStart)
	assert.Equal(t, minute(6), rec.BEnd)
	assert.Equal(t, 0.5, rec.VMin)
	assert.Equal(t, 3.0, rec.VMax)
	assert.True(t, rec.Usable())

	tests := []struct {
		name    string
		feature string
		vr      schema.ValueRange
		w       schema.Window
		target  error
	}{
		{"unknown feature", "tx", schema.ValueRange{Upper: 1}, schema.Window{Start: minute(0), End: minute(1)}, ErrUnknownFeature},
		{"negative lower", "rx", schema.ValueRange{Lower: -1, Upper: 1}, schema.Window{Start: minute(0), End: minute(1)}, ErrInvalidOverride},
		{"inverted range", "rx", schema.ValueRange{Lower: 2, Upper: 1}, schema.Window{Start: minute(0), End: minute(1)}, ErrInvalidOverride},
		{"inverted window", "rx", schema.ValueRange{Upper: 1}, schema.Window{Start: minute(3), End: minute(1)}, ErrInvalidOverride},
		{"window outside data", "rx", schema.ValueRange{Upper: 1}, schema.Window{Start: minute(100), End: minute(200)}, ErrInvalidOverride},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.BuildOverride(ctx, tbl, tt.feature, tt.vr, tt.w)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}
