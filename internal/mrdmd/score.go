package mrdmd

import (
	"errors"
	"fmt"
	"math"

	"github.com/allisonaustin/cluster-vis/schema"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minStd is the smallest spread treated as variance.
const minStd = 1e-12

// ErrNoReference is returned when scoring without a reference score.
var ErrNoReference = errors.New("reference score required in scoring mode")

// DeviationScore aggregates the tree into one length-weighted amplitude per
// row and level. In baseline mode it returns the pooled standard deviation
// of the reference and comparison groups per level. Otherwise it returns,
// per comparison row, the mean over levels of the distance to the reference
// group's mean in units of refScore.
func (e *Engine) DeviationScore(m *mat.Dense, splits []int, tree *schema.DecompositionTree, reference, comparison []int, refScore []float64, forBaseline bool) ([]float64, error) {
	if tree == nil {
		return nil, errors.New("nil decomposition tree")
	}
	rows := len(tree.Amplitudes)
	if m != nil && !m.IsEmpty() {
		r, c := m.Dims()
		if r != rows {
			return nil, fmt.Errorf("matrix has %d rows, tree has %d", r, rows)
		}
		if len(splits) > 0 && splits[len(splits)-1] != c {
			return nil, fmt.Errorf("split points end at %d, matrix has %d columns", splits[len(splits)-1], c)
		}
	}
	for _, idx := range [][]int{reference, comparison} {
		for _, i := range idx {
			if i < 0 || i >= rows {
				return nil, fmt.Errorf("row index %d out of range [0,%d)", i, rows)
			}
		}
	}

	levels := levelAmplitudes(tree, rows)

	if forBaseline {
		out := make([]float64, len(levels))
		for l, amps := range levels {
			out[l] = guard(pooledStd(pick(amps, reference), pick(amps, comparison)))
		}
		return out, nil
	}

	if len(refScore) == 0 {
		return nil, ErrNoReference
	}
	if len(reference) == 0 {
		return nil, errors.New("empty reference group")
	}
	out := make([]float64, len(comparison))
	for l, amps := range levels {
		ref := refScore[min(l, len(refScore)-1)]
		scale := guard(ref)
		mean := stat.Mean(pick(amps, reference), nil)
		for c, i := range comparison {
			out[c] += math.Abs(amps[i]-mean) / scale
		}
	}
	floats.Scale(1/float64(len(levels)), out)
	return out, nil
}

// levelAmplitudes returns, per level, each row's amplitude averaged over
// the level's nodes and weighted by the number of columns they cover.
func levelAmplitudes(tree *schema.DecompositionTree, rows int) [][]float64 {
	depth := tree.Depth()
	sums := make([][]float64, depth)
	weights := make([]float64, depth)
	for l := range sums {
		sums[l] = make([]float64, rows)
	}
	tree.Walk(func(n *schema.DecompositionTree) {
		l := n.Level - 1
		w := float64(n.End - n.Start)
		weights[l] += w
		floats.AddScaled(sums[l], w, n.Amplitudes)
	})
	for l := range sums {
		if weights[l] > 0 {
			floats.Scale(1/weights[l], sums[l])
		}
	}
	return sums
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = values[i]
	}
	return out
}

func pooledStd(a, b []float64) float64 {
	dof := len(a) + len(b) - 2
	if dof <= 0 {
		return math.NaN()
	}
	var ss float64
	if len(a) > 1 {
		ss += stat.Variance(a, nil) * float64(len(a)-1)
	}
	if len(b) > 1 {
		ss += stat.Variance(b, nil) * float64(len(b)-1)
	}
	return math.Sqrt(ss / float64(dof))
}

func guard(std float64) float64 {
	if math.IsNaN(std) || std <= minStd {
		return 1
	}
	return std
}
