// Package mrdmd is the default decomposition engine: a multi-resolution
// SVD that peels the slow modes off a node x time matrix and recurses into
// the two halves of the residual.
package mrdmd

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/schema"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// minSplitColumns is the narrowest segment that is still halved.
const minSplitColumns = 4

// ErrEmptyMatrix is returned when there is nothing to decompose.
var ErrEmptyMatrix = errors.New("empty matrix")

// Engine implements contract.Engine. The zero value is ready to use.
type Engine struct{}

var _ contract.Engine = &Engine{} // Compile-time check

// New returns the default engine.
func New() *Engine {
	return &Engine{}
}

// Decompose builds the decomposition tree of m.
func (e *Engine) Decompose(ctx context.Context, m *mat.Dense, maxLevels, maxCycles int, parallel bool) (*schema.DecompositionTree, error) {
	if m == nil || m.IsEmpty() {
		return nil, ErrEmptyMatrix
	}
	if maxLevels < 1 {
		return nil, fmt.Errorf("max levels must be at least 1, got %d", maxLevels)
	}
	if maxCycles < 1 {
		return nil, fmt.Errorf("max cycles must be at least 1, got %d", maxCycles)
	}
	d := decomposer{maxLevels: maxLevels, maxCycles: maxCycles, parallel: parallel}
	return d.node(ctx, mat.DenseCopyOf(m), 1, 0)
}

type decomposer struct {
	maxLevels int
	maxCycles int
	parallel  bool
}

// node fits the slow modes of residual, whose first column sits at offset
// in the original matrix, and recurses into the two halves of what is left.
func (d decomposer) node(ctx context.Context, residual *mat.Dense, level, offset int) (*schema.DecompositionTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, cols := residual.Dims()

	var svd mat.SVD
	if !svd.Factorize(residual, mat.SVDThin) {
		return nil, fmt.Errorf("svd did not converge at level %d [%d,%d)", level, offset, offset+cols)
	}
	sigma := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	k := min(d.maxCycles, len(sigma))
	amps := make([]float64, rows)
	for i := range rows {
		var sum float64
		for c := range k {
			x := u.At(i, c) * sigma[c]
			sum += x * x
		}
		amps[i] = math.Sqrt(sum)
	}

	tree := &schema.DecompositionTree{Level: level, Start: offset, End: offset + cols, Amplitudes: amps}
	if level >= d.maxLevels || cols < minSplitColumns {
		return tree, nil
	}

	// subtract the slow modes before descending
	for i := range rows {
		for j := range cols {
			var recon float64
			for c := range k {
				recon += u.At(i, c) * sigma[c] * v.At(j, c)
			}
			residual.Set(i, j, residual.At(i, j)-recon)
		}
	}

	mid := cols / 2
	left := mat.DenseCopyOf(residual.Slice(0, rows, 0, mid))
	right := mat.DenseCopyOf(residual.Slice(0, rows, mid, cols))
	tree.Children = make([]*schema.DecompositionTree, 2)

	if !d.parallel {
		var err error
		if tree.Children[0], err = d.node(ctx, left, level+1, offset); err != nil {
			return nil, err
		}
		if tree.Children[1], err = d.node(ctx, right, level+1, offset+mid); err != nil {
			return nil, err
		}
		return tree, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		child, err := d.node(gctx, left, level+1, offset)
		tree.Children[0] = child
		return err
	})
	g.Go(func() error {
		child, err := d.node(gctx, right, level+1, offset+mid)
		tree.Children[1] = child
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tree, nil
}

// SplitPoints returns the segment boundaries of the finest level reached
// by Decompose on totalColumns columns, including 0 and totalColumns.
func (e *Engine) SplitPoints(totalColumns, maxLevels int) []int {
	if totalColumns <= 0 {
		return []int{0}
	}
	points := []int{0}
	var split func(start, end, level int)
	split = func(start, end, level int) {
		if level >= maxLevels || end-start < minSplitColumns {
			points = append(points, end)
			return
		}
		mid := start + (end-start)/2
		split(start, mid, level+1)
		split(mid, end, level+1)
	}
	split(0, totalColumns, 1)
	return points
}
