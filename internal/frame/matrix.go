package frame

import (
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a node x time view of one feature. Data is nil when the
// matrix has no rows or no columns.
type Matrix struct {
	Nodes []string
	Times []time.Time
	Data  *mat.Dense
}

func newMatrix(nodes []string, times []time.Time) *Matrix {
	return &Matrix{Nodes: nodes, Times: times}
}

// NewMatrix wraps row-major values. len(values) must be len(nodes)*len(times).
func NewMatrix(nodes []string, times []time.Time, values []float64) (*Matrix, error) {
	if len(values) != len(nodes)*len(times) {
		return nil, fmt.Errorf("matrix needs %d values, got %d", len(nodes)*len(times), len(values))
	}
	m := newMatrix(slices.Clone(nodes), slices.Clone(times))
	m.setData(slices.Clone(values))
	return m, nil
}

func (m *Matrix) setData(raw []float64) {
	if len(m.Nodes) == 0 || len(m.Times) == 0 {
		m.Data = nil
		return
	}
	m.Data = mat.NewDense(len(m.Nodes), len(m.Times), raw)
}

// Rows returns the number of nodes.
func (m *Matrix) Rows() int { return len(m.Nodes) }

// Cols returns the number of timestamps.
func (m *Matrix) Cols() int { return len(m.Times) }

// Empty reports whether the matrix has no cells.
func (m *Matrix) Empty() bool {
	return m == nil || m.Data == nil
}

// At returns the value of node row i at column j.
func (m *Matrix) At(i, j int) float64 {
	return m.Data.At(i, j)
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.Data)
}

// Column returns a copy of column j.
func (m *Matrix) Column(j int) []float64 {
	return mat.Col(nil, j, m.Data)
}

// Raw returns the row-major values.
func (m *Matrix) Raw() []float64 {
	if m.Empty() {
		return nil
	}
	out := make([]float64, 0, m.Rows()*m.Cols())
	for i := range m.Rows() {
		out = append(out, m.Row(i)...)
	}
	return out
}

// SliceCols returns columns [from, to).
func (m *Matrix) SliceCols(from, to int) *Matrix {
	from = max(from, 0)
	to = min(to, m.Cols())
	if from >= to || m.Empty() {
		return newMatrix(slices.Clone(m.Nodes), nil)
	}
	out := newMatrix(slices.Clone(m.Nodes), slices.Clone(m.Times[from:to]))
	raw := make([]float64, 0, m.Rows()*(to-from))
	for i := range m.Rows() {
		for j := from; j < to; j++ {
			raw = append(raw, m.Data.At(i, j))
		}
	}
	out.setData(raw)
	return out
}

// SliceTimes returns the columns whose timestamp lies in [start, end].
func (m *Matrix) SliceTimes(start, end time.Time) *Matrix {
	from, to := -1, -1
	for j, ts := range m.Times {
		if ts.Before(start) || ts.After(end) {
			continue
		}
		if from < 0 {
			from = j
		}
		to = j + 1
	}
	if from < 0 {
		return newMatrix(slices.Clone(m.Nodes), nil)
	}
	return m.SliceCols(from, to)
}

// Reindex returns a matrix whose rows follow nodes. Nodes absent from m
// get the per-column mean of the nodes present. It also reports how many
// of the requested nodes were found.
func (m *Matrix) Reindex(nodes []string) (*Matrix, int) {
	out := newMatrix(slices.Clone(nodes), slices.Clone(m.Times))
	if m.Empty() || len(nodes) == 0 {
		return out, 0
	}

	rowOf := make(map[string]int, m.Rows())
	for i, n := range m.Nodes {
		rowOf[n] = i
	}

	mean := make([]float64, m.Cols())
	for j := range m.Cols() {
		var sum float64
		for i := range m.Rows() {
			sum += m.Data.At(i, j)
		}
		mean[j] = sum / float64(m.Rows())
	}

	found := 0
	raw := make([]float64, 0, len(nodes)*m.Cols())
	for _, n := range nodes {
		if i, ok := rowOf[n]; ok {
			found++
			raw = append(raw, m.Row(i)...)
			continue
		}
		raw = append(raw, mean...)
	}
	out.setData(raw)
	return out, found
}

// Tile repeats the columns end to end the given number of times.
func (m *Matrix) Tile(repeats int) *Matrix {
	if m.Empty() || repeats <= 1 {
		return m.SliceCols(0, m.Cols())
	}
	times := make([]time.Time, 0, m.Cols()*repeats)
	for range repeats {
		times = append(times, m.Times...)
	}
	out := newMatrix(slices.Clone(m.Nodes), times)
	raw := make([]float64, 0, m.Rows()*len(times))
	for i := range m.Rows() {
		row := m.Row(i)
		for range repeats {
			raw = append(raw, row...)
		}
	}
	out.setData(raw)
	return out
}

// WithTimes returns a copy relabeled with times. len(times) must equal Cols.
func (m *Matrix) WithTimes(times []time.Time) (*Matrix, error) {
	if len(times) != m.Cols() {
		return nil, fmt.Errorf("cannot relabel %d columns with %d timestamps", m.Cols(), len(times))
	}
	out := m.SliceCols(0, m.Cols())
	out.Times = slices.Clone(times)
	return out, nil
}

// Stack appends the rows of other below m. Both must have the same column count.
func (m *Matrix) Stack(other *Matrix) (*Matrix, error) {
	if m.Cols() != other.Cols() {
		return nil, fmt.Errorf("cannot stack %d columns onto %d", other.Cols(), m.Cols())
	}
	nodes := append(slices.Clone(m.Nodes), other.Nodes...)
	out := newMatrix(nodes, slices.Clone(m.Times))
	raw := append(m.Raw(), other.Raw()...)
	out.setData(raw)
	return out, nil
}
