package algo

import (
	"github.com/allisonaustin/cluster-vis/internal/frame"
	"github.com/allisonaustin/cluster-vis/schema"
)

// FindContiguousWindow returns the first and last timestamp of the longest
// run of columns in which every node lies inside r. A later run replaces
// the current best only when strictly longer, so the earliest run wins ties.
// ok is false when no column is fully in range.
func FindContiguousWindow(m *frame.Matrix, r schema.ValueRange) (w schema.Window, ok bool) {
	if m.Empty() {
		return schema.Window{}, false
	}

	bestStart, bestLen := -1, 0
	runStart := -1
	closeRun := func(end int) {
		if runStart < 0 {
			return
		}
		if n := end - runStart; n > bestLen {
			bestStart, bestLen = runStart, n
		}
		runStart = -1
	}

	for j := range m.Cols() {
		if columnInRange(m, j, r) {
			if runStart < 0 {
				runStart = j
			}
			continue
		}
		closeRun(j)
	}
	closeRun(m.Cols())

	if bestStart < 0 {
		return schema.Window{}, false
	}
	return schema.Window{Start: m.Times[bestStart], End: m.Times[bestStart+bestLen-1]}, true
}

func columnInRange(m *frame.Matrix, j int, r schema.ValueRange) bool {
	for i := range m.Rows() {
		if !r.Contains(m.At(i, j)) {
			return false
		}
	}
	return true
}

// WindowOrFullSpan runs FindContiguousWindow and falls back to the full
// time span of m when no run exists. The flag reports the fallback.
func WindowOrFullSpan(m *frame.Matrix, r schema.ValueRange) (schema.Window, bool) {
	if w, ok := FindContiguousWindow(m, r); ok {
		return w, false
	}
	if m.Cols() == 0 {
		return schema.Window{}, true
	}
	return schema.Window{Start: m.Times[0], End: m.Times[m.Cols()-1]}, true
}
