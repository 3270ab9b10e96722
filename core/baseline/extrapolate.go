package baseline

import (
	"github.com/allisonaustin/cluster-vis/internal/frame"
	"github.com/allisonaustin/cluster-vis/schema"
)

// Extrapolate stretches the baseline window of rec over the columns of
// live. The table is re-sliced to the window and re-pivoted onto live's
// nodes, nodes missing from the window taking the mean of those present.
// The result is tiled end to end, truncated to live's width and relabeled
// with live's timestamps. ok is false when rec has no reference score or
// the window shares no node with live.
func Extrapolate(table *frame.Table, live *frame.Matrix, rec schema.BaselineRecord, margin int) (*frame.Matrix, bool) {
	if !rec.Usable() || live.Empty() {
		return nil, false
	}

	base, err := table.Window(rec.BStart, rec.BEnd).Pivot(rec.Feature)
	if err != nil || base.Empty() {
		return nil, false
	}
	base, found := base.Reindex(live.Nodes)
	if found == 0 {
		return nil, false
	}

	liveCols, baseCols := live.Cols(), base.Cols()
	repeats := (liveCols+baseCols-1)/baseCols + max(margin, 0)
	tiled := base.Tile(repeats).SliceCols(0, liveCols)
	out, err := tiled.WithTimes(live.Times)
	if err != nil {
		return nil, false
	}
	return out, true
}
