package baseline

import (
	"context"
	"fmt"
	"time"

	"github.com/allisonaustin/cluster-vis/core/algo"
	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/frame"
	"github.com/allisonaustin/cluster-vis/internal/logger"
	"github.com/allisonaustin/cluster-vis/schema"
	"gonum.org/v1/gonum/floats"
)

// Builder calibrates the baseline of one feature at a time. It holds no
// mutable state and may be shared across goroutines.
type Builder struct {
	engine contract.Engine
	opts   Options
	log    *logger.Logger
	now    func() time.Time
}

// NewBuilder returns a builder over the given engine.
func NewBuilder(engine contract.Engine, opts Options) *Builder {
	return &Builder{
		engine: engine,
		opts:   opts,
		log:    logger.Named("baseline"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Build discovers the value range and window of feature and calibrates
// its reference score.
func (b *Builder) Build(ctx context.Context, table *frame.Table, feature string) (schema.BaselineRecord, error) {
	if !table.HasFeature(feature) {
		return schema.BaselineRecord{}, fmt.Errorf("%w %q", ErrUnknownFeature, feature)
	}

	vr, rangeFallback := algo.ResolveRange(table.FeatureValues(feature), b.opts.RangeK, b.opts.RangeExt)
	if rangeFallback {
		b.log.Debug().Str("feature", feature).Float64("v_min", vr.Lower).Float64("v_max", vr.Upper).
			Msg("IQR band collapsed, using mean and standard deviation")
	}

	m, err := table.Pivot(feature)
	if err != nil {
		return schema.BaselineRecord{}, err
	}
	if m.Empty() {
		return schema.BaselineRecord{}, fmt.Errorf("%w: feature %q has no observations", ErrNoBaseline, feature)
	}

	w, windowFallback := algo.WindowOrFullSpan(m, vr)
	if windowFallback {
		b.log.Warn().Str("feature", feature).Float64("v_min", vr.Lower).Float64("v_max", vr.Upper).
			Msg("no contiguous in-range window, using the full time span")
	}

	rec, err := b.calibrate(ctx, feature, m, vr, w)
	if err != nil {
		return schema.BaselineRecord{}, err
	}
	rec.RangeFallback = rangeFallback
	rec.WindowFallback = windowFallback
	return rec, nil
}

// BuildOverride calibrates feature over an explicit range and window.
// The result is never written to the shared cache.
func (b *Builder) BuildOverride(ctx context.Context, table *frame.Table, feature string, vr schema.ValueRange, w schema.Window) (schema.BaselineRecord, error) {
	if !table.HasFeature(feature) {
		return schema.BaselineRecord{}, fmt.Errorf("%w %q", ErrUnknownFeature, feature)
	}
	if vr.Lower < 0 || vr.Upper < vr.Lower {
		return schema.BaselineRecord{}, fmt.Errorf("%w: range must satisfy 0 <= vmin <= vmax, got [%g, %g]", ErrInvalidOverride, vr.Lower, vr.Upper)
	}
	if w.End.Before(w.Start) {
		return schema.BaselineRecord{}, fmt.Errorf("%w: window start %s is after end %s", ErrInvalidOverride, w.Start, w.End)
	}

	m, err := table.Pivot(feature)
	if err != nil {
		return schema.BaselineRecord{}, err
	}
	if m.SliceTimes(w.Start, w.End).Empty() {
		return schema.BaselineRecord{}, fmt.Errorf("%w: window [%s, %s] holds no observations of %q", ErrInvalidOverride, w.Start, w.End, feature)
	}
	return b.calibrate(ctx, feature, m, vr, w)
}

// calibrate slices m to w and runs the engine in baseline mode with the
// node rows split into a first and second half.
func (b *Builder) calibrate(ctx context.Context, feature string, m *frame.Matrix, vr schema.ValueRange, w schema.Window) (schema.BaselineRecord, error) {
	windowed := m.SliceTimes(w.Start, w.End)
	if windowed.Empty() {
		return schema.BaselineRecord{}, fmt.Errorf("%w: window of %q is empty", ErrNoBaseline, feature)
	}
	windowed = windowed.SliceCols(0, b.opts.maxColumns())

	inRange := 0
	for i := range windowed.Rows() {
		row := windowed.Row(i)
		if floats.Min(row) >= vr.Lower && floats.Max(row) <= vr.Upper {
			inRange++
		}
	}
	b.log.Debug().Str("feature", feature).Int("in_range", inRange).Int("out_of_range", windowed.Rows()-inRange).
		Int("columns", windowed.Cols()).Msg("baseline window")

	rows := windowed.Rows()
	split := (rows + 1) / 2
	reference := indexRange(0, split)
	comparison := indexRange(split, rows)

	tree, err := b.engine.Decompose(ctx, windowed.Data, b.opts.MaxLevels, b.opts.MaxCycles, false)
	if err != nil {
		return schema.BaselineRecord{}, fmt.Errorf("decompose %q: %w", feature, err)
	}
	splits := b.engine.SplitPoints(windowed.Cols(), b.opts.MaxLevels)
	zscore, err := b.engine.DeviationScore(windowed.Data, splits, tree, reference, comparison, nil, true)
	if err != nil {
		return schema.BaselineRecord{}, fmt.Errorf("reference score %q: %w", feature, err)
	}
	if len(zscore) == 0 {
		return schema.BaselineRecord{}, fmt.Errorf("%w: empty reference score for %q", ErrNoBaseline, feature)
	}

	return schema.BaselineRecord{
		Feature:   feature,
		BStart:    w.Start,
		BEnd:      w.End,
		VMin:      vr.Lower,
		VMax:      vr.Upper,
		ZScore:    zscore,
		CreatedAt: b.now(),
	}, nil
}
