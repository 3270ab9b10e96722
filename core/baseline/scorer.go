package baseline

import (
	"context"
	"errors"
	"fmt"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/frame"
	"github.com/allisonaustin/cluster-vis/internal/logger"
	"github.com/allisonaustin/cluster-vis/schema"
	"golang.org/x/sync/errgroup"
)

// Scorer measures every node of the live window against the baselines.
type Scorer struct {
	engine contract.Engine
	opts   Options
	log    *logger.Logger
}

// NewScorer returns a scorer over the given engine.
func NewScorer(engine contract.Engine, opts Options) *Scorer {
	return &Scorer{engine: engine, opts: opts, log: logger.Named("scorer")}
}

// Score computes per-node deviations for every table feature that has a
// baseline in set. Features without one, or whose scoring fails, are
// recorded in the table's Skipped list and do not affect the others.
func (s *Scorer) Score(ctx context.Context, table *frame.Table, set schema.BaselineSet) (schema.ScoreTable, error) {
	out := schema.NewScoreTable()
	if table.Empty() {
		return out, nil
	}

	type result struct {
		nodes  []string
		scores []float64
		err    error
	}
	results := make([]result, len(table.Features))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.workers())
	for i, feature := range table.Features {
		g.Go(func() error {
			nodes, scores, err := s.ScoreFeature(gctx, table, feature, set[feature])
			results[i] = result{nodes: nodes, scores: scores, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return out, err
	}

	for i, feature := range table.Features {
		r := results[i]
		if r.err != nil {
			ev := s.log.Warn()
			if errors.Is(r.err, ErrNoBaseline) {
				ev = s.log.Info()
			}
			ev.Err(r.err).Str("feature", feature).Msg("feature skipped")
			out.Skipped = append(out.Skipped, schema.SkippedFeature{
				Feature: feature,
				Phase:   schema.ScoringPhase,
				Reason:  r.err.Error(),
			})
			continue
		}
		for j, node := range r.nodes {
			out.Set(node, feature, r.scores[j])
		}
	}
	return out, nil
}

// ScoreFeature scores the live nodes of one feature. The live rows and the
// extrapolated baseline rows are stacked and decomposed together; the live
// rows are compared against the baseline rows.
func (s *Scorer) ScoreFeature(ctx context.Context, table *frame.Table, feature string, rec schema.BaselineRecord) ([]string, []float64, error) {
	if !rec.Usable() {
		return nil, nil, fmt.Errorf("%w for %q", ErrNoBaseline, feature)
	}
	live, err := table.Pivot(feature)
	if err != nil {
		return nil, nil, err
	}
	if live.Empty() {
		return nil, nil, fmt.Errorf("feature %q has no live observations", feature)
	}

	base, ok := Extrapolate(table, live, rec, s.opts.TileMargin)
	if !ok {
		return nil, nil, fmt.Errorf("%w: window [%s, %s] of %q shares no node with the live data", ErrNoBaseline, rec.BStart, rec.BEnd, feature)
	}

	combined, err := live.Stack(base)
	if err != nil {
		return nil, nil, err
	}
	combined = combined.SliceCols(0, s.opts.maxColumns())

	liveRows := live.Rows()
	comparison := indexRange(0, liveRows)
	reference := indexRange(liveRows, combined.Rows())

	tree, err := s.engine.Decompose(ctx, combined.Data, s.opts.MaxLevels, s.opts.MaxCycles, true)
	if err != nil {
		return nil, nil, fmt.Errorf("decompose %q: %w", feature, err)
	}
	splits := s.engine.SplitPoints(combined.Cols(), s.opts.MaxLevels)
	scores, err := s.engine.DeviationScore(combined.Data, splits, tree, reference, comparison, rec.ZScore, false)
	if err != nil {
		return nil, nil, fmt.Errorf("deviation score %q: %w", feature, err)
	}
	if len(scores) < liveRows {
		return nil, nil, fmt.Errorf("engine returned %d scores for %d nodes of %q", len(scores), liveRows, feature)
	}
	return live.Nodes, scores[:liveRows], nil
}
