package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allisonaustin/cluster-vis/core/baseline"
	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/frame"
	"github.com/allisonaustin/cluster-vis/internal/logger"
	"github.com/allisonaustin/cluster-vis/internal/mrdmd"
	"github.com/allisonaustin/cluster-vis/internal/telemetry"
	"github.com/allisonaustin/cluster-vis/schema"
)

// Deps are the collaborators a Pipeline runs against. Store is required;
// everything else is optional.
type Deps struct {
	Engine  contract.Engine // defaults to the mrDMD engine
	Store   contract.BaselineStore
	Runs    contract.RunStore
	Sink    contract.ScoreSink
	Metrics *telemetry.Metrics
	Params  map[string]any // recorded with each tracked run
}

// OverrideRequest pins the value range and window of a single feature.
type OverrideRequest struct {
	Feature string
	Range   schema.ValueRange
	Window  schema.Window
}

// Pipeline ties the baseline cache to the scorer and reports every call
// to the run store, the score sink and the metrics registry.
type Pipeline struct {
	cache   *baseline.Cache
	builder *baseline.Builder
	scorer  *baseline.Scorer

	runs    contract.RunStore
	sink    contract.ScoreSink
	metrics *telemetry.Metrics
	params  map[string]any

	log *logger.Logger
	now func() time.Time
}

// NewPipeline wires a pipeline from options and collaborators.
func NewPipeline(opts baseline.Options, deps Deps) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, errors.New("a baseline store is required")
	}
	engine := deps.Engine
	if engine == nil {
		engine = mrdmd.New()
	}
	builder := baseline.NewBuilder(engine, opts)
	return &Pipeline{
		cache:   baseline.NewCache(deps.Store, builder, opts),
		builder: builder,
		scorer:  baseline.NewScorer(engine, opts),
		runs:    deps.Runs,
		sink:    deps.Sink,
		metrics: deps.Metrics,
		params:  deps.Params,
		log:     logger.Named("pipeline"),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Cache exposes the pipeline's baseline cache.
func (p *Pipeline) Cache() *baseline.Cache {
	return p.cache
}

// RunWithCache scores table against the cached baselines, building the
// missing ones first. With force every baseline is rebuilt.
func (p *Pipeline) RunWithCache(ctx context.Context, table *frame.Table, force bool) (*schema.RunResult, error) {
	mode := schema.CachedRun
	if force {
		mode = schema.ForcedRun
	}
	if table.Empty() {
		p.log.Info().Msg("empty observation table, nothing to score")
		return emptyResult(mode, p.now()), nil
	}

	ctx = p.beginRun(ctx, mode)

	start := time.Now()
	set, report, err := p.cache.GetOrBuild(ctx, table, force)
	if err != nil {
		p.abortRun(ctx)
		return nil, err
	}
	baselineDuration := time.Since(start)
	p.log.Info().Int("built", report.Built).Int("reused", report.Reused).Int("failed", len(report.Failed)).
		Dur("duration", baselineDuration).Msg("baseline phase complete")

	start = time.Now()
	scores, err := p.scorer.Score(ctx, table, set)
	if err != nil {
		p.abortRun(ctx)
		return nil, err
	}
	scoringDuration := time.Since(start)
	scores.Skipped = mergeSkipped(report.Failed, scores.Skipped)
	p.log.Info().Int("nodes", len(scores.Nodes)).Int("features", len(scores.Features)).
		Int("skipped", len(scores.Skipped)).Dur("duration", scoringDuration).Msg("scoring phase complete")

	result := &schema.RunResult{
		Mode:             mode,
		Scores:           scores,
		Baselines:        set.Records(),
		Built:            report.Built,
		Reused:           report.Reused,
		BaselineDuration: baselineDuration,
		ScoringDuration:  scoringDuration,
		FinishedAt:       p.now(),
	}
	p.finish(ctx, result)
	return result, nil
}

// RunWithOverride builds a one-off baseline from req and scores only
// req.Feature against it. The cache is neither read nor written.
func (p *Pipeline) RunWithOverride(ctx context.Context, table *frame.Table, req OverrideRequest) (*schema.RunResult, error) {
	if table.Empty() {
		p.log.Info().Msg("empty observation table, nothing to score")
		return emptyResult(schema.OverrideRun, p.now()), nil
	}

	ctx = p.beginRun(ctx, schema.OverrideRun)

	start := time.Now()
	rec, err := p.builder.BuildOverride(ctx, table, req.Feature, req.Range, req.Window)
	if err != nil {
		p.abortRun(ctx)
		return nil, fmt.Errorf("override baseline for %q: %w", req.Feature, err)
	}
	baselineDuration := time.Since(start)
	p.log.Info().Str("feature", req.Feature).Time("b_start", rec.BStart).Time("b_end", rec.BEnd).
		Dur("duration", baselineDuration).Msg("override baseline built")

	set := schema.NewBaselineSet([]schema.BaselineRecord{rec})
	start = time.Now()
	scores, err := p.scorer.Score(ctx, table.Filter(nil, []string{req.Feature}), set)
	if err != nil {
		p.abortRun(ctx)
		return nil, err
	}
	scoringDuration := time.Since(start)

	result := &schema.RunResult{
		Mode:             schema.OverrideRun,
		Scores:           scores,
		Baselines:        []schema.BaselineRecord{rec},
		Built:            1,
		BaselineDuration: baselineDuration,
		ScoringDuration:  scoringDuration,
		FinishedAt:       p.now(),
	}
	p.finish(ctx, result)
	return result, nil
}

// BuildBaselines fills the cache for every feature of table without scoring.
func (p *Pipeline) BuildBaselines(ctx context.Context, table *frame.Table, force bool) ([]schema.BaselineRecord, baseline.BuildReport, error) {
	start := time.Now()
	set, report, err := p.cache.GetOrBuild(ctx, table, force)
	if err != nil {
		return nil, report, err
	}
	p.metrics.ObserveBaselines(report.Built, report.Reused)
	p.metrics.ObserveSkipped(report.Failed)
	p.metrics.ObservePhase(schema.BaselinePhase, time.Since(start))
	return set.Records(), report, nil
}

// beginRun opens a tracked run and carries its ID in the returned context.
// Tracking failures never fail the call.
func (p *Pipeline) beginRun(ctx context.Context, mode schema.RunMode) context.Context {
	if p.runs == nil {
		return ctx
	}
	runID, err := p.runs.BeginRun(p.now(), mode, p.params)
	if err != nil {
		contract.LogWarn("Run tracking initialization failed", err)
		return ctx
	}
	if runID > 0 {
		p.log.Debug().Int64("run_id", runID).Str("mode", string(mode)).Msg("run tracking started")
		ctx = withRunID(ctx, runID)
	}
	return ctx
}

// abortRun closes a tracked run that failed before producing scores.
func (p *Pipeline) abortRun(ctx context.Context) {
	runID := runIDFromContext(ctx)
	if p.runs == nil || runID <= 0 {
		return
	}
	if err := p.runs.EndRun(runID, p.now(), 0, 0); err != nil {
		contract.LogWarn("Failed to finalize run tracking", err)
	}
}

// finish records the result with every configured collaborator.
func (p *Pipeline) finish(ctx context.Context, result *schema.RunResult) {
	long := result.Scores.Long()

	if runID := runIDFromContext(ctx); p.runs != nil && runID > 0 {
		if err := p.runs.RecordNodeScores(runID, result.FinishedAt, long); err != nil {
			contract.LogWarn("Failed to record node scores", err)
		}
		if err := p.runs.EndRun(runID, result.FinishedAt, len(result.Scores.Features), result.SkippedCount()); err != nil {
			contract.LogWarn("Failed to finalize run tracking", err)
		}
	}

	if p.sink != nil && len(long) > 0 {
		if err := p.sink.Publish(ctx, result.FinishedAt, long); err != nil {
			contract.LogWarn("Failed to publish node scores", err)
		}
	}

	p.metrics.ObserveBaselines(result.Built, result.Reused)
	p.metrics.ObserveSkipped(result.Scores.Skipped)
	p.metrics.ObservePhase(schema.BaselinePhase, result.BaselineDuration)
	p.metrics.ObservePhase(schema.ScoringPhase, result.ScoringDuration)
	p.metrics.ObserveNodes(len(result.Scores.Nodes))
}

// mergeSkipped lists build failures first and drops the scoring entries
// they already explain.
func mergeSkipped(failed, scoring []schema.SkippedFeature) []schema.SkippedFeature {
	if len(failed) == 0 {
		return scoring
	}
	seen := make(map[string]struct{}, len(failed))
	out := make([]schema.SkippedFeature, 0, len(failed)+len(scoring))
	for _, s := range failed {
		seen[s.Feature] = struct{}{}
		out = append(out, s)
	}
	for _, s := range scoring {
		if _, ok := seen[s.Feature]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

func emptyResult(mode schema.RunMode, at time.Time) *schema.RunResult {
	return &schema.RunResult{
		Mode:       mode,
		Scores:     schema.NewScoreTable(),
		Baselines:  []schema.BaselineRecord{},
		FinishedAt: at,
	}
}
