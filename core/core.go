// Package core has core logic for baseline discovery, scoring and ranking.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/allisonaustin/cluster-vis/core/baseline"
	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/frame"
	"github.com/allisonaustin/cluster-vis/internal/logger"
	"github.com/allisonaustin/cluster-vis/internal/outwriter"
	"github.com/allisonaustin/cluster-vis/internal/sink"
	"github.com/allisonaustin/cluster-vis/internal/telemetry"
	"github.com/allisonaustin/cluster-vis/schema"
)

// ExecutorFunc defines the function signature for executing different pipeline modes.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error

// ExecuteScore scores the input against the cached baselines and prints the
// ranked nodes. It serves as the main entry point for the 'score' mode.
func ExecuteScore(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	metrics := telemetry.New()
	result, err := RunScore(ctx, cfg, mgr, metrics)
	if err != nil {
		return err
	}
	if err := outwriter.WriteScoreResults(result, cfg); err != nil {
		return err
	}
	return writeMetrics(metrics, cfg)
}

// ExecuteOverride scores one feature against a manually pinned baseline.
func ExecuteOverride(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	metrics := telemetry.New()
	result, err := RunOverride(ctx, cfg, mgr, metrics)
	if err != nil {
		return err
	}
	if err := outwriter.WriteScoreResults(result, cfg); err != nil {
		return err
	}
	return writeMetrics(metrics, cfg)
}

// ExecuteBaselineBuild fills the baseline cache from the input without scoring.
func ExecuteBaselineBuild(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	table, err := LoadTable(cfg)
	if err != nil {
		return err
	}
	metrics := telemetry.New()
	p, err := NewPipeline(baseline.OptionsFromConfig(cfg), Deps{Store: mgr.GetBaselineStore(), Metrics: metrics})
	if err != nil {
		return err
	}
	records, report, err := p.BuildBaselines(ctx, table, cfg.Force)
	if err != nil {
		return err
	}
	if !shouldSuppressOutput(ctx) {
		_, _ = fmt.Fprintf(os.Stderr, "Baselines: %d built, %d reused, %d failed\n", report.Built, report.Reused, len(report.Failed))
		for _, f := range report.Failed {
			_, _ = fmt.Fprintf(os.Stderr, "  - %s: %s\n", f.Feature, f.Reason)
		}
	}
	if err := outwriter.WriteBaselineRecords(records, cfg); err != nil {
		return err
	}
	return writeMetrics(metrics, cfg)
}

// ExecuteBaselineList prints the cached baselines, restricted to the
// configured features when any are set.
func ExecuteBaselineList(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	records, err := ListBaselines(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return outwriter.WriteBaselineRecords(records, cfg)
}

// RunScore loads the input and runs the cached pipeline over it.
func RunScore(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, metrics *telemetry.Metrics) (*schema.RunResult, error) {
	table, err := LoadTable(cfg)
	if err != nil {
		return nil, err
	}
	p, closeSink, err := newConfiguredPipeline(cfg, mgr, metrics)
	if err != nil {
		return nil, err
	}
	defer closeSink()
	return p.RunWithCache(ctx, table, cfg.Force)
}

// RunOverride loads the input and scores cfg.Override.Feature against the
// override baseline.
func RunOverride(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, metrics *telemetry.Metrics) (*schema.RunResult, error) {
	if cfg.Override.Feature == "" {
		return nil, errors.New("an override feature is required")
	}
	table, err := LoadTable(cfg)
	if err != nil {
		return nil, err
	}
	p, closeSink, err := newConfiguredPipeline(cfg, mgr, metrics)
	if err != nil {
		return nil, err
	}
	defer closeSink()
	return p.RunWithOverride(ctx, table, OverrideRequest{
		Feature: cfg.Override.Feature,
		Range:   cfg.Override.Range,
		Window:  cfg.Override.Window,
	})
}

// ListBaselines returns the cached baselines in feature order.
func ListBaselines(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) ([]schema.BaselineRecord, error) {
	store := mgr.GetBaselineStore()
	if store == nil {
		return nil, errors.New("baseline store is not initialized")
	}
	records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline cache: %w", err)
	}
	records = schema.NewBaselineSet(records).Records()
	if len(cfg.Features) == 0 {
		return records, nil
	}
	return slices.DeleteFunc(records, func(r schema.BaselineRecord) bool {
		return !slices.Contains(cfg.Features, r.Feature)
	}), nil
}

// ClearBaselineFeatures drops cfg.Features from the baseline cache and
// rewrites it. It returns the number of baselines removed.
func ClearBaselineFeatures(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) (int, error) {
	if len(cfg.Features) == 0 {
		return 0, errors.New("no features selected")
	}
	p, err := NewPipeline(baseline.OptionsFromConfig(cfg), Deps{Store: mgr.GetBaselineStore()})
	if err != nil {
		return 0, err
	}
	cache := p.Cache()
	if err := cache.Load(ctx); err != nil {
		return 0, err
	}
	removed := cache.Remove(cfg.Features...)
	if removed == 0 {
		return 0, nil
	}
	if err := cache.Flush(ctx); err != nil {
		return 0, err
	}
	return removed, nil
}

// LoadTable reads cfg.InputPath and applies the node and feature selection.
func LoadTable(cfg *contract.Config) (*frame.Table, error) {
	if cfg.InputPath == "" {
		return nil, errors.New("an input file is required")
	}
	table, err := frame.LoadFile(cfg.InputPath, cfg.ExcludeFeatures)
	if err != nil {
		return nil, err
	}
	log := logger.Named("input")
	for _, f := range cfg.Features {
		if !table.HasFeature(f) {
			log.Warn().Str("feature", f).Msg("requested feature not found in input")
		}
	}
	table = table.Filter(cfg.Nodes, cfg.Features)
	log.Info().Str("path", cfg.InputPath).Int("rows", len(table.Rows)).Int("features", len(table.Features)).
		Msg("observations loaded")
	return table, nil
}

// newConfiguredPipeline wires the stores, the optional InfluxDB sink and
// metrics. The returned func closes the sink.
func newConfiguredPipeline(cfg *contract.Config, mgr contract.StoreManager, metrics *telemetry.Metrics) (*Pipeline, func(), error) {
	scoreSink, err := sink.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	p, err := NewPipeline(baseline.OptionsFromConfig(cfg), Deps{
		Store:   mgr.GetBaselineStore(),
		Runs:    mgr.GetRunStore(),
		Sink:    scoreSink,
		Metrics: metrics,
		Params:  cfg.ConfigParams(),
	})
	if err != nil {
		if scoreSink != nil {
			scoreSink.Close()
		}
		return nil, nil, err
	}
	return p, func() {
		if scoreSink != nil {
			scoreSink.Close()
		}
	}, nil
}

// writeMetrics dumps the registry to the configured textfile.
func writeMetrics(metrics *telemetry.Metrics, cfg *contract.Config) error {
	if cfg.MetricsFile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
