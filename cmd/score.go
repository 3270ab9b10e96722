package cmd

import (
	"github.com/allisonaustin/cluster-vis/core"
	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/spf13/cobra"
)

// scoreCmd scores every node against the cached baselines.
var scoreCmd = &cobra.Command{
	Use:   "score [input]",
	Short: "Rank cluster nodes by deviation from their feature baselines.",
	Long: `Score every node of a telemetry file against per-feature baselines.

Baselines missing from the cache are discovered first: a normal value range is
estimated from the feature's readings, the longest window where every node stays
in range is located, and a reference score is calibrated over it. Cached
baselines are reused on later runs.

Nodes are ranked by their largest feature score and labeled:
  Critical >= 3, High >= 2, Moderate >= 1, otherwise Low

Examples:
  # Score every node and feature
  clustervis score telemetry.csv

  # Score two features and show the top 10 nodes
  clustervis score telemetry.csv --features rx,tx --limit 10

  # Rebuild all baselines before scoring
  clustervis score telemetry.parquet --force

  # Export the full score table
  clustervis score telemetry.csv --output csv --output-file scores.csv`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteScore(rootCtx, cfg, storeManager); err != nil {
			contract.LogFatal("Cannot score nodes", err)
		}
	},
}

// overrideCmd scores one feature against a manually pinned baseline.
var overrideCmd = &cobra.Command{
	Use:   "override [input]",
	Short: "Score one feature against a manually chosen range and window.",
	Long: `Score a single feature against a baseline built from an explicit value
range and time window instead of the discovered one.

The override baseline is never written to the cache.

Examples:
  # Treat rx between 0 and 120 during the first hour as normal
  clustervis override telemetry.csv --feature rx --vmin 0 --vmax 120 \
    --start "2024-02-21 10:00:00" --end "2024-02-21 11:00:00"`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: overrideSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteOverride(rootCtx, cfg, storeManager); err != nil {
			contract.LogFatal("Cannot score override", err)
		}
	},
}
