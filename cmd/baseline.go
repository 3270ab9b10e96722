package cmd

import (
	"fmt"
	"os"

	"github.com/allisonaustin/cluster-vis/core"
	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/iocache"
	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// baselineBackendConfig loads and validates the baseline cache settings only.
func baselineBackendConfig() error {
	if err := loadConfigFile(); err != nil {
		return err
	}
	backend := schema.DatabaseBackend(viper.GetString("cache-backend"))
	if _, ok := schema.ValidBaselineBackends[backend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be parquet, sqlite, mysql, postgresql, none", backend)
	}
	connStr := viper.GetString("cache-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}
	cfg.BaselineBackend = backend
	cfg.BaselineDBConnect = connStr
	return nil
}

// baselineSetupWrapper initializes the baseline store without run tracking.
func baselineSetupWrapper(_ *cobra.Command, _ []string) error {
	if err := baselineBackendConfig(); err != nil {
		return err
	}
	if err := iocache.InitStores(cfg.BaselineBackend, cfg.BaselineDBConnect, "", ""); err != nil {
		return fmt.Errorf("failed to initialize baseline cache: %w", err)
	}
	return nil
}

// baselineCmd focused on baseline cache management.
var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage the per-feature baseline cache",
	Long: `Manage the cache of per-feature baselines that scoring runs reuse.

Supported backends: Parquet (default), SQLite, MySQL, PostgreSQL, or None (in-memory)

Subcommands:
  build  - Discover baselines without scoring
  list   - Print the cached baselines
  status - Show cache statistics and connection info
  clear  - Remove all cached baselines

Examples:
  # Prime the cache from a day of telemetry
  clustervis baseline build telemetry.csv

  # Inspect what is cached
  clustervis baseline list`,
}

// baselineBuildCmd discovers baselines without scoring.
var baselineBuildCmd = &cobra.Command{
	Use:   "build [input]",
	Short: "Discover and cache baselines for every feature",
	Long: `Build the baselines missing from the cache for every feature of the input.

With --force every baseline is rebuilt and the cache is replaced.

Examples:
  clustervis baseline build telemetry.csv
  clustervis baseline build telemetry.csv --features rx,tx --force`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteBaselineBuild(rootCtx, cfg, storeManager); err != nil {
			contract.LogFatal("Cannot build baselines", err)
		}
	},
}

// baselineListCmd prints the cached baselines.
var baselineListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the cached baselines",
	Long: `Print every cached baseline with its window, value range and fallbacks.

Examples:
  clustervis baseline list
  clustervis baseline list --features rx --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteBaselineList(rootCtx, cfg, storeManager); err != nil {
			contract.LogFatal("Cannot list baselines", err)
		}
	},
}

// baselineStatusCmd shows cache status.
var baselineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display baseline cache statistics and connection details",
	Long: `Show the backend, location, record count and size of the baseline cache.

Examples:
  clustervis baseline status`,
	PreRunE: baselineSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := storeManager.GetBaselineStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get baseline cache status", err)
		}
		iocache.PrintBaselineStatus(os.Stdout, status)
	},
}

// baselineClearCmd clears the cache.
var baselineClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached baselines",
	Long: `Delete every cached baseline from the configured backend.

Use this when the cluster's normal behavior has changed for good.
With --features only the named baselines are removed and the rest are kept.

For Parquet and SQLite: Deletes the cache file
For MySQL/PostgreSQL: Drops the cache table

Examples:
  clustervis baseline clear
  clustervis baseline clear --features rx,tx
  CLUSTERVIS_CACHE_BACKEND=mysql CLUSTERVIS_CACHE_DB_CONNECT="..." clustervis baseline clear`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return baselineBackendConfig()
	},
	Run: func(_ *cobra.Command, _ []string) {
		if features := contract.SplitList(viper.GetString("features")); len(features) > 0 {
			if err := iocache.InitStores(cfg.BaselineBackend, cfg.BaselineDBConnect, "", ""); err != nil {
				contract.LogFatal("Failed to initialize baseline cache", err)
			}
			cfg.Features = features
			removed, err := core.ClearBaselineFeatures(rootCtx, cfg, storeManager)
			if err != nil {
				contract.LogFatal("Failed to clear baselines", err)
			}
			fmt.Printf("Removed %d cached baselines.\n", removed)
			return
		}
		if err := iocache.ClearBaselines(cfg.BaselineBackend, cfg.BaselineDBConnect); err != nil {
			contract.LogFatal("Failed to clear baseline cache", err)
		}
		fmt.Println("Baseline cache cleared successfully.")
	},
}
