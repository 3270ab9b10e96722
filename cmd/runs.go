package cmd

import (
	"fmt"
	"os"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/iocache"
	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runsBackendConfig loads and validates the run tracking settings only.
func runsBackendConfig() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	// Handle empty backend as NoneBackend
	backend := schema.NoneBackend
	if s := viper.GetString("runs-backend"); s != "" {
		backend = schema.DatabaseBackend(s)
	}
	if _, ok := schema.ValidRunBackends[backend]; !ok {
		return fmt.Errorf("invalid runs backend '%s'. must be sqlite, mysql, postgresql, none", backend)
	}
	connStr := viper.GetString("runs-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// runsSetupWrapper initializes the run store without a baseline cache.
func runsSetupWrapper(_ *cobra.Command, _ []string) error {
	if err := runsBackendConfig(); err != nil {
		return err
	}
	if err := iocache.InitStores(schema.NoneBackend, "", cfg.RunBackend, cfg.RunDBConnect); err != nil {
		return fmt.Errorf("failed to initialize run tracking: %w", err)
	}
	return nil
}

// runsCmd focused on run tracking management.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage tracked scoring runs and exports",
	Long: `Manage the history of scoring runs.

When a runs backend is configured, every scoring call stores:
- Run metadata (mode, timestamps, configuration, duration)
- The score of every node for every feature

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show run tracking statistics
  export  - Export runs and node scores to Parquet
  clear   - Remove all tracked runs
  migrate - Run database schema migrations

Examples:
  # Track runs in the default SQLite file
  clustervis score telemetry.csv --runs-backend sqlite
  clustervis runs status --runs-backend sqlite`,
}

// runsStatusCmd shows run tracking status.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run tracking statistics and connection details",
	Long: `Show the number of tracked runs, the first and last run times, the number
of distinct nodes scored and the table sizes.

Examples:
  clustervis runs status --runs-backend sqlite`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		store := storeManager.GetRunStore()
		if store == nil {
			contract.LogFatal("Failed to get run status", fmt.Errorf("run tracking is disabled"))
		}
		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get run status", err)
		}
		iocache.PrintRunStatus(os.Stdout, status)
	},
}

// runsExportCmd exports runs to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tracked runs and node scores to Parquet",
	Long: `Export every tracked run and node score to two Parquet files:
<output-file>.score_runs.parquet and <output-file>.node_scores.parquet

Requires: --output-file parameter

Examples:
  clustervis runs export --runs-backend sqlite --output-file history
  duckdb -c "SELECT node_id, max(score) FROM 'history.node_scores.parquet' GROUP BY 1"`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExportRuns(storeManager.GetRunStore(), cfg.OutputFile, os.Stdout); err != nil {
			contract.LogFatal("Failed to export run data", err)
		}
	},
}

// runsClearCmd clears the run data.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all tracked runs",
	Long: `Delete every tracked run and node score.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  clustervis runs export --runs-backend sqlite --output-file backup
  clustervis runs clear --runs-backend sqlite`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return runsBackendConfig()
	},
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearRuns(cfg.RunBackend, cfg.RunDBConnect); err != nil {
			contract.LogFatal("Failed to clear run data", err)
		}
		fmt.Println("Run data cleared successfully.")
	},
}

// runsMigrateCmd runs database migrations for the run store.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage the schema version of the run tracking store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  clustervis runs migrate --runs-backend sqlite

  # Rollback to initial state
  clustervis runs migrate --runs-backend sqlite --target-version 0`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return runsBackendConfig()
	},
	Run: func(_ *cobra.Command, _ []string) {
		result, err := iocache.MigrateRuns(cfg.RunBackend, cfg.RunDBConnect, viper.GetInt("target-version"))
		if err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
		fmt.Println(result)
	},
}
