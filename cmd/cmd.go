// Package cmd defines the command-line interface for clustervis.
package cmd

import (
	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the baseline subcommands to the parent baseline command
	baselineCmd.AddCommand(baselineBuildCmd)
	baselineCmd.AddCommand(baselineListCmd)
	baselineCmd.AddCommand(baselineStatusCmd)
	baselineCmd.AddCommand(baselineClearCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("input", "", "Path to the CSV or Parquet telemetry file")
	rootCmd.PersistentFlags().String("features", "", "Comma-separated feature columns to process (default: all)")
	rootCmd.PersistentFlags().String("nodes", "", "Comma-separated node ids to score (default: all)")
	rootCmd.PersistentFlags().StringSlice("exclude-features", schema.DefaultExcludedFeatures, "Feature columns never treated as metrics")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().Int("max-levels", contract.DefaultMaxLevels, "Depth of the multi-resolution decomposition")
	rootCmd.PersistentFlags().Int("max-cycles", contract.DefaultMaxCycles, "Slow modes fitted at each decomposition level")
	rootCmd.PersistentFlags().Int("max-columns", contract.DefaultMaxColumns, "Timestamps kept before decomposition")
	rootCmd.PersistentFlags().Float64("range-k", contract.DefaultRangeK, "IQR multiplier of the normal value range")
	rootCmd.PersistentFlags().Float64("range-ext", contract.DefaultRangeExt, "Fractional extension of the normal value range")
	rootCmd.PersistentFlags().Int("tile-margin", contract.DefaultTileMargin, "Extra baseline repetitions when extrapolating")
	rootCmd.PersistentFlags().Bool("force", false, "Rebuild every baseline instead of reusing the cache")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of nodes to display (0 = all)")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.ParquetBackend), "Baseline cache backend: parquet or sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Baseline cache file path or connection string (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("runs-backend", "", "Run tracking backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("runs-db-connect", "", "Run tracking file path or connection string")
	rootCmd.PersistentFlags().String("influx-url", "", "InfluxDB URL to publish node scores to")
	rootCmd.PersistentFlags().String("influx-token", "", "InfluxDB API token")
	rootCmd.PersistentFlags().String("influx-org", "", "InfluxDB organization")
	rootCmd.PersistentFlags().String("influx-bucket", "", "InfluxDB bucket")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write prometheus metrics to this node-exporter textfile")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: console or json")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of overrideCmd to Viper
	overrideCmd.Flags().String("feature", "", "Feature to score against the pinned baseline")
	overrideCmd.Flags().Float64("vmin", 0, "Lower bound of the normal value range")
	overrideCmd.Flags().Float64("vmax", 0, "Upper bound of the normal value range")
	overrideCmd.Flags().String("start", "", "Baseline window start timestamp")
	overrideCmd.Flags().String("end", "", "Baseline window end timestamp")
	if err := viper.BindPFlags(overrideCmd.Flags()); err != nil {
		contract.LogFatal("Error binding override flags", err)
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
