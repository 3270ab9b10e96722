package contract

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/allisonaustin/cluster-vis/schema"
)

// Default values for configuration.
const (
	DefaultWorkers     = 15
	DefaultMaxLevels   = 9
	DefaultMaxCycles   = 1
	DefaultMaxColumns  = 10000
	DefaultRangeK      = 1.5
	DefaultRangeExt    = 0.1
	DefaultTileMargin  = 1
	DefaultPrecision   = 2
	DefaultResultLimit = 0 // show every node
	MaxResultLimit     = 100000
	MaxWorkers         = 256
)

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// OverrideConfig pins an explicit range and window for one feature.
type OverrideConfig struct {
	Feature string
	Range   schema.ValueRange
	Window  schema.Window
}

// Config holds the runtime configuration for the pipeline.
// This struct remains the "final, validated" config.
type Config struct {
	InputPath       string
	Features        []string // empty means every feature column
	Nodes           []string // empty means every node
	ExcludeFeatures []string

	Workers    int
	MaxLevels  int
	MaxCycles  int
	MaxColumns int
	RangeK     float64
	RangeExt   float64
	TileMargin int
	Force      bool

	Output      schema.OutputMode
	OutputFile  string
	Precision   int
	ResultLimit int
	Width       int // Terminal width override (0 = auto-detect)
	UseColors   bool

	BaselineBackend   schema.DatabaseBackend
	BaselineDBConnect string // Please use env var as this is plaintext

	RunBackend   schema.DatabaseBackend
	RunDBConnect string // Please use env var as this is plaintext

	InfluxURL    string
	InfluxToken  string // Please use env var as this is plaintext
	InfluxOrg    string
	InfluxBucket string

	MetricsFile string

	LogLevel  string
	LogFormat string

	Override OverrideConfig
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	InputPathStr string

	// --- Fields from rootCmd.PersistentFlags() ---
	Features        string   `mapstructure:"features"`
	Nodes           string   `mapstructure:"nodes"`
	ExcludeFeatures []string `mapstructure:"exclude-features"`
	Workers         int      `mapstructure:"workers"`
	MaxLevels       int      `mapstructure:"max-levels"`
	MaxCycles       int      `mapstructure:"max-cycles"`
	MaxColumns      int      `mapstructure:"max-columns"`
	RangeK          float64  `mapstructure:"range-k"`
	RangeExt        float64  `mapstructure:"range-ext"`
	TileMargin      int      `mapstructure:"tile-margin"`
	Force           bool     `mapstructure:"force"`
	Output          string   `mapstructure:"output"`
	OutputFile      string   `mapstructure:"output-file"`
	Precision       int      `mapstructure:"precision"`
	Limit           int      `mapstructure:"limit"`
	Width           int      `mapstructure:"width"`
	Color           string   `mapstructure:"color"`
	CacheBackend    string   `mapstructure:"cache-backend"`
	CacheDBConnect  string   `mapstructure:"cache-db-connect"`
	RunsBackend     string   `mapstructure:"runs-backend"`
	RunsDBConnect   string   `mapstructure:"runs-db-connect"`
	InfluxURL       string   `mapstructure:"influx-url"`
	InfluxToken     string   `mapstructure:"influx-token"`
	InfluxOrg       string   `mapstructure:"influx-org"`
	InfluxBucket    string   `mapstructure:"influx-bucket"`
	MetricsFile     string   `mapstructure:"metrics-file"`
	LogLevel        string   `mapstructure:"log-level"`
	LogFormat       string   `mapstructure:"log-format"`

	// --- Fields from overrideCmd.Flags() ---
	Feature string  `mapstructure:"feature"`
	VMin    float64 `mapstructure:"vmin"`
	VMax    float64 `mapstructure:"vmax"`
	Start   string  `mapstructure:"start"`
	End     string  `mapstructure:"end"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Features = cloneStrings(c.Features)
	clone.Nodes = cloneStrings(c.Nodes)
	clone.ExcludeFeatures = cloneStrings(c.ExcludeFeatures)
	return &clone
}

// ConfigParams summarizes the tunables recorded with each tracked run.
func (c *Config) ConfigParams() map[string]any {
	return map[string]any{
		"input":       c.InputPath,
		"features":    c.Features,
		"nodes":       c.Nodes,
		"workers":     c.Workers,
		"max_levels":  c.MaxLevels,
		"max_cycles":  c.MaxCycles,
		"range_k":     c.RangeK,
		"range_ext":   c.RangeExt,
		"tile_margin": c.TileMargin,
		"force":       c.Force,
	}
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateEngineInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	return validateSinkConfigs(cfg, input)
}

// ProcessOverride parses and validates the manual override parameters.
func ProcessOverride(cfg *Config, input *ConfigRawInput) error {
	feature := strings.TrimSpace(input.Feature)
	if feature == "" {
		return fmt.Errorf("--feature is required for override")
	}
	if input.Start == "" || input.End == "" {
		return fmt.Errorf("--start and --end are required for override")
	}
	start, err := ParseTimestamp(input.Start)
	if err != nil {
		return fmt.Errorf("invalid --start value: %w", err)
	}
	end, err := ParseTimestamp(input.End)
	if err != nil {
		return fmt.Errorf("invalid --end value: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("--start (%s) must not be after --end (%s)", input.Start, input.End)
	}
	if math.IsNaN(input.VMin) || math.IsNaN(input.VMax) {
		return fmt.Errorf("--vmin and --vmax must be numbers")
	}
	if input.VMin < 0 || input.VMax < input.VMin {
		return fmt.Errorf("value range must satisfy 0 <= vmin <= vmax (received %g, %g)", input.VMin, input.VMax)
	}

	cfg.Override = OverrideConfig{
		Feature: feature,
		Range:   schema.ValueRange{Lower: input.VMin, Upper: input.VMax},
		Window:  schema.Window{Start: start, End: end},
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.ParquetBackend, schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// ProcessProfilingConfig handles the profiling flag and sets up profiling configuration.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}

// validateSimpleInputs processes and validates the input, output and selection fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.Force = input.Force
	cfg.LogLevel = input.LogLevel
	cfg.LogFormat = input.LogFormat
	cfg.MetricsFile = input.MetricsFile

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. Input Path ---
	if input.InputPathStr != "" {
		absPath, err := filepath.Abs(input.InputPathStr)
		if err != nil {
			return fmt.Errorf("invalid input path %q: %w", input.InputPathStr, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("cannot read input %q: %w", input.InputPathStr, err)
		}
		if info.IsDir() {
			return fmt.Errorf("input %q is a directory, expected a CSV or Parquet file", input.InputPathStr)
		}
		cfg.InputPath = absPath
	}

	// --- 2. Selection Lists ---
	cfg.Features = SplitList(input.Features)
	cfg.Nodes = SplitList(input.Nodes)
	cfg.ExcludeFeatures = cloneStrings(schema.DefaultExcludedFeatures)
	if input.ExcludeFeatures != nil {
		cfg.ExcludeFeatures = nil
		for _, f := range input.ExcludeFeatures {
			cfg.ExcludeFeatures = append(cfg.ExcludeFeatures, SplitList(f)...)
		}
	}

	// --- 3. ResultLimit Validation ---
	if input.Limit < 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be between 0 and %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	// --- 4. Precision and Output Validation ---
	if input.Precision < 0 || input.Precision > 6 {
		return fmt.Errorf("precision must be between 0 and 6 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("--output-file is required for parquet output")
	}
	return nil
}

// validateEngineInputs validates the pool size and decomposition tunables.
func validateEngineInputs(cfg *Config, input *ConfigRawInput) error {
	if input.Workers <= 0 || input.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d (received %d)", MaxWorkers, input.Workers)
	}
	cfg.Workers = input.Workers

	if input.MaxLevels < 1 {
		return fmt.Errorf("max-levels must be at least 1 (received %d)", input.MaxLevels)
	}
	cfg.MaxLevels = input.MaxLevels

	if input.MaxCycles < 1 {
		return fmt.Errorf("max-cycles must be at least 1 (received %d)", input.MaxCycles)
	}
	cfg.MaxCycles = input.MaxCycles

	if input.MaxColumns < 2 {
		return fmt.Errorf("max-columns must be at least 2 (received %d)", input.MaxColumns)
	}
	cfg.MaxColumns = input.MaxColumns

	if input.RangeK < 0 {
		return fmt.Errorf("range-k must not be negative (received %g)", input.RangeK)
	}
	cfg.RangeK = input.RangeK

	if input.RangeExt < 0 || input.RangeExt >= 1 {
		return fmt.Errorf("range-ext must be in [0, 1) (received %g)", input.RangeExt)
	}
	cfg.RangeExt = input.RangeExt

	if input.TileMargin < 0 {
		return fmt.Errorf("tile-margin must not be negative (received %d)", input.TileMargin)
	}
	cfg.TileMargin = input.TileMargin
	return nil
}

// validateBackendConfigs validates baseline cache and run tracking backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Baseline Cache Backend Validation ---
	cfg.BaselineBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidBaselineBackends[cfg.BaselineBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be parquet, sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.BaselineDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.BaselineBackend, cfg.BaselineDBConnect); err != nil {
		return err
	}

	// --- Run Tracking Backend Validation ---
	cfg.RunBackend = schema.DatabaseBackend(strings.ToLower(input.RunsBackend))
	if cfg.RunBackend == "" {
		return nil
	}
	if _, ok := schema.ValidRunBackends[cfg.RunBackend]; !ok {
		return fmt.Errorf("invalid runs backend '%s'. must be sqlite, mysql, postgresql, none", input.RunsBackend)
	}
	cfg.RunDBConnect = input.RunsDBConnect
	if err := ValidateDatabaseConnectionString(cfg.RunBackend, cfg.RunDBConnect); err != nil {
		return err
	}

	// Baselines and runs must not share one SQLite file
	if cfg.BaselineBackend == schema.SQLiteBackend && cfg.RunBackend == schema.SQLiteBackend {
		baselinePath := cfg.BaselineDBConnect
		if baselinePath == "" {
			baselinePath = GetBaselineDBFilePath()
		}
		runPath := cfg.RunDBConnect
		if runPath == "" {
			runPath = GetRunDBFilePath()
		}
		if baselinePath == runPath {
			return fmt.Errorf("baseline cache and run tracking must use different SQLite database files. Both resolve to %q", baselinePath)
		}
	}
	return nil
}

// validateSinkConfigs validates the optional InfluxDB sink.
func validateSinkConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.InfluxURL = strings.TrimSpace(input.InfluxURL)
	if cfg.InfluxURL == "" {
		return nil
	}
	if !strings.HasPrefix(cfg.InfluxURL, "http://") && !strings.HasPrefix(cfg.InfluxURL, "https://") {
		return fmt.Errorf("influx-url must start with http:// or https:// (received %q)", cfg.InfluxURL)
	}
	if input.InfluxOrg == "" || input.InfluxBucket == "" {
		return fmt.Errorf("influx-org and influx-bucket are required when influx-url is set")
	}
	cfg.InfluxToken = input.InfluxToken
	cfg.InfluxOrg = input.InfluxOrg
	cfg.InfluxBucket = input.InfluxBucket
	return nil
}

// ParseTimestamp parses the timestamp layouts accepted in observation files and flags.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range TimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, ok := parseUnixSeconds(s); ok {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// TimestampLayouts are tried in order by ParseTimestamp.
var TimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseUnixSeconds(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
