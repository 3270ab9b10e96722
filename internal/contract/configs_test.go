package contract

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validInput returns a raw input carrying the same defaults the CLI registers.
func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		Workers:      DefaultWorkers,
		MaxLevels:    DefaultMaxLevels,
		MaxCycles:    DefaultMaxCycles,
		MaxColumns:   DefaultMaxColumns,
		RangeK:       DefaultRangeK,
		RangeExt:     DefaultRangeExt,
		TileMargin:   DefaultTileMargin,
		Output:       string(schema.TextOut),
		Precision:    DefaultPrecision,
		Color:        "yes",
		CacheBackend: string(schema.ParquetBackend),
	}
}

func TestProcessAndValidate(t *testing.T) {
	inputFile := filepath.Join(t.TempDir(), "telemetry.csv")
	require.NoError(t, os.WriteFile(inputFile, []byte("nodeId,timestamp,rx\n"), 0o644))

	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError string
	}{
		{
			name:   "valid defaults",
			mutate: func(*ConfigRawInput) {},
		},
		{
			name:   "valid input file and selections",
			mutate: func(in *ConfigRawInput) { in.InputPathStr = inputFile; in.Features = "rx, tx"; in.Nodes = "n1" },
		},
		{
			name:        "missing input file",
			mutate:      func(in *ConfigRawInput) { in.InputPathStr = filepath.Join(t.TempDir(), "missing.csv") },
			expectError: "cannot read input",
		},
		{
			name:        "input is a directory",
			mutate:      func(in *ConfigRawInput) { in.InputPathStr = t.TempDir() },
			expectError: "is a directory",
		},
		{
			name:        "zero workers",
			mutate:      func(in *ConfigRawInput) { in.Workers = 0 },
			expectError: "workers must be between",
		},
		{
			name:        "zero levels",
			mutate:      func(in *ConfigRawInput) { in.MaxLevels = 0 },
			expectError: "max-levels",
		},
		{
			name:        "range-ext out of bounds",
			mutate:      func(in *ConfigRawInput) { in.RangeExt = 1.5 },
			expectError: "range-ext",
		},
		{
			name:        "invalid output",
			mutate:      func(in *ConfigRawInput) { in.Output = "xml" },
			expectError: "invalid output format",
		},
		{
			name:        "parquet output without file",
			mutate:      func(in *ConfigRawInput) { in.Output = "parquet" },
			expectError: "--output-file is required",
		},
		{
			name:        "invalid color",
			mutate:      func(in *ConfigRawInput) { in.Color = "rainbow" },
			expectError: "invalid --color",
		},
		{
			name:        "invalid cache backend",
			mutate:      func(in *ConfigRawInput) { in.CacheBackend = "redis" },
			expectError: "invalid cache backend",
		},
		{
			name:        "mysql without connection string",
			mutate:      func(in *ConfigRawInput) { in.CacheBackend = "mysql" },
			expectError: "connection string is required",
		},
		{
			name:        "parquet is not a run backend",
			mutate:      func(in *ConfigRawInput) { in.RunsBackend = "parquet" },
			expectError: "invalid runs backend",
		},
		{
			name: "sqlite baseline and runs share a file",
			mutate: func(in *ConfigRawInput) {
				in.CacheBackend = "sqlite"
				in.CacheDBConnect = "shared.db"
				in.RunsBackend = "sqlite"
				in.RunsDBConnect = "shared.db"
			},
			expectError: "different SQLite database files",
		},
		{
			name:        "influx without bucket",
			mutate:      func(in *ConfigRawInput) { in.InfluxURL = "http://localhost:8086"; in.InfluxOrg = "ops" },
			expectError: "influx-org and influx-bucket",
		},
		{
			name:        "influx bad scheme",
			mutate:      func(in *ConfigRawInput) { in.InfluxURL = "localhost:8086" },
			expectError: "influx-url must start",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, validInput()))

	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultMaxLevels, cfg.MaxLevels)
	assert.Equal(t, DefaultMaxColumns, cfg.MaxColumns)
	assert.Equal(t, schema.ParquetBackend, cfg.BaselineBackend)
	assert.Equal(t, schema.DatabaseBackend(""), cfg.RunBackend)
	assert.Equal(t, schema.DefaultExcludedFeatures, cfg.ExcludeFeatures)
	assert.True(t, cfg.UseColors)

	input := validInput()
	input.ExcludeFeatures = []string{"a,b", "c"}
	require.NoError(t, ProcessAndValidate(cfg, input))
	assert.Equal(t, []string{"a", "b", "c"}, cfg.ExcludeFeatures)
}

func TestProcessOverride(t *testing.T) {
	tests := []struct {
		name        string
		input       ConfigRawInput
		expectError string
	}{
		{
			name:  "valid",
			input: ConfigRawInput{Feature: "rx", VMin: 1, VMax: 2, Start: "2024-01-01 00:00:00", End: "2024-01-01T06:00:00Z"},
		},
		{
			name:        "missing feature",
			input:       ConfigRawInput{VMin: 1, VMax: 2, Start: "2024-01-01", End: "2024-01-02"},
			expectError: "--feature is required",
		},
		{
			name:        "missing window",
			input:       ConfigRawInput{Feature: "rx", VMin: 1, VMax: 2},
			expectError: "--start and --end",
		},
		{
			name:        "reversed window",
			input:       ConfigRawInput{Feature: "rx", VMin: 1, VMax: 2, Start: "2024-01-02", End: "2024-01-01"},
			expectError: "must not be after",
		},
		{
			name:        "negative vmin",
			input:       ConfigRawInput{Feature: "rx", VMin: -1, VMax: 2, Start: "2024-01-01", End: "2024-01-02"},
			expectError: "0 <= vmin <= vmax",
		},
		{
			name:        "reversed range",
			input:       ConfigRawInput{Feature: "rx", VMin: 3, VMax: 2, Start: "2024-01-01", End: "2024-01-02"},
			expectError: "0 <= vmin <= vmax",
		},
		{
			name:        "garbage timestamp",
			input:       ConfigRawInput{Feature: "rx", VMin: 1, VMax: 2, Start: "yesterday", End: "2024-01-02"},
			expectError: "invalid --start",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			input := tt.input
			err := ProcessOverride(cfg, &input)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "rx", cfg.Override.Feature)
			assert.Equal(t, schema.ValueRange{Lower: 1, Upper: 2}, cfg.Override.Range)
			assert.Equal(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), cfg.Override.Window.End)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-05T10:30:00Z", "2024-03-05 10:30:00", "2024-03-05T10:30:00", "2024-03-05 10:30", "1709634600"} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := ParseTimestamp("not a time")
	assert.Error(t, err)
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{Features: []string{"rx"}, Nodes: []string{"n1"}, Workers: 3}
	clone := cfg.Clone()
	clone.Features[0] = "tx"
	clone.Workers = 9

	assert.Equal(t, "rx", cfg.Features[0])
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 3, cfg.ConfigParams()["workers"])
}
