package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the storage backend for baselines and runs.
	DatabaseBackend string

	// Phase names a pipeline phase for skip reporting and timings.
	Phase string

	// RunMode represents how a scoring run obtained its baselines.
	RunMode string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All storage backends supported.
const (
	ParquetBackend    DatabaseBackend = "parquet" // default for the baseline cache
	SQLiteBackend     DatabaseBackend = "sqlite"
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Pipeline phases.
const (
	BaselinePhase Phase = "baseline"
	ScoringPhase  Phase = "scoring"
)

// All run modes supported.
const (
	CachedRun   RunMode = "cached"
	ForcedRun   RunMode = "forced"
	OverrideRun RunMode = "override"
)

// Default feature columns never treated as monitored metrics.
var DefaultExcludedFeatures = []string{"Missed Buffers_P1", "cpu_num"}

// Identifier columns of the observation table.
const (
	NodeIDColumn    = "nodeId"
	TimestampColumn = "timestamp"
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidBaselineBackends lists all valid baseline cache backends.
var ValidBaselineBackends = map[DatabaseBackend]struct{}{
	ParquetBackend:    {},
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidRunBackends lists all valid run tracking backends.
var ValidRunBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}
