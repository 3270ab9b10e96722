package iocache

import (
	"testing"
	"time"

	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"baseline_cache", false},
		{"_private", false},
		{"Runs2", false},
		{"", true},
		{"2runs", true},
		{"runs; DROP TABLE x", true},
		{"my-table", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTableName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuoteTableNameAndPlaceholders(t *testing.T) {
	assert.Equal(t, "`runs`", quoteTableName("runs", schema.MySQLBackend))
	assert.Equal(t, `"runs"`, quoteTableName("runs", schema.PostgreSQLBackend))
	assert.Equal(t, `"runs"`, quoteTableName("runs", schema.SQLiteBackend))

	assert.Equal(t, "$1, $2, $3", placeholders(schema.PostgreSQLBackend, 3))
	assert.Equal(t, "?, ?, ?", placeholders(schema.MySQLBackend, 3))
	assert.Equal(t, "?", placeholder(schema.SQLiteBackend, 7))
}

func TestMySQLDSN(t *testing.T) {
	dsn, err := mysqlDSN("user:pass@tcp(localhost:3306)/clustervis")
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.True(t, cfg.MultiStatements)
	assert.Equal(t, "clustervis", cfg.DBName)

	_, err = mysqlDSN("tcp(")
	assert.Error(t, err)
}

func TestSQLTimeScan(t *testing.T) {
	want := time.Date(2024, 2, 21, 10, 0, 0, 500, time.UTC)

	var st sqlTime
	require.NoError(t, st.Scan(want.Format(time.RFC3339Nano)))
	assert.True(t, st.Valid)
	assert.True(t, want.Equal(st.Time))

	require.NoError(t, st.Scan([]byte(want.Format(time.RFC3339Nano))))
	assert.True(t, want.Equal(st.Time))

	require.NoError(t, st.Scan(want.In(time.FixedZone("X", 3600))))
	assert.Equal(t, time.UTC, st.Time.Location())

	require.NoError(t, st.Scan(nil))
	assert.False(t, st.Valid)

	assert.Error(t, st.Scan("yesterday"))
	assert.Error(t, st.Scan(42))
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2024, 2, 21, 10, 0, 0, 0, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-02-21T09:00:00Z", formatTime(ts, schema.SQLiteBackend))
	assert.Equal(t, ts.UTC(), formatTime(ts, schema.PostgreSQLBackend))
}

func TestOpenDBUnsupported(t *testing.T) {
	_, err := openDB(schema.ParquetBackend, "", "")
	assert.Error(t, err)
}
