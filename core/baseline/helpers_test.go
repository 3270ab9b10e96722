package baseline

import (
	"testing"
	"time"

	"github.com/allisonaustin/cluster-vis/internal/frame"
	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 2, 21, 10, 0, 0, 0, time.UTC)

func minute(i int) time.Time {
	return t0.Add(time.Duration(i) * time.Minute)
}

// valueFunc returns the reading of feature f on node i at column j.
type valueFunc func(f, i, j int) float64

// gentle is a low-amplitude wave inside [1, 1.4].
func gentle(_, i, j int) float64 {
	return 1 + 0.1*float64((i+j)%5)
}

func nodeName(i int) string {
	return "node-" + string(rune('a'+i))
}

// buildTable returns a nodes x cols table over the named features.
func buildTable(t *testing.T, features []string, nodes, cols int, fn valueFunc) *frame.Table {
	t.Helper()
	tbl := frame.NewTable(features)
	for j := range cols {
		for i := range nodes {
			values := make([]float64, len(features))
			for f := range features {
				values[f] = fn(f, i, j)
			}
			require.NoError(t, tbl.Append(nodeName(i), minute(j), values))
		}
	}
	return tbl
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Workers = 4
	opts.MaxLevels = 3
	return opts
}

func record(feature string) schema.BaselineRecord {
	return schema.BaselineRecord{
		Feature: feature,
		BStart:  minute(0),
		BEnd:    minute(3),
		VMin:    0,
		VMax:    2,
		ZScore:  []float64{1, 1, 1},
	}
}
