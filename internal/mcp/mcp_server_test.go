package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/iocache"
	mcp_internal "github.com/allisonaustin/cluster-vis/internal/mcp"
	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTelemetry writes four nodes over thirty minutes; node-d spikes in
// the second half.
func writeTelemetry(t *testing.T) string {
	t.Helper()
	start := time.Date(2024, 2, 21, 10, 0, 0, 0, time.UTC)
	var b strings.Builder
	b.WriteString("nodeId,timestamp,rx,tx\n")
	for j := range 30 {
		for i := range 4 {
			v := 1 + 0.1*float64((i+j)%5)
			if i == 3 && j >= 15 {
				v *= 25
			}
			fmt.Fprintf(&b, "node-%c,%s,%g,%g\n", 'a'+i, start.Add(time.Duration(j)*time.Minute).Format(time.RFC3339), v, v/2)
		}
	}
	path := filepath.Join(t.TempDir(), "telemetry.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func baseConfig(input string) *contract.Config {
	return &contract.Config{
		InputPath:  input,
		Workers:    4,
		MaxLevels:  3,
		MaxCycles:  contract.DefaultMaxCycles,
		MaxColumns: contract.DefaultMaxColumns,
		RangeK:     contract.DefaultRangeK,
		RangeExt:   contract.DefaultRangeExt,
		TileMargin: contract.DefaultTileMargin,
	}
}

func call(t *testing.T, tool string, cfg *contract.Config, mgr contract.StoreManager, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	s := mcp_internal.NewMCPServer(cfg, mgr)
	registered := s.GetTool(tool)
	require.NotNil(t, registered, "Tool %s should exist", tool)

	res, err := registered.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: tool, Arguments: args},
	})
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	require.NotEmpty(t, res.Content)
	return res
}

func text(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

func TestMCPServerRegistersTools(t *testing.T) {
	s := mcp_internal.NewMCPServer(baseConfig(""), iocache.NewStoreManager(iocache.NewMemoryBaselineStore(), nil))
	for _, name := range []string{"score_nodes", "score_with_override", "list_baselines"} {
		assert.NotNil(t, s.GetTool(name), "Tool %s should exist", name)
	}
}

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	mgr := iocache.NewStoreManager(iocache.NewMemoryBaselineStore(), nil)

	t.Run("score_nodes without input", func(t *testing.T) {
		res := call(t, "score_nodes", baseConfig(""), mgr, map[string]any{})
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, text(res), "an input file is required")
	})

	t.Run("score_with_override missing feature", func(t *testing.T) {
		res := call(t, "score_with_override", baseConfig(""), mgr, map[string]any{
			"vmin": 0.0, "vmax": 1.0, "start": "2024-02-21T10:00:00Z", "end": "2024-02-21T10:10:00Z",
		})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "--feature is required")
	})

	t.Run("score_with_override inverted range", func(t *testing.T) {
		res := call(t, "score_with_override", baseConfig(""), mgr, map[string]any{
			"feature": "rx", "vmin": 2.0, "vmax": 1.0, "start": "2024-02-21T10:00:00Z", "end": "2024-02-21T10:10:00Z",
		})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "0 <= vmin <= vmax")
	})

	t.Run("score_with_override bad timestamp", func(t *testing.T) {
		res := call(t, "score_with_override", baseConfig(""), mgr, map[string]any{
			"feature": "rx", "vmin": 0.0, "vmax": 1.0, "start": "yesterday", "end": "2024-02-21T10:10:00Z",
		})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "invalid --start value")
	})
}

func TestMCPScoreAndListBaselines(t *testing.T) {
	input := writeTelemetry(t)
	mgr := iocache.NewStoreManager(iocache.NewMemoryBaselineStore(), nil)

	res := call(t, "score_nodes", baseConfig(input), mgr, map[string]any{"features": "rx", "limit": 2.0})
	require.False(t, res.IsError, text(res))

	var scored struct {
		Mode  string `json:"mode"`
		Nodes []struct {
			NodeID string `json:"node_id"`
		} `json:"nodes"`
		Built int `json:"built"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(res)), &scored))
	assert.Equal(t, string(schema.CachedRun), scored.Mode)
	assert.Equal(t, 1, scored.Built)
	require.Len(t, scored.Nodes, 2)
	assert.Equal(t, "node-d", scored.Nodes[0].NodeID)

	res = call(t, "list_baselines", baseConfig(input), mgr, map[string]any{})
	require.False(t, res.IsError, text(res))
	var records []schema.BaselineRecord
	require.NoError(t, json.Unmarshal([]byte(text(res)), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "rx", records[0].Feature)
}

func TestMCPScoreWithOverride(t *testing.T) {
	input := writeTelemetry(t)
	mgr := iocache.NewStoreManager(iocache.NewMemoryBaselineStore(), nil)

	res := call(t, "score_with_override", baseConfig(input), mgr, map[string]any{
		"feature": "tx", "vmin": 0.0, "vmax": 1.0,
		"start": "2024-02-21T10:00:00Z", "end": "2024-02-21T10:14:00Z",
	})
	require.False(t, res.IsError, text(res))

	var scored struct {
		Mode      string                  `json:"mode"`
		Baselines []schema.BaselineRecord `json:"baselines"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(res)), &scored))
	assert.Equal(t, string(schema.OverrideRun), scored.Mode)
	require.Len(t, scored.Baselines, 1)
	assert.Equal(t, "tx", scored.Baselines[0].Feature)

	res = call(t, "list_baselines", baseConfig(input), mgr, map[string]any{})
	assert.JSONEq(t, "[]", text(res))
}
