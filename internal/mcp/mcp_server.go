// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the clustervis MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.StoreManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Cluster Anomaly Scoring Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	// --- 1. Tool: score_nodes ---
	s.AddTool(mcp.NewTool("score_nodes",
		mcp.WithDescription("Score every node of a telemetry file against the cached per-feature baselines, building missing baselines first."),
		mcp.WithString("input_path", mcp.Description("Path to a CSV or Parquet telemetry file (defaults to the server's input).")),
		mcp.WithString("features", mcp.Description("Comma-separated feature columns to score. Defaults to every feature.")),
		mcp.WithString("nodes", mcp.Description("Comma-separated node ids to score. Defaults to every node.")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of ranked nodes returned.")),
		mcp.WithBoolean("force", mcp.Description("Rebuild every baseline instead of reusing the cache.")),
	), h.handleScoreNodes)

	// --- 2. Tool: score_with_override ---
	s.AddTool(mcp.NewTool("score_with_override",
		mcp.WithDescription("Score one feature against a baseline pinned to an explicit value range and time window. The cache is not touched."),
		mcp.WithString("feature", mcp.Description("The feature column to score."), mcp.Required()),
		mcp.WithNumber("vmin", mcp.Description("Lower bound of the normal value range."), mcp.Required()),
		mcp.WithNumber("vmax", mcp.Description("Upper bound of the normal value range."), mcp.Required()),
		mcp.WithString("start", mcp.Description("Baseline window start timestamp."), mcp.Required()),
		mcp.WithString("end", mcp.Description("Baseline window end timestamp."), mcp.Required()),
		mcp.WithString("input_path", mcp.Description("Path to a CSV or Parquet telemetry file.")),
		mcp.WithString("nodes", mcp.Description("Comma-separated node ids to score.")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of ranked nodes returned.")),
	), h.handleScoreWithOverride)

	// --- 3. Tool: list_baselines ---
	s.AddTool(mcp.NewTool("list_baselines",
		mcp.WithDescription("List the cached per-feature baselines."),
		mcp.WithString("features", mcp.Description("Comma-separated features to include. Defaults to every cached feature.")),
	), h.handleListBaselines)

	return s
}

// StartMCPServer starts the clustervis MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.StoreManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
