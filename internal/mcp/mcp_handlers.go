package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/allisonaustin/cluster-vis/core"
	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/outwriter"
	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.StoreManager
}

// scoreResponse is the JSON payload returned by the scoring tools.
type scoreResponse struct {
	Mode      schema.RunMode          `json:"mode"`
	Nodes     []outwriter.RankedNode  `json:"nodes"`
	Skipped   []schema.SkippedFeature `json:"skipped"`
	Baselines []schema.BaselineRecord `json:"baselines"`
	Built     int                     `json:"built"`
	Reused    int                     `json:"reused"`
}

// applySelection copies the common selection arguments onto cfg.
func applySelection(cfg *contract.Config, request mcp.CallToolRequest) {
	if p := request.GetString("input_path", ""); p != "" {
		cfg.InputPath = p
	}
	if f := request.GetString("features", ""); f != "" {
		cfg.Features = contract.SplitList(f)
	}
	if n := request.GetString("nodes", ""); n != "" {
		cfg.Nodes = contract.SplitList(n)
	}
	if l := request.GetInt("limit", 0); l > 0 {
		cfg.ResultLimit = l
	}
}

func (h *toolHandler) handleScoreNodes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	applySelection(cfg, request)
	cfg.Force = request.GetBool("force", cfg.Force)

	result, err := core.RunScore(core.WithSuppressOutput(ctx), cfg, h.mgr, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scoring failed: %v", err)), nil
	}
	return scoreResult(result, cfg.ResultLimit)
}

func (h *toolHandler) handleScoreWithOverride(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	applySelection(cfg, request)

	input := &contract.ConfigRawInput{
		Feature: request.GetString("feature", ""),
		VMin:    request.GetFloat("vmin", 0),
		VMax:    request.GetFloat("vmax", 0),
		Start:   request.GetString("start", ""),
		End:     request.GetString("end", ""),
	}
	if err := contract.ProcessOverride(cfg, input); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid override parameters: %v", err)), nil
	}

	result, err := core.RunOverride(core.WithSuppressOutput(ctx), cfg, h.mgr, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("override scoring failed: %v", err)), nil
	}
	return scoreResult(result, cfg.ResultLimit)
}

func (h *toolHandler) handleListBaselines(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	cfg.Features = contract.SplitList(request.GetString("features", ""))

	records, err := core.ListBaselines(ctx, cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing baselines failed: %v", err)), nil
	}
	if records == nil {
		records = []schema.BaselineRecord{}
	}
	jsonData, _ := json.MarshalIndent(records, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func scoreResult(result *schema.RunResult, limit int) (*mcp.CallToolResult, error) {
	skipped := result.Scores.Skipped
	if skipped == nil {
		skipped = []schema.SkippedFeature{}
	}
	jsonData, _ := json.MarshalIndent(scoreResponse{
		Mode:      result.Mode,
		Nodes:     outwriter.RankNodes(result.Scores, limit),
		Skipped:   skipped,
		Baselines: result.Baselines,
		Built:     result.Built,
		Reused:    result.Reused,
	}, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
