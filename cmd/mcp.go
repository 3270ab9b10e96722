package cmd

import (
	"github.com/allisonaustin/cluster-vis/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp [input]",
	Short: "Start the clustervis MCP server",
	Long: `Launch an MCP server on stdio that lets AI agents score nodes and inspect
baselines through the score_nodes, score_with_override and list_baselines tools.

Logs go to stderr so stdio stays reserved for the protocol.`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, storeManager)
	},
}
