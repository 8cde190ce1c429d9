package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crossgrep/crossgrep/mcp"
	"github.com/crossgrep/crossgrep/workspace"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start crossgrep as an MCP server",
	Long: `Start crossgrep as an MCP (Model Context Protocol) server.

The server communicates via stdio and exposes these tools:

  - crossgrep_search: cross-project semantic search with scopes
  - crossgrep_index:  re-index the workspace or one project
  - crossgrep_status: per-project status and graph statistics
  - crossgrep_graph:  export the relationship graph (json/dot)

Configuration for Claude Code:
  claude mcp add crossgrep -- crossgrep mcp

Configuration for Cursor (.cursor/mcp.json):
  {
    "mcpServers": {
      "crossgrep": {
        "command": "crossgrep",
        "args": ["mcp"]
      }
    }
  }`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	manager, err := workspace.NewManager(ctx, ws)
	if err != nil {
		return err
	}
	defer manager.Close()

	if failures := manager.Initialize(ctx); len(failures) == len(ws.Projects) {
		return fmt.Errorf("no project could be initialized")
	}

	return mcp.NewServer(manager).Serve()
}
