// Package mcp provides an MCP (Model Context Protocol) server over a
// workspace. This allows AI agents to search and inspect the indexed
// workspace as a native tool.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alpkeskin/gotoon"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/crossgrep/crossgrep/workspace"
)

// Server wraps the MCP server around a running workspace manager.
type Server struct {
	mcpServer *server.MCPServer
	manager   *workspace.Manager
}

// SearchResultCompact is a minimal struct for compact output (no
// content field).
type SearchResultCompact struct {
	ProjectID string  `json:"project_id"`
	FilePath  string  `json:"file_path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Score     float64 `json:"score"`
}

// encodeOutput encodes data in the specified format (json or toon).
func encodeOutput(data any, format string) (string, error) {
	switch format {
	case "toon":
		return gotoon.Encode(data)
	default: // "json"
		jsonBytes, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(jsonBytes), nil
	}
}

// NewServer creates an MCP server bound to a workspace manager.
func NewServer(manager *workspace.Manager) *Server {
	s := &Server{
		manager: manager,
	}

	s.mcpServer = server.NewMCPServer(
		"crossgrep",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	searchTool := mcp.NewTool("crossgrep_search",
		mcp.WithDescription("Cross-project semantic code search. Searches every project in the workspace (or a scoped subset) using natural language and returns ranked code chunks with file paths, line numbers, and scores."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language search query (e.g., 'user authentication flow', 'retry with backoff')"),
		),
		mcp.WithString("scope",
			mcp.Description("Search scope: 'workspace' (default), 'project', 'dependencies', or 'related'"),
		),
		mcp.WithString("origin",
			mcp.Description("Origin project id; required for project/dependencies/related scopes, also enables relationship boosting"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
		mcp.WithBoolean("compact",
			mcp.Description("Return minimal output without content (default: false)"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'json' (default) or 'toon' (token-efficient)"),
		),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearch)

	indexTool := mcp.NewTool("crossgrep_index",
		mcp.WithDescription("Re-index the workspace. Without arguments re-syncs every project incrementally; with a project id reloads that project from scratch."),
		mcp.WithString("project",
			mcp.Description("Project id to reload (optional; default: all projects)"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Re-embed every file even when unchanged (default: false)"),
		),
	)
	s.mcpServer.AddTool(indexTool, s.handleIndex)

	statusTool := mcp.NewTool("crossgrep_status",
		mcp.WithDescription("Report per-project indexing status and relationship graph statistics."),
		mcp.WithString("format",
			mcp.Description("Output format: 'json' (default) or 'toon' (token-efficient)"),
		),
	)
	s.mcpServer.AddTool(statusTool, s.handleStatus)

	graphTool := mcp.NewTool("crossgrep_graph",
		mcp.WithDescription("Export the project relationship graph as node-link JSON or Graphviz DOT."),
		mcp.WithString("format",
			mcp.Description("Export format: 'json' (default) or 'dot'"),
		),
	)
	s.mcpServer.AddTool(graphTool, s.handleGraph)
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}

	scope := request.GetString("scope", string(workspace.ScopeWorkspace))
	origin := request.GetString("origin", "")
	compact := request.GetBool("compact", false)
	format := request.GetString("format", "json")
	if format != "json" && format != "toon" {
		return mcp.NewToolResultError("format must be 'json' or 'toon'"), nil
	}

	results, err := s.manager.Search(ctx, workspace.SearchRequest{
		Query:         query,
		Scope:         workspace.Scope(scope),
		OriginProject: origin,
		Limit:         limit,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	var payload any = results
	if compact {
		compactResults := make([]SearchResultCompact, len(results))
		for i, r := range results {
			compactResults[i] = SearchResultCompact{
				ProjectID: r.ProjectID,
				FilePath:  r.FilePath,
				StartLine: r.StartLine,
				EndLine:   r.EndLine,
				Score:     r.Score,
			}
		}
		payload = compactResults
	}

	output, err := encodeOutput(payload, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode results: %v", err)), nil
	}
	return mcp.NewToolResultText(output), nil
}

func (s *Server) handleIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := request.GetString("project", "")
	force := request.GetBool("force", false)

	if project != "" {
		stats, err := s.manager.ReloadProject(ctx, project)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to reload project %s: %v", project, err)), nil
		}
		output, err := encodeOutput(map[string]any{project: stats}, "json")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode results: %v", err)), nil
		}
		return mcp.NewToolResultText(output), nil
	}

	stats, err := s.manager.IndexAllProjects(ctx, force)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to index workspace: %v", err)), nil
	}
	output, err := encodeOutput(stats, "json")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode results: %v", err)), nil
	}
	return mcp.NewToolResultText(output), nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := request.GetString("format", "json")
	if format != "json" && format != "toon" {
		return mcp.NewToolResultError("format must be 'json' or 'toon'"), nil
	}

	status := map[string]any{
		"projects": s.manager.ProjectStatuses(),
		"graph":    s.manager.Graph().GetStats(),
	}

	output, err := encodeOutput(status, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode status: %v", err)), nil
	}
	return mcp.NewToolResultText(output), nil
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := request.GetString("format", "json")

	switch format {
	case "dot":
		return mcp.NewToolResultText(s.manager.Graph().ExportDOT()), nil
	case "json":
		data, err := s.manager.Graph().ExportJSON()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to export graph: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	default:
		return mcp.NewToolResultError("format must be 'json' or 'dot'"), nil
	}
}

// Serve starts the MCP server on stdio. Blocks until the client
// disconnects.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}
