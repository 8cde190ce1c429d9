package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alpkeskin/gotoon"
	"github.com/spf13/cobra"

	"github.com/crossgrep/crossgrep/workspace"
)

var (
	searchScope   string
	searchOrigin  string
	searchLimit   int
	searchJSON    bool
	searchTOON    bool
	searchCompact bool
)

// SearchResultCompactJSON is a minimal struct for compact output (no
// content field).
type SearchResultCompactJSON struct {
	ProjectID string  `json:"project_id"`
	FilePath  string  `json:"file_path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Score     float64 `json:"score"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the workspace with natural language",
	Long: `Search across every indexed project using a natural language query.

The query is embedded once and fanned out to the projects selected by
--scope; results are ranked by similarity plus project priority,
relationship boost, recency, and exact keyword matches.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchScope, "scope", "s", "workspace", "Search scope: workspace, project, dependencies, related")
	searchCmd.Flags().StringVarP(&searchOrigin, "origin", "o", "", "Origin project id (required for non-workspace scopes, enables boosting)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results to return")
	searchCmd.Flags().BoolVarP(&searchJSON, "json", "j", false, "Output results in JSON format (for AI agents)")
	searchCmd.Flags().BoolVarP(&searchTOON, "toon", "t", false, "Output results in TOON format (token-efficient for AI agents)")
	searchCmd.Flags().BoolVarP(&searchCompact, "compact", "c", false, "Output minimal format without content (requires --json or --toon)")
	searchCmd.MarkFlagsMutuallyExclusive("json", "toon")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

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

	if failures := manager.Initialize(ctx); len(failures) > 0 {
		for id, initErr := range failures {
			fmt.Printf("Warning: project %s unavailable: %v\n", id, initErr)
		}
	}

	results, err := manager.Search(ctx, workspace.SearchRequest{
		Query:         query,
		Scope:         workspace.Scope(searchScope),
		OriginProject: searchOrigin,
		Limit:         searchLimit,
	})
	if err != nil {
		return err
	}

	if searchJSON || searchTOON {
		return printStructured(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. [%s] %s:%d-%d (score: %.3f)\n",
			i+1, r.ProjectID, r.FilePath, r.StartLine, r.EndLine, r.Score)

		preview := r.Content
		if lines := strings.Split(preview, "\n"); len(lines) > 6 {
			preview = strings.Join(lines[:6], "\n") + "\n   ..."
		}
		for _, line := range strings.Split(preview, "\n") {
			fmt.Printf("   %s\n", line)
		}
		fmt.Println()
	}

	return nil
}

func printStructured(results []workspace.SearchResult) error {
	var payload any = results
	if searchCompact {
		compact := make([]SearchResultCompactJSON, len(results))
		for i, r := range results {
			compact[i] = SearchResultCompactJSON{
				ProjectID: r.ProjectID,
				FilePath:  r.FilePath,
				StartLine: r.StartLine,
				EndLine:   r.EndLine,
				Score:     r.Score,
			}
		}
		payload = compact
	}

	if searchTOON {
		output, err := gotoon.Encode(payload)
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		fmt.Println(output)
		return nil
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
