// Package cli implements the crossgrep command line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crossgrep/crossgrep/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "crossgrep",
	Short: "Cross-project semantic code search",
	Long: `crossgrep indexes every project in a workspace into isolated vector
collections, tracks the relationships between projects, and answers
natural language searches across all of them with relationship-aware
ranking.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to crossgrep.yaml (default: search upward from current directory)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(mcpCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// findWorkspaceFile searches for crossgrep.yaml starting at dir and
// walking toward the filesystem root.
func findWorkspaceFile(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, config.WorkspaceFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found (run 'crossgrep init' first)", config.WorkspaceFileName)
		}
		dir = parent
	}
}

// loadWorkspace locates, loads, and validates the workspace config.
func loadWorkspace() (*config.Workspace, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = findWorkspaceFile(".")
		if err != nil {
			return nil, err
		}
	}

	ws, err := config.LoadWorkspace(path)
	if err != nil {
		return nil, err
	}
	if err := ws.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}
	return ws, nil
}
