package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/crossgrep/crossgrep/workspace"
)

var (
	indexProject string
	indexForce   bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index every project in the workspace",
	Long: `Index (or re-index) the projects declared in crossgrep.yaml.

Each project gets its own isolated vector collection. Unchanged files
are skipped unless --force is given.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexProject, "project", "p", "", "Index only this project id")
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "Re-embed every file even when unchanged")
}

func runIndex(cmd *cobra.Command, args []string) error {
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

	failures := manager.Initialize(ctx)
	for id, initErr := range failures {
		fmt.Printf("✗ %s: %v\n", id, initErr)
	}

	if indexProject != "" {
		stats, err := manager.ReloadProject(ctx, indexProject)
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s: %d files indexed, %d chunks (%v)\n",
			indexProject, stats.FilesIndexed, stats.ChunksCreated, stats.Duration.Round(time.Millisecond))
		return nil
	}

	results, err := manager.IndexAllProjects(ctx, indexForce)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		stats := results[id]
		fmt.Printf("✓ %s: %d indexed, %d skipped, %d removed, %d chunks (%v)\n",
			id, stats.FilesIndexed, stats.FilesSkipped, stats.FilesRemoved,
			stats.ChunksCreated, stats.Duration)
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d project(s) failed to initialize", len(failures))
	}
	return nil
}
