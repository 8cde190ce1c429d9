package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crossgrep/crossgrep/workspace"
)

var graphFormat string

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect the project relationship graph",
}

var graphExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the relationship graph",
	Long: `Export the project relationship graph.

Formats:
  json  node-link document with full project metadata (re-importable)
  dot   Graphviz digraph for rendering`,
	RunE: runGraphExport,
}

func init() {
	graphExportCmd.Flags().StringVarP(&graphFormat, "format", "f", "json", "Export format: json or dot")
	graphCmd.AddCommand(graphExportCmd)
}

func runGraphExport(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}

	manager, err := workspace.NewManager(cmd.Context(), ws)
	if err != nil {
		return err
	}
	defer manager.Close()

	switch graphFormat {
	case "dot":
		fmt.Print(manager.Graph().ExportDOT())
	case "json":
		data, err := manager.Graph().ExportJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	default:
		return fmt.Errorf("unknown format %q (use json or dot)", graphFormat)
	}
	return nil
}
