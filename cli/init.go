package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crossgrep/crossgrep/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a crossgrep.yaml in the current directory",
	Long: `Create a workspace configuration file in the current directory.

The generated file declares a single project rooted here; edit it to add
more projects, their relationships, and the embedder/store backends.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing crossgrep.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := filepath.Join(".", config.WorkspaceFileName)

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", config.WorkspaceFileName)
	}

	ws := config.DefaultWorkspace()
	if cwd, err := os.Getwd(); err == nil {
		ws.Name = filepath.Base(cwd)
		ws.Projects[0].ID = "main"
		ws.Projects[0].Name = filepath.Base(cwd)
	}

	if err := ws.Save(path); err != nil {
		return err
	}

	fmt.Printf("Created %s\n", path)
	fmt.Println("Edit it to declare your projects, then run 'crossgrep index'.")
	return nil
}
