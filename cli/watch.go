package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crossgrep/crossgrep/workspace"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch every project and keep the index in sync",
	Long: `Index the workspace, then watch every project for changes.

File events are debounced per path, batched, expanded to one-hop
dependent files, and re-indexed incrementally. Runs until interrupted.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	fmt.Println("Indexing workspace...")
	failures := manager.Initialize(ctx)
	for id, initErr := range failures {
		fmt.Printf("✗ %s: %v\n", id, initErr)
	}
	if len(failures) == len(ws.Projects) {
		return fmt.Errorf("no project could be initialized")
	}

	if err := manager.WatchAll(ctx); err != nil {
		return err
	}
	fmt.Println("Watching for changes (Ctrl+C to stop)...")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-sigCh:
		fmt.Println("\nStopping...")
	}

	manager.Stop()
	return nil
}
