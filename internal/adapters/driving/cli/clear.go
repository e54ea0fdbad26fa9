package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all memories in the current scope",
	Long: `Removes every segment of the scope's user and project from both the
semantic and the entity store. Conversation-scoped memories of the project
are removed too. This cannot be undone.`,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, _ []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	scope := currentScope()
	if !clearYes {
		cmd.Printf("This deletes all memories for %s/%s. Re-run with --yes to confirm.\n",
			scope.UserID, scope.ProjectID)
		return nil
	}

	if err := ingestor.Clear(context.Background(), scope); err != nil {
		return fmt.Errorf("clearing scope: %w", err)
	}
	cmd.Printf("Cleared all memories for %s/%s.\n", scope.UserID, scope.ProjectID)
	return nil
}
