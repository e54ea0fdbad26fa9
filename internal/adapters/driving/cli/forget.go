package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var forgetCmd = &cobra.Command{
	Use:   "forget [pattern]",
	Short: "Forget memories containing a text pattern",
	Long: `Soft-deletes every memory in the current user and project whose text
contains the pattern (case insensitive). Forgotten memories stop appearing
in queries and listings; clear removes them for good.`,
	Args: cobra.ExactArgs(1),
	RunE: runForget,
}

func init() {
	rootCmd.AddCommand(forgetCmd)
}

func runForget(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	n, err := ingestor.Forget(context.Background(), currentScope(), args[0])
	if err != nil {
		return fmt.Errorf("forgetting memories: %w", err)
	}
	if n == 0 {
		cmd.Println("No matching memories.")
		return nil
	}
	cmd.Printf("Forgot %d memories containing %q.\n", n, args[0])
	return nil
}
