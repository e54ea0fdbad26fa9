package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var recentLimit int

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the newest memories in the current scope",
	RunE:  runRecent,
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List ingested documents in the current scope",
	RunE:  runDocs,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show memory counts for the current scope",
	RunE:  runStatus,
}

func init() {
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 20, "maximum number of memories")
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(statusCmd)
}

func runRecent(cmd *cobra.Command, _ []string) error {
	if library == nil {
		return errors.New("library service not configured")
	}

	segments, err := library.Recent(context.Background(), currentScope(), recentLimit)
	if err != nil {
		return fmt.Errorf("listing memories: %w", err)
	}
	if len(segments) == 0 {
		cmd.Println("No memories stored.")
		return nil
	}

	for _, seg := range segments {
		marker := ""
		if seg.Negated {
			marker = " [negated]"
		}
		cmd.Printf("%s  %s%s (%s)\n", seg.CreatedAt.Format("2006-01-02 15:04"), seg.Text, marker, seg.Source)
	}
	return nil
}

func runDocs(cmd *cobra.Command, _ []string) error {
	if library == nil {
		return errors.New("library service not configured")
	}

	docs, err := library.Documents(context.Background(), currentScope())
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents ingested.")
		return nil
	}

	for _, doc := range docs {
		cmd.Printf("%s  %s (%d segments)\n", doc.CreatedAt.Format("2006-01-02 15:04"), doc.Name, doc.SegmentCount)
	}
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if library == nil {
		return errors.New("library service not configured")
	}

	scope := currentScope()
	count, err := library.Count(context.Background(), scope)
	if err != nil {
		return fmt.Errorf("counting memories: %w", err)
	}
	cmd.Printf("Scope %s: %d segments\n", scope, count)
	return nil
}
