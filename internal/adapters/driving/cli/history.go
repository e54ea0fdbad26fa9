package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage the query history",
	Long: `The query history is an append-only audit log of retrievals. It is
never consulted during retrieval itself.`,
	RunE: runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent queries",
	RunE:  runHistoryList,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the query history for the current scope",
	RunE:  runHistoryClear,
}

func init() {
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of entries")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	if historySvc == nil {
		return errors.New("history service not configured")
	}

	records, err := historySvc.List(context.Background(), currentScope(), historyLimit)
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}
	if len(records) == 0 {
		cmd.Println("No queries recorded.")
		return nil
	}

	for _, rec := range records {
		cmd.Printf("%s  %q (%d segments)\n", rec.CreatedAt.Format("2006-01-02 15:04"), rec.Query, len(rec.SegmentIDs))
		if rec.Answer != "" {
			cmd.Printf("    answer: %s\n", rec.Answer)
		}
	}
	return nil
}

func runHistoryClear(cmd *cobra.Command, _ []string) error {
	if historySvc == nil {
		return errors.New("history service not configured")
	}

	if err := historySvc.Clear(context.Background(), currentScope()); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	cmd.Println("History cleared.")
	return nil
}
