package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recallhq/recall/internal/core/domain"
)

var (
	queryK       int
	queryJSON    bool
	queryContext bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Retrieve memories relevant to a query",
	Long: `Runs hybrid retrieval for the current scope: semantic similarity and
entity overlap candidates are merged and re-ranked. Negated memories are
boosted on queries about current validity ("is he still there?").`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryK, "limit", "n", domain.DefaultK, "maximum number of results")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	queryCmd.Flags().BoolVar(&queryContext, "context", false, "print an answer-generator context block instead of a result list")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if retriever == nil {
		return errors.New("retrieval service not configured")
	}

	k := queryK
	if !cmd.Flags().Changed("limit") && configStore != nil {
		if ck := configStore.GetInt("retrieval.k"); ck > 0 {
			k = ck
		}
	}

	result, err := retriever.Retrieve(context.Background(), args[0], currentScope(),
		domain.RetrievalOptions{K: k})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	switch {
	case queryContext:
		cmd.Print(retriever.BuildContext(result))
		return nil
	case queryJSON:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(result.Segments) == 0 {
		cmd.Println("No memories found.")
		return nil
	}

	cmd.Println("Memories:")
	cmd.Println()
	for i, rs := range result.Segments {
		marker := ""
		if rs.Segment.Negated {
			marker = " [negated]"
		}
		cmd.Printf("[%d] %s%s\n", i+1, rs.Segment.Text, marker)
		cmd.Printf("    source=%s score=%.3f overlap=%d\n", rs.Segment.Source, rs.Score, rs.EntityOverlap)
	}
	if result.Degraded {
		cmd.Println()
		cmd.Println("Warning: semantic search unavailable; showing entity matches only.")
	}
	return nil
}
