package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recallhq/recall/internal/core/domain"
)

var chatAnswer string

var chatLogCmd = &cobra.Command{
	Use:   "chat-log [query]",
	Short: "Record a chat exchange as memory",
	Long: `Stores one user/assistant exchange as a conversation-scoped memory and
appends it to the query history. Exchange memories rank slightly below
document facts during retrieval.`,
	Args: cobra.ExactArgs(1),
	RunE: runChatLog,
}

func init() {
	chatLogCmd.Flags().StringVar(&chatAnswer, "answer", "", "the assistant's answer (required)")
	_ = chatLogCmd.MarkFlagRequired("answer")
	rootCmd.AddCommand(chatLogCmd)
}

func runChatLog(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	ctx := context.Background()
	scope := currentScope()
	query := args[0]

	if err := ingestor.RecordExchange(ctx, query, chatAnswer, scope); err != nil {
		return fmt.Errorf("recording exchange: %w", err)
	}

	if historySvc != nil {
		rec := domain.QueryRecord{Query: query, Answer: chatAnswer, Scope: scope}
		if err := historySvc.Record(ctx, rec); err != nil {
			return fmt.Errorf("recording history: %w", err)
		}
	}

	cmd.Println("Exchange recorded.")
	return nil
}
