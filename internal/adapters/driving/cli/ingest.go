package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/recallhq/recall/internal/core/domain"
	"github.com/recallhq/recall/internal/normalise"
)

var ingestSource string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest documents into memory",
	Long: `Splits each file into sentence-aligned segments and indexes them in
both the semantic and the entity store for the current scope.

With no arguments, reads text from stdin. A partially indexed document is
reported; re-ingesting the same text repairs it.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source label (defaults to the file name)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	ctx := context.Background()
	scope := currentScope()

	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		label := ingestSource
		if label == "" {
			label = "stdin"
		}
		report, err := ingestor.Ingest(ctx, string(data), scope, label)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		printReport(cmd, label, report)
		return nil
	}

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		label := ingestSource
		if label == "" {
			label = filepath.Base(path)
		}
		report, err := ingestor.Ingest(ctx, normalise.File(path, string(data)), scope, label)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		printReport(cmd, label, report)
	}
	return nil
}

func printReport(cmd *cobra.Command, label string, report domain.IngestReport) {
	if report.Partial() {
		cmd.Printf("%s: %d segments indexed, %d failed (partial; re-ingest to repair)\n",
			label, report.SegmentCount, report.FailedCount)
		if report.FirstErr != nil {
			cmd.Printf("First failure: %v\n", report.FirstErr)
		}
		return
	}
	cmd.Printf("%s: %d segments indexed\n", label, report.SegmentCount)
}
