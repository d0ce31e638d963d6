package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/extract"
)

func newIngestCmd(root *rootOptions) *cobra.Command {
	var text, title string
	cmd := &cobra.Command{
		Use:   "ingest [files or directories...]",
		Short: "Add documents to the knowledge base",
		Long: `Extracts text from .txt, .md and .pdf files, splits it into chunks and
indexes every chunk. Directories are walked recursively. Use --text to
ingest a piece of text directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && text == "" {
				return errors.New("nothing to ingest: pass files or --text")
			}
			ctx := cmd.Context()
			a, err := root.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var sources []domain.Source
			if text != "" {
				t := title
				if t == "" {
					t = domain.ManualEntryTitle
				}
				sources = append(sources, domain.Source{Title: t, Text: strings.TrimSpace(text)})
			}
			sources = append(sources, extract.Files(args)...)

			batch := a.Service.IngestBatch(ctx, sources)
			printBatch(cmd, batch)
			if failed := batch.Failed(); len(failed) == len(batch.Items) {
				return fmt.Errorf("all %d items failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "text to ingest directly")
	cmd.Flags().StringVar(&title, "title", "", "title for --text (default \""+domain.ManualEntryTitle+"\")")
	return cmd
}

func printBatch(cmd *cobra.Command, batch domain.BatchReport) {
	for _, r := range batch.Items {
		switch {
		case r.Err != nil:
			cmd.Printf("  FAIL %s: %v\n", r.Title, r.Err)
		case r.Skipped:
			cmd.Printf("  SKIP %s: no text\n", r.Title)
		case r.Partial():
			cmd.Printf("  PART %s: %d chunks, %d unindexed (run reindex)\n", r.Title, len(r.ChunkIDs), len(r.Unindexed))
		default:
			cmd.Printf("  OK   %s: %d chunks\n", r.Title, len(r.ChunkIDs))
		}
	}
	cmd.Printf("Batch %s: %d items, %d chunks, %d failed\n", batch.BatchID, len(batch.Items), batch.Chunks(), len(batch.Failed()))
	if batch.Summary != "" {
		cmd.Println()
		cmd.Println("Summary:")
		cmd.Println(batch.Summary)
	}
}
