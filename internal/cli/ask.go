package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docrag/internal/domain"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var (
		topK         int
		retrieveOnly bool
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			if retrieveOnly {
				r, err := a.Service.Retrieve(ctx, query, topK)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, r)
				}
				printSources(cmd, r.Hits)
				return nil
			}

			answer, err := a.Service.Ask(ctx, query)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, answer)
			}
			cmd.Println(answer.Text)
			cmd.Println()
			printSources(cmd, answer.Sources)
			if answer.Usage.TotalTokens > 0 {
				cmd.Printf("Tokens: %d (prompt %d, completion %d)", answer.Usage.TotalTokens, answer.Usage.PromptTokens, answer.Usage.CompletionTokens)
				if answer.Usage.Cost > 0 {
					cmd.Printf("  cost $%.6f", answer.Usage.Cost)
				}
				cmd.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "passages to retrieve with --retrieve-only (default from config)")
	cmd.Flags().BoolVar(&retrieveOnly, "retrieve-only", false, "print ranked passages without generating an answer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func printSources(cmd *cobra.Command, hits []domain.Hit) {
	if len(hits) == 0 {
		cmd.Println("No sources found.")
		return
	}
	cmd.Println("Sources:")
	for i, h := range hits {
		cmd.Printf("  [%d] chunk %d (%.3f) %s\n", i+1, h.ChunkID, h.Score, snippet(h.Text, 80))
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
