package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docrag/internal/extract"
	"docrag/internal/tui"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [files...]",
		Short: "Interactive question answering",
		Long:  `Ingests the given files, if any, then opens an interactive chat over the knowledge base.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			summary := "Ask anything about the ingested documents."
			if len(args) > 0 {
				batch := a.Service.IngestBatch(ctx, extract.Files(args))
				printBatch(cmd, batch)
				if batch.Summary != "" {
					summary = batch.Summary
				}
			}

			_, err = tea.NewProgram(tui.New(ctx, a.Service, summary), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
}
