package cli

import (
	"time"

	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/watcher"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		scan     bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Ingest files as they appear in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			w := watcher.New(a.Service, watcher.Options{
				Debounce: debounce,
				OnReport: func(path string, batch domain.BatchReport) {
					cmd.Printf("%s:\n", path)
					printBatch(cmd, batch)
				},
			})
			if scan {
				if err := w.Scan(ctx, args[0]); err != nil {
					return err
				}
			}
			cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
			return w.Run(ctx, args[0])
		},
	}
	cmd.Flags().BoolVar(&scan, "scan", false, "ingest existing files before watching")
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "quiet period before a changed file is ingested")
	return cmd
}
