package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newReindexCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Retry indexing for chunks that failed to index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.Service.Reindex(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Reindexed %d of %d pending chunks\n", r.Indexed(), len(r.ChunkIDs))
			if r.Partial() {
				return fmt.Errorf("%d chunks still unindexed", len(r.Unindexed))
			}
			return nil
		},
	}
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compare the document store with the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.Service.Consistency(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Store chunks: %d\nIndex entries: %d\n", r.StoreChunks, r.IndexEntries)
			if r.OK() {
				cmd.Println("OK")
				return nil
			}
			if len(r.MissingIndex) > 0 {
				cmd.Printf("Missing from index: %v\n", r.MissingIndex)
			}
			if len(r.Orphaned) > 0 {
				cmd.Printf("Orphaned index entries: %v\n", r.Orphaned)
			}
			return fmt.Errorf("store and index disagree")
		},
	}
}

func newChunksCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "chunks [id]",
		Short: "List stored chunks or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid chunk id %q", args[0])
				}
				c, err := a.Service.Chunk(ctx, id)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, c)
				}
				cmd.Printf("Chunk %d of %q (position %d, indexed %t)\n\n%s\n", c.ID, c.DocumentTitle, c.Position, c.Indexed, c.Text)
				return nil
			}

			chunks, err := a.Service.Chunks(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, chunks)
			}
			if len(chunks) == 0 {
				cmd.Println("No chunks stored.")
				return nil
			}
			for _, c := range chunks {
				mark := " "
				if !c.Indexed {
					mark = "!"
				}
				cmd.Printf("%s %4d  %-24s  %s\n", mark, c.ID, snippet(c.DocumentTitle, 24), snippet(c.Text, 60))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
