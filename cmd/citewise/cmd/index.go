package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index <file> [file...]",
		Short: "Index one or more documents",
		Long: `Load, chunk, embed, and store the given documents. Existing chunks
for the same source are replaced, so re-indexing a changed file never
leaves stale entries.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			failed := 0
			for _, path := range args {
				summary, err := a.engine.IndexSource(cmd.Context(), path)
				if err != nil {
					failed++
					a.render.Errorf("%s: %v", summary.Source, err)
					continue
				}
				a.render.Summary(summary)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}
}
