package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var docsDir string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the documents directory with the index",
		Long: `Compare the documents directory against the indexed sources:
files on disk that are not indexed get added, indexed sources whose
files are gone get removed. Per-file failures are reported and do not
abort the pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			dir := docsDir
			if dir == "" {
				dir = a.cfg.Paths.DocsDir
			}

			report, err := a.engine.Sync(cmd.Context(), dir)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			a.render.Report(report)

			if len(report.Errors) > 0 {
				return fmt.Errorf("%d documents failed", len(report.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&docsDir, "docs-dir", "d", "", "Documents directory (overrides config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")

	return cmd
}
