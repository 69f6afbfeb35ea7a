package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/citewise/citewise/internal/syncer"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var docsDir string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the documents directory and keep the index in sync",
		Long: `Run an initial reconciliation pass, then watch the documents
directory for changes. File events are debounced so editors that touch
a file repeatedly trigger a single pass. Stops on SIGINT/SIGTERM.`,
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

			w, err := syncer.NewWatcher(a.engine, dir, a.cfg.Sync.Debounce, a.cfg.Sync.Interval)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)\n", dir)
			err = w.Run(ctx, func(report syncer.Report) {
				if report.Changed() || len(report.Errors) > 0 {
					a.render.Report(report)
				}
				// Graphs otherwise persist only on Close; a long watch
				// run should not hold hours of additions in memory only.
				if report.Changed() {
					if err := a.store.Save(); err != nil {
						slog.Warn("persist collections",
							slog.String("error", err.Error()))
					}
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&docsDir, "docs-dir", "d", "", "Documents directory (overrides config)")

	return cmd
}
