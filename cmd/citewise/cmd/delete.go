package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <source>",
		Short: "Remove a source document from the index",
		Long: `Remove every chunk belonging to the named source from both the
general and the definitions collection. The source name is the file's
base name as reported by 'citewise status'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.engine.DeleteSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d chunks for %s\n", removed, args[0])
			return nil
		},
	}
}
