// Package cmd provides the CLI commands for CiteWise.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/citewise/citewise/pkg/version"
)

// rootOptions holds persistent flags shared by every command.
type rootOptions struct {
	configPath string
	debug      bool
	noColor    bool
}

// NewRootCmd creates the root command for the citewise CLI.
func NewRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "citewise",
		Short: "Hybrid retrieval engine for legal document corpora",
		Long: `CiteWise indexes a directory of legal documents into two vector
collections (general text and extracted definitions) and answers
queries with hybrid semantic + keyword retrieval.

Typical flow:

  citewise sync              reconcile the documents directory
  citewise search "..."      query the index
  citewise watch             keep the index in sync continuously`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("citewise version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to citewise.yaml")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newIndexCmd(&opts))
	cmd.AddCommand(newSyncCmd(&opts))
	cmd.AddCommand(newWatchCmd(&opts))
	cmd.AddCommand(newSearchCmd(&opts))
	cmd.AddCommand(newDeleteCmd(&opts))
	cmd.AddCommand(newStatusCmd(&opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
