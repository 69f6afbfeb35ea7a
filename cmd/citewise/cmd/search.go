package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/citewise/citewise/internal/search"
)

// searchOutput is the JSON shape for search results.
type searchOutput struct {
	Query       string          `json:"query"`
	General     []search.Result `json:"general"`
	Definitions []search.Result `json:"definitions"`
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: `Run hybrid retrieval over both collections: semantic candidates are
re-scored with BM25, blended, deduplicated, and reranked when a rerank
backend is configured. Definition matches are listed first.

Examples:
  citewise search "termination notice period"
  citewise search "מהי תקופת השכירות" --limit 3
  citewise search "force majeure" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			general, definitions, err := a.retriever.Retrieve(cmd.Context(), query)
			if err != nil {
				return err
			}
			if limit > 0 && limit < len(general) {
				general = general[:limit]
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(searchOutput{Query: query, General: general, Definitions: definitions})
			}
			a.render.Results(query, general, definitions)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Cap the number of general results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}
