package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/matsen/citethreads/internal/paper"
	"github.com/matsen/citethreads/internal/resolver"
)

var (
	searchSources []string
	searchLimit   int
)

func init() {
	searchCmd.Flags().StringSliceVar(&searchSources, "source", nil, "Sources to query (default: all configured)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", DefaultSearchLimit, "Maximum results")
	rootCmd.AddCommand(paperCmd)
	rootCmd.AddCommand(searchCmd)
}

var paperCmd = &cobra.Command{
	Use:   "paper <id>",
	Short: "Fetch one paper through the source fallback chain",
	Long: `Fetch a paper's metadata, trying each configured source in order and
skipping sources that are currently rate limited.

Examples:
  cite paper DOI:10.1038/nature14539
  cite paper arXiv:1706.03762 --human`,
	Args: cobra.ExactArgs(1),
	RunE: runPaper,
}

func runPaper(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := mustApp(ctx)
	defer a.Close()

	p, ok := a.resolver.FetchPaper(ctx, args[0])
	if !ok {
		exitWithError(ExitNotFound, "paper %s not found in any available source", args[0])
	}
	if humanOutput {
		printPaperHuman(p)
		return nil
	}
	return outputJSON(p)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search papers across sources",
	Long: `Search papers by title across all configured sources at once. DOIs and
arXiv IDs are looked up directly. Results are merged and deduplicated; a
failing source is reported without failing the search.

Examples:
  cite search "attention is all you need"
  cite search 10.1038/nature14539
  cite search "protein folding" --source openalex,crossref -n 20`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

// SearchResponse is the JSON output of the search command.
type SearchResponse struct {
	Query     string             `json:"query"`
	QueryType resolver.QueryType `json:"query_type"`
	Papers    []paper.Paper      `json:"papers"`
	Errors    map[string]string  `json:"errors,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchLimit < 1 {
		exitWithError(ExitDataError, "--limit must be positive")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := mustApp(ctx)
	defer a.Close()

	res := a.resolver.Lookup(ctx, args[0], searchSources, searchLimit)
	papers := res.Papers
	if papers == nil {
		papers = []paper.Paper{}
	}

	if humanOutput {
		for name, msg := range res.Errors {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", name, msg)
		}
		if len(papers) == 0 {
			fmt.Println("No papers found")
			return nil
		}
		printPaperListHuman(papers)
		return nil
	}
	return outputJSON(SearchResponse{
		Query:     args[0],
		QueryType: resolver.DetectQueryType(args[0]),
		Papers:    papers,
		Errors:    res.Errors,
	})
}
