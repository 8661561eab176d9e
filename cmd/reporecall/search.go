package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/reporecall/internal/project"
	"github.com/dshills/reporecall/internal/searcher"
	"github.com/dshills/reporecall/pkg/types"
)

const defaultTopK = 10

func (c *cli) searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query the code indexes",
	}
	cmd.AddCommand(
		c.searchFilesCmd(),
		c.searchSymbolsCmd(),
		c.searchChunksCmd(),
		c.searchEndpointsCmd(),
		c.searchMixedCmd(),
	)
	return cmd
}

// runSearch opens the project, runs one query and prints the response
func (c *cli) runSearch(ctx context.Context, query func(context.Context, *searcher.Searcher) (*types.SearchResponse, error)) error {
	return c.withProject(func(p *project.Project) error {
		resp, err := query(ctx, p.Searcher)
		if err != nil {
			return err
		}
		if c.jsonOut {
			return c.printJSON(resp)
		}
		c.printHits(resp)
		return nil
	})
}

func (c *cli) searchFilesCmd() *cobra.Command {
	var q searcher.FileQuery
	cmd := &cobra.Command{
		Use:   "files [query]",
		Short: "Search file paths and names",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Query = args[0]
			}
			return c.runSearch(cmd.Context(), func(ctx context.Context, s *searcher.Searcher) (*types.SearchResponse, error) {
				return s.SearchFiles(ctx, q)
			})
		},
	}
	cmd.Flags().StringVar(&q.Language, "lang", "", "only files of this language")
	cmd.Flags().StringVar(&q.PathPrefix, "prefix", "", "only files under this relative path")
	cmd.Flags().IntVarP(&q.TopK, "top-k", "k", defaultTopK, "maximum hits")
	return cmd
}

func (c *cli) searchSymbolsCmd() *cobra.Command {
	var q searcher.SymbolQuery
	cmd := &cobra.Command{
		Use:   "symbols <name>",
		Short: "Search declarations by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Name = args[0]
			return c.runSearch(cmd.Context(), func(ctx context.Context, s *searcher.Searcher) (*types.SearchResponse, error) {
				return s.SearchSymbols(ctx, q)
			})
		},
	}
	cmd.Flags().StringVar(&q.Kind, "kind", "", "only symbols of this kind (function, class, method, ...)")
	cmd.Flags().StringVar(&q.Language, "lang", "", "only symbols in files of this language")
	cmd.Flags().IntVar(&q.ContextLines, "context", 0, "source lines shown around each declaration")
	cmd.Flags().IntVarP(&q.TopK, "top-k", "k", defaultTopK, "maximum hits")
	return cmd
}

func (c *cli) searchChunksCmd() *cobra.Command {
	var q searcher.ChunkQuery
	cmd := &cobra.Command{
		Use:   "chunks <query>",
		Short: "Keyword search over source chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Query = strings.Join(args, " ")
			return c.runSearch(cmd.Context(), func(ctx context.Context, s *searcher.Searcher) (*types.SearchResponse, error) {
				return s.SearchChunks(ctx, q)
			})
		},
	}
	cmd.Flags().StringVar(&q.Language, "lang", "", "only chunks of this language")
	cmd.Flags().StringVar(&q.PathPrefix, "prefix", "", "only chunks under this relative path")
	cmd.Flags().IntVarP(&q.TopK, "top-k", "k", defaultTopK, "maximum hits")
	return cmd
}

func (c *cli) searchEndpointsCmd() *cobra.Command {
	var q searcher.EndpointQuery
	cmd := &cobra.Command{
		Use:   "endpoints [query]",
		Short: "Search detected HTTP routes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Query = args[0]
			}
			return c.runSearch(cmd.Context(), func(ctx context.Context, s *searcher.Searcher) (*types.SearchResponse, error) {
				return s.SearchEndpoints(ctx, q)
			})
		},
	}
	cmd.Flags().StringVar(&q.Method, "method", "", "only routes accepting this HTTP method")
	cmd.Flags().StringVar(&q.PathPrefix, "prefix", "", "only routes starting with this path")
	cmd.Flags().IntVarP(&q.TopK, "top-k", "k", defaultTopK, "maximum hits")
	return cmd
}

func (c *cli) searchMixedCmd() *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "mixed <query>",
		Short: "Search symbols, chunks and files in one ranked list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return c.runSearch(cmd.Context(), func(ctx context.Context, s *searcher.Searcher) (*types.SearchResponse, error) {
				return s.SearchMixed(ctx, query, topK)
			})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", defaultTopK, "maximum hits")
	return cmd
}

func (c *cli) printHits(resp *types.SearchResponse) {
	if resp.Message != "" {
		fmt.Fprintln(c.out, resp.Message)
	}
	if len(resp.Hits) == 0 {
		if resp.Message == "" {
			fmt.Fprintln(c.out, "No results.")
		}
		return
	}

	for _, hit := range resp.Hits {
		location := hit.RelPath
		switch {
		case hit.EndLine > hit.Line && hit.Line > 0:
			location = fmt.Sprintf("%s:%d-%d", hit.RelPath, hit.Line, hit.EndLine)
		case hit.Line > 0:
			location = fmt.Sprintf("%s:%d", hit.RelPath, hit.Line)
		}

		switch hit.Source {
		case types.SourceSymbol:
			fmt.Fprintf(c.out, "[%s] %s %s  %s  (%.2f)\n", hit.Source, hit.Kind, hit.Name, location, hit.Score)
		case types.SourceEndpoint:
			fmt.Fprintf(c.out, "[%s] %s %s  %s  %s  (%.2f)\n", hit.Source, hit.Method, hit.Route, hit.Framework, location, hit.Score)
		default:
			fmt.Fprintf(c.out, "[%s] %s  (%.2f)\n", hit.Source, location, hit.Score)
		}
		if hit.Preview != "" {
			for _, line := range strings.Split(hit.Preview, "\n") {
				fmt.Fprintf(c.out, "    %s\n", line)
			}
		}
	}
	if resp.Total > len(resp.Hits) {
		fmt.Fprintf(c.out, "(%d of %d matches)\n", len(resp.Hits), resp.Total)
	}
}
